// Package wire defines the gateway frame codec.
package wire

import (
	"encoding/json"
	"fmt"
)

// Frame type tags. Every frame on the wire carries exactly one of these.
const (
	TypeRequest  = "req"
	TypeResponse = "res"
	TypeEvent    = "event"
)

// Request method names understood by the gateway.
const (
	MethodConnect   = "connect"
	MethodChatSend  = "chat.send"
	MethodChatAbort = "chat.abort"
)

// Event kinds the client consumes.
const (
	EventChat = "chat"
)

// ErrorInfo is the error payload of a failed response.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Frame is a raw protocol frame. The three frame kinds share one shape,
// distinguished by the Type tag; unused fields stay empty on the wire.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`      // request/response correlation id
	Method  string          `json:"method,omitempty"`  // request method
	Params  json.RawMessage `json:"params,omitempty"`  // request params
	OK      *bool           `json:"ok,omitempty"`      // response ok
	Payload json.RawMessage `json:"payload,omitempty"` // response/event payload
	Event   string          `json:"event,omitempty"`   // event kind
	Seq     *uint64         `json:"seq,omitempty"`     // event sequence number
	Error   *ErrorInfo      `json:"error,omitempty"`   // response error
}

// IsRequest reports whether the frame is a request.
func (f *Frame) IsRequest() bool { return f.Type == TypeRequest }

// IsResponse reports whether the frame is a response.
func (f *Frame) IsResponse() bool { return f.Type == TypeResponse }

// IsEvent reports whether the frame is an event.
func (f *Frame) IsEvent() bool { return f.Type == TypeEvent }

// Succeeded reports whether a response frame carries ok:true.
func (f *Frame) Succeeded() bool {
	return f.OK != nil && *f.OK
}

// ErrorMessage returns the remote-supplied error message of a failed
// response, or a generic fallback when none was provided.
func (f *Frame) ErrorMessage() string {
	if f.Error != nil && f.Error.Message != "" {
		return f.Error.Message
	}
	return "request failed"
}

// NewRequest builds a request frame, marshaling params to JSON.
func NewRequest(id, method string, params interface{}) (*Frame, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s params: %w", method, err)
		}
		raw = data
	}
	return &Frame{
		Type:   TypeRequest,
		ID:     id,
		Method: method,
		Params: raw,
	}, nil
}

// NewResponse builds a success response frame for the given request id.
func NewResponse(id string, payload interface{}) (*Frame, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling response payload: %w", err)
		}
		raw = data
	}
	ok := true
	return &Frame{
		Type:    TypeResponse,
		ID:      id,
		OK:      &ok,
		Payload: raw,
	}, nil
}

// NewErrorResponse builds a failure response frame for the given request id.
func NewErrorResponse(id, code, message string) *Frame {
	ok := false
	return &Frame{
		Type:  TypeResponse,
		ID:    id,
		OK:    &ok,
		Error: &ErrorInfo{Code: code, Message: message},
	}
}

// NewEvent builds an event frame, marshaling the payload to JSON.
func NewEvent(event string, seq uint64, payload interface{}) (*Frame, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s event payload: %w", event, err)
		}
		raw = data
	}
	return &Frame{
		Type:    TypeEvent,
		Event:   event,
		Seq:     &seq,
		Payload: raw,
	}, nil
}

// Parse decodes a raw frame from the wire. A frame with an unknown or
// missing type tag is rejected; callers log and drop it.
func Parse(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing frame: %w", err)
	}
	switch f.Type {
	case TypeRequest, TypeResponse, TypeEvent:
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

// Marshal encodes a frame for the wire.
func Marshal(f *Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshaling frame: %w", err)
	}
	return data, nil
}
