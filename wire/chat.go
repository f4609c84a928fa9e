package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChatState is the lifecycle state carried by a chat event.
type ChatState string

const (
	StateDelta   ChatState = "delta"
	StateFinal   ChatState = "final"
	StateAborted ChatState = "aborted"
	StateError   ChatState = "error"
)

// ContentPart is one typed part of a chat message. Only text parts are
// consumed by this client; other types pass through untouched.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatMessage is the message body of a chat event.
type ChatMessage struct {
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ChatEvent is the payload of a chat-kind event frame. The gateway emits
// one per step of a streaming run; Message carries the full transcript so
// far, not a true delta.
type ChatEvent struct {
	RunID        string       `json:"runId"`
	SessionKey   string       `json:"sessionKey,omitempty"`
	Seq          uint64       `json:"seq,omitempty"`
	State        ChatState    `json:"state"`
	Message      *ChatMessage `json:"message,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// Text returns the concatenation of all text-typed content parts, in order.
func (e *ChatEvent) Text() string {
	if e.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range e.Message.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// Terminal reports whether the event ends its run.
func (e *ChatEvent) Terminal() bool {
	switch e.State {
	case StateFinal, StateAborted, StateError:
		return true
	}
	return false
}

// ParseChatEvent decodes a chat event from an event frame payload.
func ParseChatEvent(payload json.RawMessage) (*ChatEvent, error) {
	var ev ChatEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("parsing chat event: %w", err)
	}
	if ev.RunID == "" {
		return nil, fmt.Errorf("chat event missing runId")
	}
	return &ev, nil
}

// ClientInfo identifies this client to the gateway during the handshake.
type ClientInfo struct {
	ID          string `json:"id"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
	Mode        string `json:"mode"`
	DisplayName string `json:"displayName,omitempty"`
}

// AuthParams carries optional handshake credentials.
type AuthParams struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// ConnectParams is the params block of the connect handshake request.
type ConnectParams struct {
	MinProtocol int         `json:"minProtocol"`
	MaxProtocol int         `json:"maxProtocol"`
	Client      ClientInfo  `json:"client"`
	Role        string      `json:"role"`
	Scopes      []string    `json:"scopes"`
	Auth        *AuthParams `json:"auth,omitempty"`
}

// ChatSendParams is the params block of a chat.send request. Deliver is
// always false for this client: chunks go back to the caller, never to an
// end-user surface directly.
type ChatSendParams struct {
	SessionKey     string `json:"sessionKey"`
	Message        string `json:"message"`
	Deliver        bool   `json:"deliver"`
	IdempotencyKey string `json:"idempotencyKey"`
	TimeoutMs      int    `json:"timeoutMs,omitempty"`
}

// ChatAbortParams is the params block of a chat.abort request. Abort is
// advisory; the run still terminates through the normal event path.
type ChatAbortParams struct {
	SessionKey string `json:"sessionKey"`
	RunID      string `json:"runId"`
}
