package errors

import (
	"fmt"
	"time"
)

// GatewayError is the interface for all structured errors in gatewaykit.
// It extends the standard error interface with the context callers need to
// decide between retrying, surfacing, or degrading.
type GatewayError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for retry/handling decisions.
	Category() ErrorCategory

	// Retryable returns true if the operation may succeed on retry.
	Retryable() bool

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of GatewayError.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	retryable *bool // nil means use default based on category
	timestamp time.Time
	sessionKey string // related chat session, if applicable
	runID      string // related streaming run, if applicable
}

var _ GatewayError = (*Error)(nil)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// SessionKey returns the related session key, if set.
func (e *Error) SessionKey() string {
	return e.sessionKey
}

// RunID returns the related run identifier, if set.
func (e *Error) RunID() string {
	return e.runID
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithSessionKey sets the related session key.
func WithSessionKey(key string) Option {
	return func(e *Error) {
		e.sessionKey = key
	}
}

// WithRunID sets the related run identifier.
func WithRunID(id string) Option {
	return func(e *Error) {
		e.runID = id
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// NotConnected creates a not-connected error.
func NotConnected(message string, opts ...Option) *Error {
	return New(ErrCodeNotConnected, message, opts...)
}

// RequestTimeout creates a request timeout error.
func RequestTimeout(message string, opts ...Option) *Error {
	return New(ErrCodeRequestTimeout, message, opts...)
}

// ConnectionLost creates a connection lost error.
func ConnectionLost(message string, opts ...Option) *Error {
	return New(ErrCodeConnectionLost, message, opts...)
}

// Remote creates an error carrying a remote-supplied message verbatim.
func Remote(message string, opts ...Option) *Error {
	return New(ErrCodeRemote, message, opts...)
}

// ClientClosed creates a client closed error.
func ClientClosed(message string, opts ...Option) *Error {
	return New(ErrCodeClientClosed, message, opts...)
}

// Handshake creates a handshake failure error.
func Handshake(message string, opts ...Option) *Error {
	return New(ErrCodeHandshake, message, opts...)
}

// StreamFailed creates an error for a stream that produced no output.
func StreamFailed(runID, reason string, opts ...Option) *Error {
	opts = append([]Option{WithRunID(runID)}, opts...)
	return New(ErrCodeStreamFailed, fmt.Sprintf("stream %s failed: %s", runID, reason), opts...)
}

// InvalidConfig creates a configuration validation error.
func InvalidConfig(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidConfig, message, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
