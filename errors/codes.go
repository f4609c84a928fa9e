package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: connection not yet established, request timeouts, lost links.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: remote rejection, closed client, invalid configuration.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for gateway client failures.
const (
	// Transient errors
	ErrCodeNotConnected   ErrorCode = "NOT_CONNECTED"   // Request attempted without a usable connection
	ErrCodeRequestTimeout ErrorCode = "REQUEST_TIMEOUT" // No response within the request timeout window
	ErrCodeConnectionLost ErrorCode = "CONNECTION_LOST" // Connection dropped with requests in flight

	// Permanent errors
	ErrCodeRemote        ErrorCode = "REMOTE_ERROR"     // Remote peer answered with ok:false
	ErrCodeClientClosed  ErrorCode = "CLIENT_CLOSED"    // Client was explicitly closed
	ErrCodeHandshake     ErrorCode = "HANDSHAKE_FAILED" // Gateway rejected the connect handshake
	ErrCodeStreamFailed  ErrorCode = "STREAM_FAILED"    // Stream ended before producing any output
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"   // Connection configuration failed validation
	ErrCodeCanceled      ErrorCode = "CANCELED"         // Caller canceled the operation

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeNotConnected, ErrCodeRequestTimeout, ErrCodeConnectionLost:
		return CategoryTransient

	case ErrCodeRemote, ErrCodeClientClosed, ErrCodeHandshake,
		ErrCodeStreamFailed, ErrCodeInvalidConfig, ErrCodeCanceled:
		return CategoryPermanent

	default:
		return CategoryInternal
	}
}

// Description returns a human-readable default message for the code.
func (c ErrorCode) Description() string {
	switch c {
	case ErrCodeNotConnected:
		return "not connected to gateway"
	case ErrCodeRequestTimeout:
		return "request timed out"
	case ErrCodeConnectionLost:
		return "connection lost"
	case ErrCodeRemote:
		return "remote error"
	case ErrCodeClientClosed:
		return "client closed"
	case ErrCodeHandshake:
		return "handshake failed"
	case ErrCodeStreamFailed:
		return "stream failed"
	case ErrCodeInvalidConfig:
		return "invalid configuration"
	case ErrCodeCanceled:
		return "operation canceled"
	default:
		return "internal error"
	}
}
