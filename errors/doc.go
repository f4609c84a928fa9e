// Package errors provides a structured error taxonomy for the gateway
// client. It defines error codes and categories that let callers decide
// consistently between retrying, surfacing, and degrading.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Temporary failures where retry may succeed (no connection,
//     request timeout, lost link)
//   - Permanent: Failures where retry will not help (remote rejection,
//     closed client, invalid configuration)
//   - Internal: Unexpected errors indicating bugs or system failures
//
// # Error Codes
//
// Each error has a specific code identifying the failure:
//
//   - NOT_CONNECTED: Request attempted without a usable connection
//   - REQUEST_TIMEOUT: No response within the timeout window
//   - CONNECTION_LOST: Connection dropped with requests in flight
//   - REMOTE_ERROR: Remote peer answered with ok:false
//   - CLIENT_CLOSED: Client was explicitly closed
//   - And more...
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeRequestTimeout, "no response for connect")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "sending chat request")
//
// Check if an error is retryable:
//
//	if errors.IsRetryable(err) {
//	    // retry logic
//	}
//
// The retry semantics are intentionally narrow: only the connection itself
// is ever retried automatically (by the connection manager's reconnect
// loop). In-flight requests are never silently replayed; a transient code
// tells the caller that their own retry may succeed.
package errors
