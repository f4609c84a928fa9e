package gateway

// State is the connection lifecycle state of a Client.
type State int

const (
	// StateIdle means the client has never connected.
	StateIdle State = iota

	// StateConnecting means a dial plus handshake attempt is in flight.
	StateConnecting

	// StateConnected means the connection is usable for requests.
	StateConnected

	// StateDisconnected means the connection dropped unexpectedly and a
	// reconnect is pending or in progress.
	StateDisconnected

	// StateClosed means Close was called; the client will never reconnect.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
