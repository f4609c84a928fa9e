// Package gateway maintains one persistent WebSocket connection to a
// remote gateway and multiplexes two protocols over it: correlated
// request/response calls and an out-of-band event stream partitioned by
// run identifier.
//
// # Connection lifecycle
//
// A Client moves through idle → connecting → connected → (closed |
// disconnected → connecting). Connect de-duplicates concurrent callers
// onto a single physical attempt, and a connection only counts as usable
// after the connect handshake succeeds. When an established connection
// drops, every pending request is rejected, every active stream listener
// receives a synthetic error event, and a supervised reconnect loop takes
// over with exponential backoff (1s doubling to a 30s cap, reset after a
// successful reconnect). Close stops all of it for good.
//
// # Correlation
//
// Request registers a pending entry under a fresh correlation id, writes
// the frame, and suspends the caller until the matching response or the
// per-request timeout. Responses match solely by id, so concurrent
// requests never block one another. Late responses to entries already
// timed out are dropped.
//
// # Event routing
//
// Event frames are demultiplexed by run identifier to listeners registered
// with Subscribe. A global per-connection sequence cursor detects gaps;
// gaps are logged, never corrected, and never block delivery. Malformed
// frames are logged and discarded.
package gateway
