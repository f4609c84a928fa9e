// Package chat turns the gateway's per-run event stream into an ordered
// sequence of text increments.
//
// A Streamer sends a chat request over an established gateway client and
// returns a Stream whose channel yields only new suffixes of the
// accumulated reply. Duplicate or stale events produce no output. When a
// run ends through an error after partial output has already been
// delivered, the stream completes degraded instead of failing, and the
// partial transcript is retained in the progress cache for later lookup.
package chat
