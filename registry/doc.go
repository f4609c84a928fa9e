// Package registry shares one gateway client stack across a process.
//
// # Overview
//
// Building a gateway client is not free: it owns a websocket connection,
// a reconnect loop, and a progress cache. Callers that only hold a
// configuration go through the registry instead of constructing their
// own; the registry hands out one Handle per distinct configuration
// fingerprint and reuses it for every caller with an equivalent
// configuration.
//
// The fingerprint covers the connection-relevant fields (gateway URL and
// credentials). Acquiring with a configuration whose fingerprint differs
// from the current handle's closes the old client and builds a new one.
//
// # Basic Usage
//
//	cfg, _, _ := config.Load()
//	handle, err := registry.Acquire(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	stream, err := handle.Streamer.Stream(ctx, "session-1", "hello")
//
// CloseGlobal tears down the shared handle, typically on process exit:
//
//	defer registry.CloseGlobal()
//
// For tests or embedders that want isolated lifecycles, New builds an
// independent Registry with the same semantics.
package registry
