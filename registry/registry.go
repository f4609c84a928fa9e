package registry

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftlock/gatewaykit/chat"
	"github.com/driftlock/gatewaykit/config"
	"github.com/driftlock/gatewaykit/errors"
	"github.com/driftlock/gatewaykit/gateway"
	"github.com/driftlock/gatewaykit/progress"
)

// Handle bundles the shared client stack built for one gateway
// configuration. All fields are safe for concurrent use.
type Handle struct {
	Client   *gateway.Client
	Cache    *progress.Cache
	Streamer *chat.Streamer

	fingerprint string
}

// Fingerprint identifies the configuration this handle was built for.
func (h *Handle) Fingerprint() string {
	return h.fingerprint
}

// Close tears down the client and its progress cache.
func (h *Handle) Close() error {
	err := h.Client.Close()
	if cerr := h.Cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// Registry hands out at most one client stack per process, keyed by the
// connection-relevant fingerprint of the configuration. Acquiring with a
// configuration whose fingerprint differs from the current handle's closes
// the predecessor and builds a replacement.
type Registry struct {
	logger zerolog.Logger

	mu      sync.Mutex
	current *Handle
}

// New creates an empty registry.
func New(logger zerolog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Acquire returns the shared handle for cfg, building and connecting it on
// first use. Tunable fields (timeouts, intervals) do not participate in
// the fingerprint, so changing them alone keeps the existing handle.
func (r *Registry) Acquire(ctx context.Context, cfg config.Config) (*Handle, error) {
	fp := cfg.Fingerprint()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		if r.current.fingerprint == fp {
			return r.current, nil
		}
		r.logger.Info().Msg("gateway configuration changed, replacing shared client")
		if err := r.current.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("closing superseded client")
		}
		r.current = nil
	}

	handle, err := r.build(ctx, cfg, fp)
	if err != nil {
		return nil, err
	}
	r.current = handle
	return handle, nil
}

// Close tears down the current handle, if any. The registry stays usable;
// the next Acquire builds a fresh handle.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}

func (r *Registry) build(ctx context.Context, cfg config.Config, fp string) (*Handle, error) {
	client, err := gateway.New(cfg, r.logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "connecting shared client")
	}

	cache, err := progress.NewCache(progress.DefaultTTL, r.logger)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "building progress cache")
	}

	return &Handle{
		Client:      client,
		Cache:       cache,
		Streamer:    chat.NewStreamer(client, cache, r.logger),
		fingerprint: fp,
	}, nil
}
