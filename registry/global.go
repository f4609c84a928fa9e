package registry

import (
	"context"
	"os"
	"sync"

	"github.com/driftlock/gatewaykit/config"
	"github.com/driftlock/gatewaykit/logging"
)

var (
	globalOnce sync.Once
	global     *Registry
)

func std() *Registry {
	globalOnce.Do(func() {
		global = New(logging.New(os.Stderr, os.Getenv("GATEWAYKIT_LOG_LEVEL")))
	})
	return global
}

// Acquire returns the process-wide shared handle for cfg. See
// Registry.Acquire for replacement semantics.
func Acquire(ctx context.Context, cfg config.Config) (*Handle, error) {
	return std().Acquire(ctx, cfg)
}

// CloseGlobal tears down the process-wide handle, if any.
func CloseGlobal() error {
	return std().Close()
}
