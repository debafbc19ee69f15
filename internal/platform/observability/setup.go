package observability

import (
	"context"
	"log/slog"
	"sync"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
}

// ShutdownFunc allows callers to tear down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	mu     sync.RWMutex
	sink   *slog.Logger
	active Config
)

func current() (*slog.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return sink, active.Enabled
}

// Setup routes spans and metrics to logger while cfg.Enabled is set.
// Calling it again replaces the previous sink.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	mu.Lock()
	sink = logger
	active = cfg
	mu.Unlock()

	if logger != nil {
		if cfg.Enabled {
			logger.InfoContext(ctx, "[OBSERVABILITY] span and metric hooks enabled")
		} else {
			logger.InfoContext(ctx, "[OBSERVABILITY] disabled")
		}
	}
	return func(context.Context) error {
		mu.Lock()
		sink = nil
		active = Config{}
		mu.Unlock()
		return nil
	}, nil
}

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, enabled := current()
	return enabled
}
