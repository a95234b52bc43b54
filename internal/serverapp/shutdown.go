package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"storefront-graphql/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition: the
// HTTP server first, then the gateway's backend connections, then
// telemetry.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run calls every cleanup, including after a failure, and returns the
// failures joined.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		start := time.Now()
		if err := item.fn(ctx); err != nil {
			logger.Warn("cleanup failed",
				slog.String("component", item.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
			continue
		}
		logger.Debug("released",
			slog.String("component", item.name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	s.items = nil
	return errors.Join(errs...)
}

// Shutdown stops serving and releases every acquired resource. Schema
// reloads are refused from the moment it starts. Only the first call does
// any work; later calls return its result.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		a.stopping = true
		a.started = false
		cleanup := a.cleanup
		a.cleanup = cleanupStack{}
		a.stateMu.Unlock()

		a.logger.Info("shutting down", slog.Int("resources", len(cleanup.items)))
		a.shutdownErr = cleanup.run(ctx, a.logger)
	})

	return a.shutdownErr
}
