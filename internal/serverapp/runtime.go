package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
)

// Reasons returned by WaitForStop.
const (
	StopReasonSignal      = "signal"
	StopReasonServerError = "server_error"
)

// Start launches the HTTP server goroutine. Init must have built the first
// schema.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.stopping {
		return nil, fmt.Errorf("app is shutting down")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	if a.manager != nil {
		a.logger.Info("serving stitched schema",
			slog.String("address", a.serverAddr),
			slog.String("fingerprint", a.manager.Fingerprint()),
		)
	}
	return a.serverErrors, nil
}

// WaitForStop blocks until a shutdown signal arrives or the server fails.
// SIGHUP rebuilds the schema and keeps waiting; a failed rebuild leaves
// the current schema serving.
func (a *App) WaitForStop(signals <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if signals == nil && serverErrors == nil {
		return "", fmt.Errorf("both signals and serverErrors channels are nil")
	}

	for {
		select {
		case err := <-serverErrors:
			if err == nil {
				return StopReasonServerError, fmt.Errorf("server stopped unexpectedly")
			}
			return StopReasonServerError, fmt.Errorf("server failed: %w", err)
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				a.reloadOnSignal(sig)
				continue
			}
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			return StopReasonSignal, nil
		}
	}
}

func (a *App) reloadOnSignal(sig os.Signal) {
	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout(a.cfg))
	defer cancel()

	a.logger.Info("reloading schema", slog.String("signal", sig.String()))
	if err := a.ReloadSchema(ctx); err != nil {
		a.logger.Error("schema reload failed",
			slog.String("signal", sig.String()),
			slog.String("error", err.Error()),
		)
	}
}
