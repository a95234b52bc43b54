package serverapp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/gateway"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/observability"
)

// App owns runtime resources for the storefront-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	meterProvider      *observability.MeterProvider
	graphqlMetrics     *observability.GraphQLMetrics
	schemaBuildMetrics *observability.SchemaBuildMetrics
	tracerProvider     *observability.TracerProvider

	manager *gateway.Manager

	graphqlHandler http.Handler
	adminHandler   http.Handler
	mux            *http.ServeMux
	handler        http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	stopping     bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the fully wrapped HTTP handler. It is nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}

// ReloadSchema rebuilds the stitched schema outside of the admin endpoint.
func (a *App) ReloadSchema(ctx context.Context) error {
	a.stateMu.Lock()
	manager, stopping := a.manager, a.stopping
	a.stateMu.Unlock()
	if stopping {
		return fmt.Errorf("app is shutting down")
	}
	if manager == nil {
		return fmt.Errorf("app is not initialized")
	}
	return manager.RefreshNow(ctx)
}
