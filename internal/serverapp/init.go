package serverapp

import (
	"context"
	"fmt"
	"log/slog"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, graphqlMetrics, schemaBuildMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Info("building storefront schema",
		slog.String("monolith_url", a.cfg.Monolith.GraphQLURL),
		slog.Bool("catalog_enabled", a.cfg.Catalog.Enabled),
		slog.Bool("search_enabled", a.cfg.Search.Enabled),
		slog.Bool("premium_search_enabled", a.cfg.PremiumSearch.Enabled),
		slog.Bool("remote_enabled", a.cfg.Remote.Enabled),
		slog.Int("extension_roots", len(a.cfg.Extensions.Roots)),
	)

	manager, err := startGateway(ctx, a.cfg, a.logger, schemaBuildMetrics)
	if err != nil {
		return fmt.Errorf("failed to build gateway schema: %w", err)
	}
	cleanup.push("gateway", func(_ context.Context) error {
		return manager.Close()
	})

	graphqlHandler := buildGraphQLHandler(a.cfg, a.logger, manager, graphqlMetrics)

	adminHandler, err := buildAdminHandler(a.cfg, a.logger, manager)
	if err != nil {
		return fmt.Errorf("failed to initialize admin handler: %w", err)
	}

	mux := buildRouter(a.cfg, a.logger, manager, graphqlHandler, adminHandler, meterProvider)
	handler := wrapHTTPHandler(a.cfg, a.logger, mux)

	serverAddr := a.cfg.Server.ListenAddress()
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.graphqlMetrics = graphqlMetrics
	a.schemaBuildMetrics = schemaBuildMetrics
	a.tracerProvider = tracerProvider
	a.manager = manager
	a.graphqlHandler = graphqlHandler
	a.adminHandler = adminHandler
	a.mux = mux
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
