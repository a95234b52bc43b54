package serverapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/gateway"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/middleware"
	"storefront-graphql/internal/observability"
	"storefront-graphql/internal/stitch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultReloadTimeout = 60 * time.Second

// InitLogger builds the process logger and, when log export is enabled, the
// OTLP logger provider feeding it.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:       cfg.Observability.Logging.Level,
		Format:      cfg.Observability.Logging.Format,
		File:        cfg.Observability.Logging.File,
		ServiceName: cfg.Observability.ServiceName,
	}
	logger, err := logging.NewLogger(loggerCfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
		OTLPConfig:     exporterConfig(logsConfig),
	})
	if err != nil {
		_ = logger.Close()
		return nil, nil, err
	}

	logger.Info("OpenTelemetry logging initialized successfully")

	// The file handle is reopened by the exporting logger.
	_ = logger.Close()
	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger, err = logging.NewLogger(loggerCfg)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

func exporterConfig(otlp config.OTLPConfig) observability.OTLPExporterConfig {
	return observability.OTLPExporterConfig{
		Endpoint:          otlp.Endpoint,
		Protocol:          otlp.Protocol,
		Insecure:          otlp.Insecure,
		TLSCertFile:       otlp.TLSCertFile,
		TLSClientCertFile: otlp.TLSClientCertFile,
		TLSClientKeyFile:  otlp.TLSClientKeyFile,
		Headers:           otlp.Headers,
		Timeout:           otlp.Timeout,
		Compression:       otlp.Compression,
		RetryEnabled:      otlp.RetryEnabled,
		RetryMaxAttempts:  otlp.RetryMaxAttempts,
	}
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.GraphQLMetrics, *observability.SchemaBuildMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	graphqlMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}

	schemaBuildMetrics, err := observability.InitSchemaBuildMetrics(logger.Logger)
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized successfully")
	return meterProvider, graphqlMetrics, schemaBuildMetrics, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	tracerProvider, err := observability.InitTracerProvider(observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig:       exporterConfig(tracesConfig),
	})
	if err != nil {
		return nil, err
	}

	logger.Info("OpenTelemetry tracing initialized successfully")
	return tracerProvider, nil
}

func startGateway(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *observability.SchemaBuildMetrics) (*gateway.Manager, error) {
	return gateway.NewManager(ctx, gateway.Config{
		Build: gateway.BuildConfig{
			Config: cfg,
			Logger: logger,
		},
		Metrics:  metrics,
		GraphiQL: cfg.Server.GraphiQLEnabled,
	})
}

// buildGraphQLHandler wires the /graphql middleware chain:
//
//	logging -> analysis -> depth limit -> context -> metrics -> tracing -> batching -> schema
func buildGraphQLHandler(cfg *config.Config, logger *logging.Logger, manager *gateway.Manager, graphqlMetrics *observability.GraphQLMetrics) http.Handler {
	// Resolve per request so a reload takes effect immediately.
	schemaHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		manager.Handler().ServeHTTP(w, r)
	})

	batchingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := stitch.NewBatchingContext(r.Context())
		schemaHandler.ServeHTTP(w, r.WithContext(ctx))
	})

	handler := middleware.GraphQLTracingMiddleware()(batchingHandler)

	if cfg.Observability.MetricsEnabled && graphqlMetrics != nil {
		handler = middleware.GraphQLMetricsMiddleware(graphqlMetrics)(handler)
		logger.Info("GraphQL metrics middleware enabled")
	}

	handler = middleware.GraphQLContextMiddleware(manager)(handler)
	handler = middleware.GraphQLDepthLimitMiddleware(cfg.Server.GraphQLMaxDepth)(handler)
	handler = middleware.GraphQLRequestAnalysisMiddleware(manager)(handler)

	return middleware.LoggingMiddleware(logger)(handler)
}

// schemaReloader is the part of the gateway manager the admin endpoint needs.
type schemaReloader interface {
	RefreshNow(ctx context.Context) error
}

// buildAdminHandler returns nil when no admin token is configured, which
// leaves the reload route unmounted.
func buildAdminHandler(cfg *config.Config, logger *logging.Logger, reloader schemaReloader) (http.Handler, error) {
	if strings.TrimSpace(cfg.Server.AdminAuthToken) == "" {
		logger.Info("admin endpoints disabled - set server.admin_auth_token to enable schema reload")
		return nil, nil
	}

	authMiddleware, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
		Token:      cfg.Server.AdminAuthToken,
		HeaderName: cfg.Server.AdminAuthHeader,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("admin endpoints require token authentication")

	reload := schemaReloadHandler(reloader, reloadTimeout(cfg))
	return middleware.LoggingMiddleware(logger)(authMiddleware(reload)), nil
}

// reloadTimeout bounds one schema rebuild triggered by the admin endpoint
// or SIGHUP.
func reloadTimeout(cfg *config.Config) time.Duration {
	if cfg == nil || cfg.Monolith.IntrospectionTimeout <= 0 {
		return defaultReloadTimeout
	}
	return cfg.Monolith.IntrospectionTimeout
}

func buildRouter(cfg *config.Config, logger *logging.Logger, status schemaStatus, graphqlHandler http.Handler, adminHandler http.Handler, meterProvider *observability.MeterProvider) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler(status))

	if adminHandler != nil {
		mux.Handle("/admin/reload-schema", adminHandler)
		logger.Info("admin endpoint enabled", slog.String("path", "/admin/reload-schema"))
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics", "/admin/reload-schema":
		return rawPath
	default:
		return "/*"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", "/graphql"),
			slog.String("health_endpoint", "/health"),
			slog.Int("graphql_max_depth", cfg.Server.GraphQLMaxDepth),
			slog.Bool("graphiql_enabled", cfg.Server.GraphiQLEnabled),
			slog.String("log_level", cfg.Observability.Logging.Level),
			slog.String("log_format", cfg.Observability.Logging.Format),
		}

		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}

		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}

		logger.Info("server starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// schemaStatus reports the active schema for health checks.
type schemaStatus interface {
	CurrentSnapshot() *gateway.Snapshot
}

type healthResponse struct {
	Status      string   `json:"status"`
	Schema      string   `json:"schema"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	BuiltAt     string   `json:"built_at,omitempty"`
	Extensions  []string `json:"extensions,omitempty"`
}

// healthHandler reports healthy once a schema snapshot is being served.
func healthHandler(status schemaStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		var snapshot *gateway.Snapshot
		if status != nil {
			snapshot = status.CurrentSnapshot()
		}
		if snapshot == nil {
			reqLogger.Warn("health check failed", slog.String("check", "schema"))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy", Schema: "not_ready"})
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{
			Status:      "healthy",
			Schema:      "ready",
			Fingerprint: snapshot.Fingerprint,
			BuiltAt:     snapshot.BuiltAt.UTC().Format(time.RFC3339),
			Extensions:  snapshot.Extensions,
		})
	}
}

func schemaReloadHandler(reloader schemaReloader, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			_, _ = fmt.Fprint(w, `{"error":"method not allowed"}`)
			return
		}

		authCtx, authenticated := middleware.AuthFromContext(r.Context())
		logAttrs := []any{
			slog.String("operation", "schema_reload"),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Bool("authenticated", authenticated),
		}
		if authenticated {
			logAttrs = append(logAttrs,
				slog.String("authenticated_user", authCtx.Subject),
				slog.String("auth_method", authCtx.Method),
			)
		}
		reqLogger.Info("admin endpoint accessed", logAttrs...)

		refreshCtx, refreshCancel := context.WithTimeout(r.Context(), timeout)
		defer refreshCancel()

		if err := reloader.RefreshNow(refreshCtx); err != nil {
			reqLogger.Error("schema reload failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			// Build errors can carry backend URLs; keep them in the log.
			_, _ = fmt.Fprint(w, `{"status":"error","message":"schema reload failed"}`)
			return
		}

		reqLogger.Info("schema reloaded successfully", logAttrs...)
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"ok"}`)
	}
}
