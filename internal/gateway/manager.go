// Package gateway assembles the stitched storefront schema and serves it
// from an atomically swapped snapshot.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/gqlrequest"
	"storefront-graphql/internal/grpcjson"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/observability"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/handler"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// ErrNotReady is returned when no schema has been built yet.
var ErrNotReady = errors.New("schema not ready")

// Snapshot contains an immutable view of the current schema state.
type Snapshot struct {
	Schema         *stitch.Schema
	Handler        http.Handler
	ContextBuilder *gqlcontext.Builder
	Extensions     []string
	BuiltAt        time.Time
	Fingerprint    string
}

// Config controls the gateway manager.
type Config struct {
	Build    BuildConfig
	Metrics  *observability.SchemaBuildMetrics
	GraphiQL bool
}

// Manager builds schema snapshots and swaps them on demand.
type Manager struct {
	build    BuildConfig
	logger   *logging.Logger
	metrics  *observability.SchemaBuildMetrics
	graphiQL bool
	conns    []*grpc.ClientConn

	// rebuilds are serialized; readers only touch active.
	mu     sync.Mutex
	active atomic.Pointer[Snapshot]
}

// NewManager dials the configured gRPC services, builds the initial
// snapshot and returns a manager.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Build.Config == nil {
		return nil, fmt.Errorf("gateway manager requires a configuration")
	}
	if cfg.Build.Logger == nil {
		cfg.Build.Logger = logging.Nop()
	}

	m := &Manager{
		build:    cfg.Build,
		logger:   cfg.Build.Logger.WithFields(slog.String("component", "gateway")),
		metrics:  cfg.Metrics,
		graphiQL: cfg.GraphiQL,
	}
	m.build.Logger = m.logger

	app := cfg.Build.Config
	if app.Catalog.Enabled && m.build.CatalogConn == nil {
		conn, err := dialService(app.Catalog)
		if err != nil {
			return nil, err
		}
		m.conns = append(m.conns, conn)
		m.build.CatalogConn = conn
	}
	if app.Search.Enabled && m.build.SearchConn == nil {
		conn, err := dialService(app.Search)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m.conns = append(m.conns, conn)
		m.build.SearchConn = conn
	}

	if err := m.refresh(ctx, "startup"); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

func dialService(svc config.GRPCServiceConfig) (*grpc.ClientConn, error) {
	var opts []grpc.DialOption
	if !svc.Insecure {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	return grpcjson.Dial(svc.Address(), opts...)
}

// Handler returns the HTTP handler for the current schema snapshot.
func (m *Manager) Handler() http.Handler {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil || snapshot.Handler == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, ErrNotReady.Error(), http.StatusServiceUnavailable)
		})
	}
	return snapshot.Handler
}

// CurrentSnapshot returns the active schema snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// Fingerprint returns the SDL hash of the active schema, or "" before the
// first build.
func (m *Manager) Fingerprint() string {
	if snapshot := m.CurrentSnapshot(); snapshot != nil {
		return snapshot.Fingerprint
	}
	return ""
}

// BuildContext builds the per-request GraphQL context against the active
// snapshot.
func (m *Manager) BuildContext(header http.Header) (*gqlcontext.Context, error) {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil || snapshot.ContextBuilder == nil {
		return nil, ErrNotReady
	}
	return snapshot.ContextBuilder.Build(header)
}

// RefreshNow rebuilds the schema and swaps it in. The previous snapshot
// keeps serving when the build fails.
func (m *Manager) RefreshNow(ctx context.Context) error {
	return m.refresh(ctx, "manual")
}

func (m *Manager) refresh(ctx context.Context, trigger string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tracer := otel.Tracer("storefront-graphql/gateway")
	ctx, span := tracer.Start(ctx, "gateway.build_schema")
	span.SetAttributes(attribute.String("schema.build_trigger", trigger))
	defer span.End()

	start := time.Now()
	snapshot, result, err := m.buildSnapshot(ctx)
	record := observability.SchemaBuildResult{Duration: time.Since(start), Err: err}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.RecordBuild(ctx, record)
		m.logger.Error("schema build failed",
			slog.String("trigger", trigger),
			slog.String("error", err.Error()),
		)
		return err
	}

	record.Extensions = len(result.Extensions)
	record.RemotePackages = result.RemotePackages
	m.metrics.RecordBuild(ctx, record)

	previous := m.active.Swap(snapshot)
	changed := previous == nil || previous.Fingerprint != snapshot.Fingerprint
	span.SetAttributes(
		attribute.String("schema.fingerprint", snapshot.Fingerprint),
		attribute.Bool("schema.changed", changed),
	)
	m.logger.Info("schema build complete",
		slog.String("trigger", trigger),
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Bool("changed", changed),
		slog.Int("extensions", len(result.Extensions)),
		slog.Duration("duration", record.Duration),
	)
	return nil
}

func (m *Manager) buildSnapshot(ctx context.Context) (*Snapshot, *BuildResult, error) {
	result, err := Build(ctx, m.build)
	if err != nil {
		return nil, nil, err
	}
	graphqlHandler := handler.New(&handler.Config{
		Schema:     result.Schema.Executable(),
		Pretty:     true,
		GraphiQL:   m.graphiQL,
		Playground: m.graphiQL,
	})
	return &Snapshot{
		Schema:         result.Schema,
		Handler:        graphqlHandler,
		ContextBuilder: result.ContextBuilder,
		Extensions:     result.Extensions,
		BuiltAt:        time.Now(),
		Fingerprint:    gqlrequest.FramedSHA256(result.Schema.CanonicalSDL()),
	}, result, nil
}

// Close releases the gRPC connections dialed by the manager.
func (m *Manager) Close() error {
	var errs []error
	for _, conn := range m.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.conns = nil
	return errors.Join(errs...)
}
