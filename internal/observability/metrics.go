package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds custom metrics for GraphQL operations and the
// delegated calls the gateway makes while resolving them.
type GraphQLMetrics struct {
	requestDuration   metric.Float64Histogram
	requestCounter    metric.Int64Counter
	errorCounter      metric.Int64Counter
	activeRequests    metric.Int64UpDownCounter
	queryDepth        metric.Int64Histogram
	delegateDuration  metric.Float64Histogram
	delegateErrors    metric.Int64Counter
	batchKeyCount     metric.Int64Histogram
	batchResultCount  metric.Int64Histogram
	batchCacheHits    metric.Int64Counter
	batchCacheMisses  metric.Int64Counter
	batchQueriesSaved metric.Int64Counter
	remoteInvocations metric.Int64Counter
}

// InitGraphQLMetrics initializes GraphQL-specific metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("storefront-graphql")

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	queryDepth, err := meter.Int64Histogram(
		"graphql.query.depth",
		metric.WithDescription("Depth of GraphQL queries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}

	delegateDuration, err := meter.Float64Histogram(
		"graphql.delegate.duration",
		metric.WithDescription("Duration of requests delegated to backend schemas in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delegate duration histogram: %w", err)
	}

	delegateErrors, err := meter.Int64Counter(
		"graphql.delegate.errors.total",
		metric.WithDescription("Number of delegated requests that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create delegate error counter: %w", err)
	}

	batchKeyCount, err := meter.Int64Histogram(
		"graphql.batch.key_count",
		metric.WithDescription("Number of merge keys included in a batched delegation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch key count histogram: %w", err)
	}

	batchResultCount, err := meter.Int64Histogram(
		"graphql.batch.result_count",
		metric.WithDescription("Number of entities returned by a batched delegation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch result count histogram: %w", err)
	}

	batchCacheHits, err := meter.Int64Counter(
		"graphql.batch.cache_hits",
		metric.WithDescription("Number of batch cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch cache hits counter: %w", err)
	}

	batchCacheMisses, err := meter.Int64Counter(
		"graphql.batch.cache_misses",
		metric.WithDescription("Number of batch cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch cache misses counter: %w", err)
	}

	batchQueriesSaved, err := meter.Int64Counter(
		"graphql.batch.queries_saved",
		metric.WithDescription("Number of backend requests saved by batching"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch queries saved counter: %w", err)
	}

	remoteInvocations, err := meter.Int64Counter(
		"graphql.remote.invocations.total",
		metric.WithDescription("Number of remote extension function invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote invocation counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration:   requestDuration,
		requestCounter:    requestCounter,
		errorCounter:      errorCounter,
		activeRequests:    activeRequests,
		queryDepth:        queryDepth,
		delegateDuration:  delegateDuration,
		delegateErrors:    delegateErrors,
		batchKeyCount:     batchKeyCount,
		batchResultCount:  batchResultCount,
		batchCacheHits:    batchCacheHits,
		batchCacheMisses:  batchCacheMisses,
		batchQueriesSaved: batchQueriesSaved,
		remoteInvocations: remoteInvocations,
	}, nil
}

// RequestOutcome describes one finished GraphQL request.
type RequestOutcome struct {
	Duration      time.Duration
	OperationType string
	// Store is the store view code from the Store header; empty means the
	// monolith's default store.
	Store      string
	StatusCode int
	// ErrorCount is the length of the response's errors array.
	ErrorCount int
	// Depth is the selection depth of the operation, 0 when unknown.
	Depth int
}

// RecordRequest records a GraphQL request with its duration and outcome.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, o RequestOutcome) {
	if m == nil {
		return
	}
	store := o.Store
	if store == "" {
		store = "default"
	}
	errorCount := o.ErrorCount
	if errorCount == 0 && o.StatusCode >= 400 {
		errorCount = 1
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", o.OperationType),
		attribute.String("store", store),
		attribute.Bool("has_errors", errorCount > 0),
	}

	m.requestDuration.Record(ctx, float64(o.Duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if errorCount > 0 {
		m.errorCounter.Add(ctx, int64(errorCount), metric.WithAttributes(
			attribute.String("operation_type", o.OperationType),
			attribute.String("store", store),
		))
	}
	if o.Depth > 0 {
		m.queryDepth.Record(ctx, int64(o.Depth), metric.WithAttributes(
			attribute.String("operation_type", o.OperationType),
		))
	}
}

// RecordDelegation records one request sent to a backend subschema.
func (m *GraphQLMetrics) RecordDelegation(ctx context.Context, subschema string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("subschema", subschema),
		attribute.Bool("has_errors", err != nil),
	)
	m.delegateDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.delegateErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("subschema", subschema)))
	}
}

// RecordBatchKeyCount records how many distinct keys one batched delegation carried.
func (m *GraphQLMetrics) RecordBatchKeyCount(ctx context.Context, count int64, typeName string) {
	if m == nil {
		return
	}
	m.batchKeyCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("type_name", typeName),
	))
}

func (m *GraphQLMetrics) RecordBatchResultCount(ctx context.Context, count int64, typeName string) {
	if m == nil {
		return
	}
	m.batchResultCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("type_name", typeName),
	))
}

func (m *GraphQLMetrics) RecordBatchCacheHit(ctx context.Context, typeName string) {
	if m == nil {
		return
	}
	m.batchCacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type_name", typeName),
	))
}

func (m *GraphQLMetrics) RecordBatchCacheMiss(ctx context.Context, typeName string) {
	if m == nil {
		return
	}
	m.batchCacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type_name", typeName),
	))
}

// RecordBatchQueriesSaved counts the per-key requests a batch replaced.
func (m *GraphQLMetrics) RecordBatchQueriesSaved(ctx context.Context, count int64, typeName string) {
	if m == nil || count <= 0 {
		return
	}
	m.batchQueriesSaved.Add(ctx, count, metric.WithAttributes(
		attribute.String("type_name", typeName),
	))
}

// RecordRemoteInvocation counts a call to a remote extension function.
func (m *GraphQLMetrics) RecordRemoteInvocation(ctx context.Context, pkg string, err error) {
	if m == nil {
		return
	}
	m.remoteInvocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("package", pkg),
		attribute.Bool("has_errors", err != nil),
	))
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	m.activeRequests.Add(ctx, -1)
}

// InitMetrics initializes all custom metrics and returns the GraphQLMetrics instance
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	metrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return metrics, nil
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores GraphQL metrics in the provided context.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext retrieves GraphQL metrics from the context.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	if ctx == nil {
		return nil
	}
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
