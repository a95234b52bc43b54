package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaBuildMetrics holds metrics describing stitched schema builds.
type SchemaBuildMetrics struct {
	buildCounter    metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	extensionCount  atomic.Int64
	remoteCount     atomic.Int64
	lastSuccessUnix atomic.Int64
}

// InitSchemaBuildMetrics initializes schema build metrics.
func InitSchemaBuildMetrics(logger *slog.Logger) (*SchemaBuildMetrics, error) {
	meter := otel.Meter("storefront-graphql")

	buildCounter, err := meter.Int64Counter(
		"schema.build.total",
		metric.WithDescription("Total number of schema build attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema build counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"schema.build.errors.total",
		metric.WithDescription("Total number of failed schema build attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema build error counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"schema.build.duration",
		metric.WithDescription("Duration of schema builds in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema build duration histogram: %w", err)
	}

	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"schema.build.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful schema build"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema build last success gauge: %w", err)
	}

	extensionGauge, err := meter.Int64ObservableGauge(
		"schema.extensions.loaded",
		metric.WithDescription("Number of extensions contributing to the served schema"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create extension gauge: %w", err)
	}

	remoteGauge, err := meter.Int64ObservableGauge(
		"schema.remote_packages.loaded",
		metric.WithDescription("Number of remote extension packages contributing to the served schema"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote package gauge: %w", err)
	}

	metrics := &SchemaBuildMetrics{
		buildCounter: buildCounter,
		errorCounter: errorCounter,
		durationHist: durationHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			value := metrics.lastSuccessUnix.Load()
			if value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
				observer.ObserveInt64(extensionGauge, metrics.extensionCount.Load())
				observer.ObserveInt64(remoteGauge, metrics.remoteCount.Load())
			}
			return nil
		},
		lastSuccessGauge,
		extensionGauge,
		remoteGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema build gauge callback: %w", err)
	}

	logger.Info("schema build metrics initialized")
	return metrics, nil
}

// SchemaBuildResult summarizes a finished build for metrics.
type SchemaBuildResult struct {
	Duration       time.Duration
	Err            error
	Extensions     int
	RemotePackages int
}

// RecordBuild records a schema build attempt.
func (m *SchemaBuildMetrics) RecordBuild(ctx context.Context, result SchemaBuildResult) {
	if m == nil {
		return
	}
	success := result.Err == nil
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}

	m.buildCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.durationHist.Record(ctx, float64(result.Duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		m.errorCounter.Add(ctx, 1)
		return
	}

	m.extensionCount.Store(int64(result.Extensions))
	m.remoteCount.Store(int64(result.RemotePackages))
	m.lastSuccessUnix.Store(time.Now().Unix())
}
