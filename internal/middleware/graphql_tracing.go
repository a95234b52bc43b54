package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"storefront-graphql/internal/gqlrequest"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/observability"
	"storefront-graphql/internal/stitch"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// GraphQLTracingMiddleware instruments GraphQL execution with an inner span.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil || strings.TrimSpace(analysis.Envelope.Query) == "" {
				next.ServeHTTP(w, r)
				return
			}
			meta, _ := gqlrequest.ExecMetaFromContext(r.Context())

			tracer := otel.Tracer("storefront-graphql/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()
			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(observability.GraphQLSpanAttributes(analysis, meta)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))

			// Delegation totals are only known once execution finished.
			batchState, ok := stitch.GetBatchState(ctx)
			if !ok || !span.IsRecording() {
				return
			}
			hits := batchState.GetCacheHits()
			misses := batchState.GetCacheMisses()
			span.SetAttributes(
				attribute.Int("graphql.delegation.requests", int(batchState.GetRequests())),
				attribute.Int("graphql.delegation.cache_hits", int(hits)),
				attribute.Int("graphql.delegation.cache_misses", int(misses)),
			)
			if total := hits + misses; total > 0 {
				span.SetAttributes(attribute.Float64("graphql.delegation.cache_hit_ratio", float64(hits)/float64(total)))
			}
		})
	}
}
