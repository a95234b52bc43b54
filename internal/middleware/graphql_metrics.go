package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"storefront-graphql/internal/gqlrequest"
	"storefront-graphql/internal/observability"
)

// GraphQLMetricsMiddleware puts metrics in the request context for the
// stitcher's delegation counters and records one request outcome per POST:
// operation type, store view, depth and how many errors the client saw.
func GraphQLMetricsMiddleware(metrics *observability.GraphQLMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// GraphiQL page loads
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ctx := observability.ContextWithGraphQLMetrics(r.Context(), metrics)
			r = r.WithContext(ctx)

			metrics.IncrementActiveRequests(ctx)
			defer metrics.DecrementActiveRequests(ctx)

			start := time.Now()

			analysis := gqlrequest.AnalysisFromContext(ctx)
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			outcome := observability.RequestOutcome{
				OperationType: "unknown",
				Store:         r.Header.Get("Store"),
				Depth:         analysis.SelectionDepth,
			}
			if op := strings.TrimSpace(analysis.OperationType); op != "" {
				outcome.OperationType = op
			}
			if meta, ok := gqlrequest.ExecMetaFromContext(ctx); ok {
				outcome.Store = meta.Store
			}

			wrapped := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(wrapped, r)

			outcome.Duration = time.Since(start)
			outcome.StatusCode = wrapped.statusCode
			outcome.ErrorCount = countGraphQLErrors(wrapped.body.Bytes())
			metrics.RecordRequest(ctx, outcome)
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       bytes.Buffer
}

func (w *metricsResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// countGraphQLErrors returns the length of the errors array of a GraphQL
// response body, or 0 when the body is not a GraphQL response.
func countGraphQLErrors(body []byte) int {
	var payload struct {
		Errors []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &payload); err != nil {
		return 0
	}
	return len(payload.Errors)
}
