package middleware

import (
	"net/http"

	"storefront-graphql/internal/gqlrequest"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/observability"
)

// FingerprintSource reports the fingerprint of the schema serving requests.
type FingerprintSource interface {
	Fingerprint() string
}

// GraphQLRequestAnalysisMiddleware decodes and analyzes the GraphQL request once
// and stores derived metadata in request context for downstream middleware.
func GraphQLRequestAnalysisMiddleware(schema FingerprintSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)

			meta := gqlrequest.ExecMeta{
				Store:         r.Header.Get("Store"),
				Currency:      r.Header.Get("Content-Currency"),
				OperationName: analysis.OperationName,
				OperationType: analysis.OperationType,
				OperationHash: analysis.OperationHash,
			}
			if schema != nil {
				meta.Fingerprint = schema.Fingerprint()
			}
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			logger := logging.FromContext(ctx)
			logFields := observability.GraphQLLogFields(ctx, analysis, meta)
			if len(logFields) > 0 {
				ctx = logging.WithLogger(ctx, logger.WithFields(logFields...))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GraphQLDepthLimitMiddleware rejects operations nested deeper than maxDepth
// before they reach the stitched schema. A zero limit disables the check.
func GraphQLDepthLimitMiddleware(maxDepth int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxDepth <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis != nil && analysis.SelectionDepth > maxDepth {
				writeGraphQLError(w, http.StatusBadRequest,
					"query exceeds maximum depth of %d (depth: %d)", maxDepth, analysis.SelectionDepth)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
