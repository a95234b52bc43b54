package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/logging"
)

// ContextBuilder builds the per-request GraphQL context from request headers.
// The gateway manager satisfies it against its active snapshot.
type ContextBuilder interface {
	BuildContext(header http.Header) (*gqlcontext.Context, error)
}

// ContextBuilderFunc adapts a function to ContextBuilder.
type ContextBuilderFunc func(header http.Header) (*gqlcontext.Context, error)

// BuildContext implements ContextBuilder.
func (f ContextBuilderFunc) BuildContext(header http.Header) (*gqlcontext.Context, error) {
	return f(header)
}

// GraphQLContextMiddleware builds the GraphQL context once per request and
// stores it on the request context for resolvers and executors.
func GraphQLContextMiddleware(builder ContextBuilder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gc, err := builder.BuildContext(r.Header)
			if err != nil {
				logging.FromContext(r.Context()).Error("failed to build graphql context",
					slog.String("error", err.Error()),
				)
				writeGraphQLError(w, http.StatusInternalServerError, "%s", err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(gqlcontext.WithContext(r.Context(), gc)))
		})
	}
}

type graphQLErrorBody struct {
	Errors []graphQLErrorEntry `json:"errors"`
}

type graphQLErrorEntry struct {
	Message string `json:"message"`
}

func writeGraphQLError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(graphQLErrorBody{
		Errors: []graphQLErrorEntry{{Message: fmt.Sprintf(format, args...)}},
	})
}
