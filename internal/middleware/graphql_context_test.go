package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-graphql/internal/gqlcontext"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphQLContextMiddleware_StoresContext(t *testing.T) {
	builder := gqlcontext.NewBuilder([]gqlcontext.Extension{{
		Name: "magento-graphql-loyalty",
		Extend: func(_ *graphql.Schema, base *gqlcontext.Context) (any, error) {
			return base.CurrencyCode(), nil
		},
	}}, nil)

	var seen *gqlcontext.Context
	handler := GraphQLContextMiddleware(ContextBuilderFunc(builder.Build))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gqlcontext.FromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Authorization", "Bearer customer-token")
	req.Header.Set("Content-Currency", "USD")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seen)
	require.NotNil(t, seen.MonolithToken)
	assert.Equal(t, "customer-token", *seen.MonolithToken)
	loyalty, ok := seen.Extension("magento-graphql-loyalty")
	assert.True(t, ok)
	assert.Equal(t, "USD", loyalty)
}

func TestGraphQLContextMiddleware_BuildFailureIsGraphQLError(t *testing.T) {
	builder := ContextBuilderFunc(func(http.Header) (*gqlcontext.Context, error) {
		return nil, errors.New(`context function of extension "magento-graphql-loyalty" failed`)
	})
	handler := GraphQLContextMiddleware(builder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body graphQLErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Contains(t, body.Errors[0].Message, "magento-graphql-loyalty")
}
