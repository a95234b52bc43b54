package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-graphql/internal/gqlrequest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFingerprint string

func (f staticFingerprint) Fingerprint() string { return string(f) }

func graphQLPost(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGraphQLRequestAnalysisMiddleware_PopulatesContextAndRewindsBody(t *testing.T) {
	var (
		seenAnalysis *gqlrequest.Analysis
		seenMeta     gqlrequest.ExecMeta
		seenMetaOK   bool
		bodyCopy     string
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAnalysis = gqlrequest.AnalysisFromContext(r.Context())
		seenMeta, seenMetaOK = gqlrequest.ExecMetaFromContext(r.Context())
		bodyBytes, _ := io.ReadAll(r.Body)
		bodyCopy = string(bodyBytes)
		w.WriteHeader(http.StatusOK)
	})

	req := graphQLPost(`{"query":"mutation AddToCart { addSimpleProductsToCart(input: {}) { cart { id } } }","operationName":"AddToCart","variables":{"x":1}}`)
	req.Header.Set("Store", "default")
	req.Header.Set("Content-Currency", "EUR")
	GraphQLRequestAnalysisMiddleware(staticFingerprint("abc123"))(next).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, seenAnalysis)
	require.True(t, seenMetaOK)
	assert.Equal(t, "mutation", seenAnalysis.OperationType)
	assert.NotEmpty(t, seenAnalysis.OperationHash)
	assert.Equal(t, gqlrequest.ExecMeta{
		Store:         "default",
		Currency:      "EUR",
		Fingerprint:   "abc123",
		OperationName: "AddToCart",
		OperationType: "mutation",
		OperationHash: seenAnalysis.OperationHash,
	}, seenMeta)
	assert.Contains(t, bodyCopy, `"operationName":"AddToCart"`)
}

func TestGraphQLRequestAnalysisMiddleware_NilFingerprintSource(t *testing.T) {
	var meta gqlrequest.ExecMeta
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta, _ = gqlrequest.ExecMetaFromContext(r.Context())
	})

	GraphQLRequestAnalysisMiddleware(nil)(next).ServeHTTP(httptest.NewRecorder(), graphQLPost(`{"query":"{ storeConfig { code } }"}`))
	assert.Empty(t, meta.Fingerprint)
	assert.Equal(t, "query", meta.OperationType)
}

func TestGraphQLDepthLimitMiddleware(t *testing.T) {
	handler := GraphQLRequestAnalysisMiddleware(nil)(
		GraphQLDepthLimitMiddleware(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})),
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, graphQLPost(`{"query":"{ cart(cart_id: \"c1\") { id } }"}`))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, graphQLPost(`{"query":"{ cart(cart_id: \"c1\") { items { product { sku } } } }"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body graphQLErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "query exceeds maximum depth of 2 (depth: 4)", body.Errors[0].Message)
}

func TestGraphQLDepthLimitMiddleware_ZeroDisables(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := GraphQLDepthLimitMiddleware(0)(next)
	assert.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, graphQLPost(`{"query":"{ a { b { c { d } } } }"}`))
	assert.Equal(t, http.StatusOK, rec.Code)
}
