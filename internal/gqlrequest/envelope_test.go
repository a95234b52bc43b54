package gqlrequest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope_GET(t *testing.T) {
	params := url.Values{}
	params.Set("query", `query Cart($id: String!) { cart(cart_id: $id) { id } }`)
	params.Set("operationName", "Cart")
	params.Set("variables", `{"id":"abc"}`)
	req := httptest.NewRequest(http.MethodGet, "/graphql?"+params.Encode(), nil)

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "Cart", env.OperationName)
	assert.Equal(t, len(env.Query), env.DocumentSizeBytes)

	vars, err := env.Variables()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": "abc"}, vars)
}

func TestDecodeEnvelope_PostApplicationGraphQL_RestoresBody(t *testing.T) {
	body := `{ storeConfig { code } }`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/graphql; charset=utf-8")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, body, env.Query)

	restored, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(restored))
}

func TestDecodeEnvelope_PostJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql",
		strings.NewReader(`{"query":"query Search($q: String) { products(search: $q) { total_count } }","operationName":"Search","variables":{"q":"bag"}}`))
	req.Header.Set("Content-Type", "application/json")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Equal(t, "Search", env.OperationName)
	assert.NotEmpty(t, env.VariablesRaw)

	vars, err := env.Variables()
	require.NoError(t, err)
	assert.Equal(t, "bag", vars["q"])
}

func TestDecodeEnvelope_NullVariables(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ cart { id } }","variables":null}`))
	req.Header.Set("Content-Type", "application/json")

	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Empty(t, env.VariablesRaw)
	vars, err := env.Variables()
	require.NoError(t, err)
	assert.Nil(t, vars)
}

func TestDecodeEnvelope_PostMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":`))
	req.Header.Set("Content-Type", "application/json")

	_, err := DecodeEnvelope(req)
	assert.Error(t, err)
}

func TestDecodeEnvelope_IgnoresOtherMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/graphql", strings.NewReader(`{"query":"{ cart { id } }"}`))
	env, err := DecodeEnvelope(req)
	require.NoError(t, err)
	assert.Empty(t, env.Query)
}
