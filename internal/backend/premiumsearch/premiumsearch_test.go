package premiumsearch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/stitch"
	"storefront-graphql/internal/testutil/fakegraphql"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchSDL = `
type Query {
  productSearch(phrase: String!): [ProductInterface]
}
interface ProductInterface {
  id: Int @deprecated(reason: "Use the uid field instead.")
  uid: ID
  sku: String
  custom_attributes: [String]
}
type SimpleProduct implements ProductInterface {
  id: Int
  uid: ID
  sku: String
  custom_attributes: [String]
}
`

func searchResolvers() stitch.ResolverMap {
	return stitch.ResolverMap{
		"Query": {
			"productSearch": func(graphql.ResolveParams) (interface{}, error) {
				return []interface{}{
					map[string]interface{}{"__typename": "SimpleProduct", "id": 1, "sku": "24-MB01"},
				}, nil
			},
		},
	}
}

func TestNewSubschema_AppliesTransforms(t *testing.T) {
	server := fakegraphql.NewServer(t, searchSDL, searchResolvers())

	sub, err := NewSubschema(context.Background(), Config{URL: server.URL, APIKey: "key", IntrospectionTimeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Len(t, sub.Transforms, 3)

	schema, err := stitch.Stitch(stitch.Config{Subschemas: []*stitch.Subschema{sub}})
	require.NoError(t, err)

	iface, ok := schema.Executable().Type("ProductInterface").(*graphql.Interface)
	require.True(t, ok)
	fields := iface.Fields()
	assert.NotContains(t, fields, "uid")
	assert.NotContains(t, fields, "custom_attributes")
	require.Contains(t, fields, "id")
	assert.Empty(t, fields["id"].DeprecationReason)

	result := schema.Do(context.Background(), graphql.Params{
		RequestString: `{ productSearch(phrase: "bag") { sku ... on SimpleProduct { id } } }`,
	})
	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{
		"productSearch": []interface{}{map[string]interface{}{"sku": "24-MB01", "id": 1}},
	}, result.Data)
}

func TestNewSubschema_IntrospectionFailure(t *testing.T) {
	server := fakegraphql.NewServer(t, searchSDL, nil)
	server.FailWith(http.StatusServiceUnavailable)

	_, err := NewSubschema(context.Background(), Config{URL: server.URL, IntrospectionTimeout: 300 * time.Millisecond})
	require.Error(t, err)
	var introErr *IntrospectionError
	require.True(t, errors.As(err, &introErr))
	assert.Equal(t, `Failed introspecting remote Search Schema at "`+server.URL+`"`, err.Error())
}

func TestExecutor_SendsKeyAndScopeHeaders(t *testing.T) {
	server := fakegraphql.NewServer(t, searchSDL, searchResolvers())

	header := http.Header{}
	header.Set("Magento-Environment-Id", "env-1")
	header.Set("Magento-Store-Code", "main_website_store")
	header.Set("Magento-Website-Code", "base")
	gc, err := gqlcontext.NewBuilder(nil, nil).Build(header)
	require.NoError(t, err)

	ctx := gqlcontext.WithContext(context.Background(), gc)
	_, err = NewExecutor(Config{URL: server.URL, APIKey: "search-key"}).
		Execute(ctx, stitch.Request{Query: `{ productSearch(phrase: "bag") { sku } }`})
	require.NoError(t, err)

	got := server.Requests()[0].Header
	assert.Equal(t, "search-key", got.Get("X-Api-Key"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "env-1", got.Get("Magento-Environment-Id"))
	assert.Equal(t, "main_website_store", got.Get("Magento-Store-Code"))
	assert.Equal(t, "base", got.Get("Magento-Website-Code"))
	assert.Empty(t, got.Values("Magento-Store-View-Code"))
}
