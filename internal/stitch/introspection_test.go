package stitch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func introspectedCatalog(t *testing.T) map[string]interface{} {
	t.Helper()
	status := graphql.NewEnum(graphql.EnumConfig{
		Name: "ProductStockStatus",
		Values: graphql.EnumValueConfigMap{
			"IN_STOCK":     {Value: "IN_STOCK"},
			"OUT_OF_STOCK": {Value: "OUT_OF_STOCK"},
		},
	})
	product := graphql.NewObject(graphql.ObjectConfig{
		Name: "Product",
		Fields: graphql.Fields{
			"sku":          {Type: graphql.NewNonNull(graphql.String)},
			"id":           {Type: graphql.Int, DeprecationReason: "Use the uid field instead."},
			"stock_status": {Type: status},
		},
	})
	root := graphql.NewObject(graphql.ObjectConfig{
		Name: "QueryRoot",
		Fields: graphql.Fields{
			"product": {
				Type: product,
				Args: graphql.FieldConfigArgument{
					"sku":      {Type: graphql.String, DefaultValue: "24-MB01"},
					"pageSize": {Type: graphql.Int, DefaultValue: 20},
				},
			},
			"tags": {Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
		},
	})
	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: root})
	require.NoError(t, err)

	result := graphql.Do(graphql.Params{Schema: schema, RequestString: IntrospectionQuery})
	require.Empty(t, result.Errors)

	// Round-trip through JSON as a remote response would.
	raw, err := json.Marshal(result)
	require.NoError(t, err)
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	return envelope
}

func findObject(doc *ast.Document, name string) *ast.ObjectDefinition {
	for _, def := range doc.Definitions {
		if obj, ok := def.(*ast.ObjectDefinition); ok && nameOf(obj.Name) == name {
			return obj
		}
	}
	return nil
}

func findField(fields []*ast.FieldDefinition, name string) *ast.FieldDefinition {
	for _, f := range fields {
		if nameOf(f.Name) == name {
			return f
		}
	}
	return nil
}

func TestIntrospectionToDocument(t *testing.T) {
	doc, err := IntrospectionToDocument(introspectedCatalog(t))
	require.NoError(t, err)

	assert.Nil(t, findObject(doc, "QueryRoot"))
	query := findObject(doc, "Query")
	require.NotNil(t, query)

	productField := findField(query.Fields, "product")
	require.NotNil(t, productField)
	require.Len(t, productField.Arguments, 2)
	for _, arg := range productField.Arguments {
		require.NotNil(t, arg.DefaultValue, nameOf(arg.Name))
	}

	tags := findField(query.Fields, "tags")
	require.NotNil(t, tags)
	list, ok := tags.Type.(*ast.List)
	require.True(t, ok)
	_, ok = list.Type.(*ast.NonNull)
	assert.True(t, ok)

	product := findObject(doc, "Product")
	require.NotNil(t, product)
	id := findField(product.Fields, "id")
	require.NotNil(t, id)
	assert.Equal(t, "Use the uid field instead.", deprecationReason(id.Directives))

	for _, def := range doc.Definitions {
		if named, ok := def.(interface{ GetName() *ast.Name }); ok {
			assert.NotContains(t, []string{"String", "Int", "__Schema", "__Type"}, nameOf(named.GetName()))
		}
	}
}

func TestIntrospectionToDocument_StitchesBack(t *testing.T) {
	doc, err := IntrospectionToDocument(introspectedCatalog(t))
	require.NoError(t, err)

	s, err := Stitch(Config{Subschemas: []*Subschema{{Name: "catalog", TypeDefs: doc}}})
	require.NoError(t, err)
	assert.NotNil(t, s.Executable().Type("ProductStockStatus"))
	assert.Contains(t, s.SDL(), "type Query")
}

func TestIntrospectionToDocument_Invalid(t *testing.T) {
	_, err := IntrospectionToDocument(map[string]interface{}{"data": map[string]interface{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no __schema")
}

func TestIntrospect_RemoteErrors(t *testing.T) {
	exec := ExecutorFunc(func(context.Context, Request) (*Response, error) {
		return &Response{Errors: []ResponseError{{Message: "introspection disabled"}}}, nil
	})
	_, err := Introspect(context.Background(), exec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "introspection disabled")
}
