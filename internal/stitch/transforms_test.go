package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransforms(t *testing.T) {
	doc := MustParseSDL("search", `
		type Query { products: [ProductInterface] }
		interface ProductInterface {
			id: Int @deprecated(reason: "Use uid")
			uid: ID
			custom_attributes: [String]
			sku: String
		}
	`)
	s := &Subschema{
		Name:     "search",
		TypeDefs: doc,
		Transforms: []Transform{
			RemoveField("ProductInterface", "uid"),
			RemoveField("ProductInterface", "custom_attributes"),
			ClearDeprecation("ProductInterface", "id"),
		},
	}
	require.NoError(t, applyTransforms(s))

	sdl := PrintSDL(doc)
	assert.NotContains(t, sdl, "uid")
	assert.NotContains(t, sdl, "custom_attributes")
	assert.NotContains(t, sdl, "@deprecated")
	assert.Contains(t, sdl, "sku: String")
}

func TestClearDeprecation_UnknownField(t *testing.T) {
	s := &Subschema{
		Name:       "search",
		TypeDefs:   MustParseSDL("search", `type Query { a: String }`),
		Transforms: []Transform{ClearDeprecation("Query", "b")},
	}
	err := applyTransforms(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `subschema "search" transform 0`)
	assert.Contains(t, err.Error(), "Query.b not found")
}

func TestParseSDL_RejectsOperations(t *testing.T) {
	_, err := ParseSDL("ext", `query { a }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable definitions are not allowed")

	_, err = ParseSDL("ext", `type Query {`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid type definitions in ext")
}
