package remote

import (
	"errors"
	"testing"

	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directiveArgs(doc *ast.Document, name string) []string {
	var out []string
	for _, def := range doc.Definitions {
		_, fields := objectFields(def)
		for _, f := range fields {
			for _, d := range f.Directives {
				if d.Name.Value != name {
					continue
				}
				for _, a := range d.Arguments {
					if s, ok := a.Value.(*ast.StringValue); ok {
						out = append(out, s.Value)
					}
				}
			}
		}
	}
	return out
}

func TestRewriteFunctionDirectives_Single(t *testing.T) {
	doc := stitch.MustParseSDL("test", `
type Query {
  foo: String @function(name: "foo-func")
}`)
	require.NoError(t, RewriteFunctionDirectives(doc, "foopkg"))
	assert.Equal(t, []string{"foopkg/foo-func"}, directiveArgs(doc, "function"))
}

func TestRewriteFunctionDirectives_Multiple(t *testing.T) {
	doc := stitch.MustParseSDL("test", `
type Query {
  foo: String @function(name: "foo-func")
  bar: Int @function(name: "bar-func")
}
extend type Query {
  baz: Int @function(name: "baz-func")
}`)
	require.NoError(t, RewriteFunctionDirectives(doc, "foopkg"))
	assert.Equal(t, []string{"foopkg/foo-func", "foopkg/bar-func", "foopkg/baz-func"}, directiveArgs(doc, "function"))
}

func TestRewriteFunctionDirectives_LeavesOtherDirectives(t *testing.T) {
	doc := stitch.MustParseSDL("test", `
type Query {
  foo: String @something(value: "asdf")
  bar: Int @another(name: "qwerty")
  car: Int @function(name: "car-func")
}`)
	require.NoError(t, RewriteFunctionDirectives(doc, "foopkg"))
	assert.Equal(t, []string{"asdf"}, directiveArgs(doc, "something"))
	assert.Equal(t, []string{"qwerty"}, directiveArgs(doc, "another"))
	assert.Equal(t, []string{"foopkg/car-func"}, directiveArgs(doc, "function"))
}

func TestRewriteFunctionDirectives_ArgumentCount(t *testing.T) {
	tests := []struct {
		name string
		sdl  string
		got  string
	}{
		{
			name: "missing name",
			sdl:  `type Query { foo: String @function }`,
			got:  "got 0",
		},
		{
			name: "extra argument",
			sdl:  `type Query { foo: String @function(name: "func", extra: "anything") }`,
			got:  "got 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RewriteFunctionDirectives(stitch.MustParseSDL("test", tt.sdl), "foopkg")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "expected 1 argument to @function")
			assert.Contains(t, err.Error(), tt.got)
			assert.Contains(t, err.Error(), `remote package "foopkg"`)

			var dirErr *DirectiveError
			require.True(t, errors.As(err, &dirErr))
			assert.Equal(t, "foo", dirErr.Field)
		})
	}
}

func TestRewriteFunctionDirectives_NonStringName(t *testing.T) {
	err := RewriteFunctionDirectives(stitch.MustParseSDL("test", `type Query { foo: String @function(name: 42) }`), "foopkg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a string name argument to @function")
}

func TestRewriteFunctionDirectives_UnknownArgumentName(t *testing.T) {
	doc := stitch.MustParseSDL("test", `type Query { foo: String @function(action: "foo-func") }`)
	err := RewriteFunctionDirectives(doc, "foopkg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown argument "action" to @function, expected name`)

	var dirErr *DirectiveError
	require.True(t, errors.As(err, &dirErr))
	assert.Equal(t, "foo", dirErr.Field)
	assert.Equal(t, []string{"foo-func"}, directiveArgs(doc, "function"))
}
