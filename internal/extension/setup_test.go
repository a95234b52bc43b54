package extension

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolve(t *testing.T, m stitch.ResolverMap, typeName, fieldName string) interface{} {
	t.Helper()
	fn, ok := m.Lookup(typeName, fieldName)
	require.True(t, ok, "no resolver for %s.%s", typeName, fieldName)
	v, err := fn(graphql.ResolveParams{})
	require.NoError(t, err)
	return v
}

func TestSetup_CollectsContributionsAndDeps(t *testing.T) {
	found, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-2")},
		WithRegistry(testRegistry()))
	require.NoError(t, err)

	exts, err := Setup(context.Background(), found, config.MapSource{}, nil)
	require.NoError(t, err)
	require.Len(t, exts, 2)

	bar := exts[0]
	assert.Equal(t, "@vendor/magento-graphql-bar", bar.Name)
	assert.Equal(t, []string{"@vendor/magento-graphql-foo"}, bar.Deps)
	require.Len(t, bar.TypeDefs, 1)
	assert.Equal(t, "bar", resolve(t, bar.Resolvers, "Query", "bar"))

	foo := exts[1]
	assert.Empty(t, foo.Deps)
	assert.Equal(t, "a string", resolve(t, foo.Resolvers, "Query", "hello"))
}

func TestSetup_ReadsScopedConfig(t *testing.T) {
	found, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-1")},
		WithRegistry(testRegistry()))
	require.NoError(t, err)

	exts, err := Setup(context.Background(), found, config.MapSource{"FOO_GREETING": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", resolve(t, exts[0].Resolvers, "Query", "hello"))
}

func TestSetup_MissingConfigFailsSetup(t *testing.T) {
	reg := New(ConfigDefs{
		"IO_API_KEY": {Docs: "API Key used to authenticate with Adobe I/O Runtime"},
	}, func(_ context.Context, cfg *config.Reader, _ *Builder) error {
		_, err := cfg.Get("IO_API_KEY")
		return err
	})

	_, err := Setup(context.Background(), []Candidate{Builtin("magento-graphql-io", reg)}, config.MapSource{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed running setup() for extension "magento-graphql-io" at "(builtin)"`)

	var missing *config.MissingValueError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "IO_API_KEY", missing.Key)
}

func TestSetup_RecoversPanic(t *testing.T) {
	reg := New(nil, func(context.Context, *config.Reader, *Builder) error {
		panic("boom")
	})
	_, err := Setup(context.Background(), []Candidate{Builtin("magento-graphql-panics", reg)}, config.MapSource{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `extension "magento-graphql-panics"`)
	assert.Contains(t, err.Error(), "panic: boom")
}

func TestSetup_ExtendContextTwiceFails(t *testing.T) {
	fn := func(*graphql.Schema, *gqlcontext.Context) (any, error) { return nil, nil }
	reg := New(nil, func(_ context.Context, _ *config.Reader, api *Builder) error {
		api.ExtendContext(fn).ExtendContext(fn)
		return nil
	})
	_, err := Setup(context.Background(), []Candidate{Builtin("magento-graphql-twice", reg)}, config.MapSource{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ExtendContext called more than once")
}

func TestSetup_InvalidTypeDefsFailSetup(t *testing.T) {
	reg := New(nil, func(_ context.Context, _ *config.Reader, api *Builder) error {
		api.AddTypeDefs(`type Query { broken: }`)
		return nil
	})
	_, err := Setup(context.Background(), []Candidate{Builtin("magento-graphql-broken", reg)}, config.MapSource{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `extension "magento-graphql-broken"`)
	assert.Contains(t, err.Error(), "Query.broken has no type")
}

func TestSetup_SetupErrorIsWrapped(t *testing.T) {
	sentinel := errors.New("backend unavailable")
	reg := New(nil, func(context.Context, *config.Reader, *Builder) error { return sentinel })
	_, err := Setup(context.Background(), []Candidate{Builtin("magento-graphql-down", reg)}, config.MapSource{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestBuilder_RejectsCallsAfterSetupReturns(t *testing.T) {
	var kept *Builder
	reg := New(nil, func(_ context.Context, _ *config.Reader, api *Builder) error {
		kept = api
		api.AddTypeDefs(`type Query { early: String }`)
		return nil
	})
	exts, err := Setup(context.Background(), []Candidate{Builtin("magento-graphql-late", reg)}, config.MapSource{}, nil)
	require.NoError(t, err)

	kept.AddTypeDefs(`type Query { late: String }`)
	assert.Len(t, exts[0].TypeDefs, 1)
	assert.ErrorIs(t, kept.err(), errSealed)
}

func TestBuilder_AddResolversMergesFields(t *testing.T) {
	b := newBuilder("magento-graphql-merge")
	b.AddResolvers(stitch.ResolverMap{"Query": {"a": constResolver(1), "b": constResolver(2)}}).
		AddResolvers(stitch.ResolverMap{"Query": {"b": constResolver(3)}})
	require.NoError(t, b.err())
	assert.Equal(t, 1, resolve(t, b.resolvers, "Query", "a"))
	assert.Equal(t, 3, resolve(t, b.resolvers, "Query", "b"))
}

func TestBuilder_AddSchemaRejectsNil(t *testing.T) {
	b := newBuilder("magento-graphql-nil")
	b.AddSchema(nil)
	assert.Error(t, b.err())
}

func TestLoad_TwoRootsStitchIntoOneQuery(t *testing.T) {
	contribution, err := Load(context.Background(), LoadConfig{
		Roots: []string{
			filepath.Join("testdata", "packages-case-1"),
			filepath.Join("testdata", "packages-case-6"),
		},
		Source:  config.MapSource{},
		Options: []DiscoverOption{WithRegistry(testRegistry())},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"@vendor/magento-graphql-foo", "magento-graphql-baz"}, contribution.Names)

	schema, err := stitch.Stitch(stitch.Config{
		Subschemas: contribution.Schemas,
		TypeDefs:   contribution.TypeDefs,
		Resolvers:  contribution.Resolvers,
	})
	require.NoError(t, err)

	result := schema.Do(context.Background(), graphql.Params{RequestString: `{ hello baz }`})
	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]interface{}{"hello": "a string", "baz": 42}, result.Data)

	ctxExts := ContextExtensions(contribution.Extensions)
	require.Len(t, ctxExts, 1)
	assert.Equal(t, "magento-graphql-baz", ctxExts[0].Name)

	header := http.Header{}
	header.Set("Store", "default")
	built, err := gqlcontext.NewBuilder(ctxExts, schema.Executable()).Build(header)
	require.NoError(t, err)
	value := built.Extensions["magento-graphql-baz"].(map[string]any)
	assert.Equal(t, "default", *value["store"].(*string))
}

func TestLoad_BuiltinsJoinDiscoveredExtensions(t *testing.T) {
	builtin := Builtin("magento-graphql-adobe-io", New(nil, func(_ context.Context, _ *config.Reader, api *Builder) error {
		api.AddTypeDefs(`type Query { ioPing: String }`)
		return nil
	}))
	contribution, err := Load(context.Background(), LoadConfig{
		Roots:    []string{filepath.Join("testdata", "packages-case-1")},
		Builtins: []Candidate{builtin},
		Source:   config.MapSource{},
		Options:  []DiscoverOption{WithRegistry(testRegistry())},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"@vendor/magento-graphql-foo", "magento-graphql-adobe-io"}, contribution.Names)
	assert.Len(t, contribution.TypeDefs, 2)
}
