package extension

import (
	"context"
	"fmt"
	"path/filepath"
	"plugin"
	"testing"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constResolver(v interface{}) graphql.FieldResolveFn {
	return func(graphql.ResolveParams) (interface{}, error) { return v, nil }
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register("@vendor/magento-graphql-foo", New(ConfigDefs{
		"FOO_GREETING": {Docs: "Greeting returned by Query.hello", Default: "a string"},
	}, func(_ context.Context, cfg *config.Reader, api *Builder) error {
		v, err := cfg.Get("FOO_GREETING")
		if err != nil {
			return err
		}
		greeting, err := v.AsString()
		if err != nil {
			return err
		}
		api.AddTypeDefs(`type Query { hello: String }`).
			AddResolvers(stitch.ResolverMap{"Query": {"hello": constResolver(greeting)}})
		return nil
	}))
	r.Register("@vendor/magento-graphql-bar", New(nil, func(_ context.Context, _ *config.Reader, api *Builder) error {
		api.AddTypeDefs(`type Query { bar: String }`).
			AddResolvers(stitch.ResolverMap{"Query": {"bar": constResolver("bar")}})
		return nil
	}))
	r.Register("magento-graphql-baz", New(nil, func(_ context.Context, _ *config.Reader, api *Builder) error {
		api.AddTypeDefs(`type Query { baz: Int }`).
			AddResolvers(stitch.ResolverMap{"Query": {"baz": constResolver(42)}}).
			ExtendContext(func(_ *graphql.Schema, base *gqlcontext.Context) (any, error) {
				return map[string]any{"store": base.Store}, nil
			})
		return nil
	}))
	r.Register("magento-graphql-nosetup", &Registration{Config: ConfigDefs{}})
	return r
}

func names(candidates []Candidate) []string {
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Name)
	}
	return out
}

func TestIsExtensionName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"magento-graphql-foo", true},
		{"@vendor/magento-graphql-foo", true},
		{"@my-org/magento-graphql-store-locator", true},
		{"magento-graphql-", false},
		{"random-pkg", false},
		{"lodash", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExtensionName(tt.name))
		})
	}
}

func TestDiscover_SinglePackageInSingleRoot(t *testing.T) {
	found, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-1")},
		WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.Equal(t, []string{"@vendor/magento-graphql-foo"}, names(found))
	assert.Equal(t, filepath.Join("testdata", "packages-case-1", "foo-package"), found[0].Path)
	assert.NotNil(t, found[0].Registration)
}

func TestDiscover_MultiplePackagesInSingleRoot(t *testing.T) {
	found, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-2")},
		WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.Equal(t, []string{"@vendor/magento-graphql-bar", "@vendor/magento-graphql-foo"}, names(found))
	assert.Equal(t, map[string]string{
		"@vendor/magento-graphql-foo": "^1.0.0",
		"lodash":                      "^4.17.0",
	}, found[0].Manifest.PeerDependencies)
}

func TestDiscover_IgnoresDotAndUnderscoreDirectories(t *testing.T) {
	found, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-4")},
		WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestDiscover_MissingSetupFunction(t *testing.T) {
	_, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-3")},
		WithRegistry(testRegistry()))
	require.Error(t, err)
	want := fmt.Sprintf("extension %q at %q is missing setup() function",
		"magento-graphql-nosetup", filepath.Join("testdata", "packages-case-3", "no-setup"))
	assert.Contains(t, err.Error(), want)
}

func TestDiscover_UnresolvableEntryPoint(t *testing.T) {
	_, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "packages-case-5")},
		WithRegistry(testRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `extension "magento-graphql-unregistered"`)
	assert.Contains(t, err.Error(), "could not determine module entry point")
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(context.Background(),
		[]string{filepath.Join("testdata", "does-not-exist")},
		WithRegistry(testRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading extension root")
}

func TestDiscover_MultipleRoots(t *testing.T) {
	found, err := Discover(context.Background(), []string{
		filepath.Join("testdata", "packages-case-6"),
		filepath.Join("testdata", "packages-case-1"),
	}, WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.Equal(t, []string{"@vendor/magento-graphql-foo", "magento-graphql-baz"}, names(found))
}

func TestDiscover_PluginEntryPoint(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "so-package", "extension.yaml"),
		"name: magento-graphql-plugin\nmain: build/ext.so\n")

	reg := New(nil, func(context.Context, *config.Reader, *Builder) error { return nil })
	var opened string
	open := func(path string) (SymbolLookup, error) {
		opened = path
		return func(name string) (plugin.Symbol, error) {
			if name != "Extension" {
				return nil, fmt.Errorf("symbol %s not found", name)
			}
			return reg, nil
		}, nil
	}

	found, err := Discover(context.Background(), []string{root},
		WithRegistry(NewRegistry()), WithPluginOpener(open))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Same(t, reg, found[0].Registration)
	assert.Equal(t, filepath.Join(root, "so-package", "build", "ext.so"), opened)
}

func TestDiscover_PluginWithWrongSymbolType(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "so-package", "extension.yaml"),
		"name: magento-graphql-plugin\nmain: ext.so\n")

	open := func(string) (SymbolLookup, error) {
		return func(string) (plugin.Symbol, error) { return "not a registration", nil }, nil
	}
	_, err := Discover(context.Background(), []string{root},
		WithRegistry(NewRegistry()), WithPluginOpener(open))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not determine module entry point")
	assert.Contains(t, err.Error(), "want *extension.Registration")
}

func TestDiscover_SkipsUnparsableManifest(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "broken", "package.json"), "{ name: [")

	found, err := Discover(context.Background(), []string{root}, WithRegistry(testRegistry()))
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestRegistry_RegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.Register("magento-graphql-a", New(nil, nil))
	assert.Panics(t, func() { r.Register("magento-graphql-a", New(nil, nil)) })
	assert.Panics(t, func() { r.Register("magento-graphql-b", nil) })
	assert.Equal(t, []string{"magento-graphql-a"}, r.Names())
}
