package extension

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ext(name, path string, deps ...string) *LocalExtension {
	return &LocalExtension{Name: name, Path: path, Deps: deps}
}

func sortedNames(exts []*LocalExtension) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		out = append(out, e.Name+"@"+e.Path)
	}
	return out
}

func TestSort_DependenciesComeFirst(t *testing.T) {
	got, err := Sort([]*LocalExtension{
		ext("magento-graphql-a", "/a", "magento-graphql-z"),
		ext("magento-graphql-z", "/z"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"magento-graphql-z@/z", "magento-graphql-a@/a"}, sortedNames(got))
}

func TestSort_AlphabeticalWithoutDependencies(t *testing.T) {
	got, err := Sort([]*LocalExtension{
		ext("magento-graphql-c", "/c"),
		ext("magento-graphql-a", "/a"),
		ext("magento-graphql-b", "/b"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"magento-graphql-a@/a", "magento-graphql-b@/b", "magento-graphql-c@/c"}, sortedNames(got))
}

func TestSort_GroupsShareAName(t *testing.T) {
	got, err := Sort([]*LocalExtension{
		ext("magento-graphql-a", "/root1/a", "magento-graphql-shared"),
		ext("magento-graphql-shared", "/root2/shared"),
		ext("magento-graphql-shared", "/root1/shared"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"magento-graphql-shared@/root1/shared",
		"magento-graphql-shared@/root2/shared",
		"magento-graphql-a@/root1/a",
	}, sortedNames(got))
}

func TestSort_MissingDependencyIsIgnored(t *testing.T) {
	got, err := Sort([]*LocalExtension{
		ext("magento-graphql-a", "/a", "magento-graphql-not-installed"),
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSort_IsDeterministic(t *testing.T) {
	first := []*LocalExtension{
		ext("magento-graphql-b", "/b", "magento-graphql-a"),
		ext("magento-graphql-d", "/d"),
		ext("magento-graphql-a", "/a"),
		ext("magento-graphql-c", "/c", "magento-graphql-a"),
	}
	second := []*LocalExtension{first[3], first[1], first[0], first[2]}

	a, err := Sort(first)
	require.NoError(t, err)
	b, err := Sort(second)
	require.NoError(t, err)
	assert.Equal(t, sortedNames(a), sortedNames(b))
	assert.Equal(t, []string{
		"magento-graphql-a@/a",
		"magento-graphql-b@/b",
		"magento-graphql-c@/c",
		"magento-graphql-d@/d",
	}, sortedNames(a))
}

func TestSort_CycleIsReported(t *testing.T) {
	_, err := Sort([]*LocalExtension{
		ext("magento-graphql-b", "/b", "magento-graphql-a"),
		ext("magento-graphql-a", "/a", "magento-graphql-b"),
		ext("magento-graphql-c", "/c"),
	})
	require.Error(t, err)

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"magento-graphql-a", "magento-graphql-b"}, cycle.Names)
	assert.Equal(t, "extension dependency cycle detected between: magento-graphql-a, magento-graphql-b", err.Error())
}
