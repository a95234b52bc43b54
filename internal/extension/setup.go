package extension

import (
	"context"
	"fmt"
	"sort"

	"storefront-graphql/internal/config"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/samber/lo"
)

// builtinPath is the Path of extensions compiled into the gateway itself.
const builtinPath = "(builtin)"

// LocalExtension is the result of running one extension's setup.
type LocalExtension struct {
	Name      string
	Path      string
	TypeDefs  []*ast.Document
	Resolvers stitch.ResolverMap
	Schemas   []*stitch.Subschema
	Context   gqlcontext.ExtendFunc
	Deps      []string
}

// Builtin returns a candidate for an extension that ships with the gateway.
func Builtin(name string, reg *Registration) Candidate {
	return Candidate{
		Name:         name,
		Path:         builtinPath,
		Manifest:     Manifest{Name: name},
		Registration: reg,
	}
}

// Setup runs each candidate's setup function in order. Each extension reads
// its declared keys from src. The first failure stops setup.
func Setup(ctx context.Context, candidates []Candidate, src config.Source, logger *logging.Logger) ([]*LocalExtension, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	exts := make([]*LocalExtension, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext, err := setupOne(ctx, c, src)
		if err != nil {
			return nil, fmt.Errorf("failed running setup() for extension %q at %q: %w", c.Name, c.Path, err)
		}
		logger.Debug("extension set up",
			"extension", c.Name,
			"path", c.Path,
			"type_defs", len(ext.TypeDefs),
			"schemas", len(ext.Schemas),
			"deps", ext.Deps,
		)
		exts = append(exts, ext)
	}
	return exts, nil
}

func setupOne(ctx context.Context, c Candidate, src config.Source) (ext *LocalExtension, err error) {
	if c.Registration == nil || c.Registration.Setup == nil {
		return nil, fmt.Errorf("missing setup() function")
	}

	api := newBuilder(c.Name)
	defer func() {
		if r := recover(); r != nil {
			api.seal()
			ext, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	reader := config.NewReader(c.Registration.Config, src)
	setupErr := c.Registration.Setup(ctx, reader, api)
	api.seal()
	if setupErr != nil {
		return nil, setupErr
	}
	if err := api.err(); err != nil {
		return nil, err
	}

	deps := lo.Filter(lo.Keys(c.Manifest.PeerDependencies), func(name string, _ int) bool {
		return IsExtensionName(name)
	})
	sort.Strings(deps)

	return &LocalExtension{
		Name:      c.Name,
		Path:      c.Path,
		TypeDefs:  api.typeDefs,
		Resolvers: api.resolvers,
		Schemas:   api.schemas,
		Context:   api.context,
		Deps:      deps,
	}, nil
}

// Contribution is the combined output of a sorted set of extensions, in
// the shape the stitcher consumes.
type Contribution struct {
	TypeDefs   []*ast.Document
	Resolvers  []stitch.ResolverMap
	Schemas    []*stitch.Subschema
	Names      []string
	Extensions []*LocalExtension
}

// Collect concatenates the contributions of exts, preserving their order.
func Collect(exts []*LocalExtension) *Contribution {
	out := &Contribution{Extensions: exts}
	for _, ext := range exts {
		out.Names = append(out.Names, ext.Name)
		out.TypeDefs = append(out.TypeDefs, ext.TypeDefs...)
		if len(ext.Resolvers) > 0 {
			out.Resolvers = append(out.Resolvers, ext.Resolvers)
		}
		out.Schemas = append(out.Schemas, ext.Schemas...)
	}
	return out
}

// ContextExtensions adapts exts for the per-request context builder.
func ContextExtensions(exts []*LocalExtension) []gqlcontext.Extension {
	out := make([]gqlcontext.Extension, 0, len(exts))
	for _, ext := range exts {
		if ext.Context == nil {
			continue
		}
		out = append(out, gqlcontext.Extension{Name: ext.Name, Extend: ext.Context})
	}
	return out
}

// LoadConfig controls Load.
type LoadConfig struct {
	Roots    []string
	Builtins []Candidate
	Source   config.Source
	Logger   *logging.Logger
	Options  []DiscoverOption
}

// Load discovers the extensions under cfg.Roots, adds the builtins, runs
// every setup and returns the sorted contribution.
func Load(ctx context.Context, cfg LoadConfig) (*Contribution, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	opts := append([]DiscoverOption{WithLogger(logger)}, cfg.Options...)

	candidates, err := Discover(ctx, cfg.Roots, opts...)
	if err != nil {
		return nil, err
	}
	candidates = append(append([]Candidate{}, cfg.Builtins...), candidates...)

	exts, err := Setup(ctx, candidates, cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	sorted, err := Sort(exts)
	if err != nil {
		return nil, err
	}

	contribution := Collect(sorted)
	logger.Info("local extensions loaded",
		"count", len(sorted),
		"order", contribution.Names,
	)
	return contribution, nil
}
