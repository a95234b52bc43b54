package stitch

import (
	"context"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"storefront-graphql/internal/logging"
)

// Config lists the sources of a stitched schema in merge order.
type Config struct {
	// Subschemas are merged first, in order.
	Subschemas []*Subschema
	// TypeDefs and Resolvers come from extensions and are merged last.
	TypeDefs  []*ast.Document
	Resolvers []ResolverMap
	Logger    *logging.Logger
	// MaxBatchSize caps keys per merged-type request. Zero means DefaultMaxBatchSize.
	MaxBatchSize int
}

// Schema is an immutable stitched schema.
type Schema struct {
	schema   graphql.Schema
	document  *ast.Document
	sdl       string
	canonical string
}

// Executable returns the graphql-go schema.
func (s *Schema) Executable() *graphql.Schema {
	return &s.schema
}

// Document returns the merged type definitions.
func (s *Schema) Document() *ast.Document {
	return s.document
}

// SDL returns the merged type definitions in GraphQL syntax.
func (s *Schema) SDL() string {
	return s.sdl
}

// CanonicalSDL returns the merged type definitions in sorted order. Equal
// schemas have equal canonical SDL.
func (s *Schema) CanonicalSDL() string {
	return s.canonical
}

// Do executes params against the schema, adding per-request batch state
// when the context does not carry one yet.
func (s *Schema) Do(ctx context.Context, params graphql.Params) *graphql.Result {
	if ctx == nil {
		ctx = context.Background()
	}
	params.Schema = s.schema
	params.Context = NewBatchingContext(ctx)
	return graphql.Do(params)
}

// Stitch merges every source into one executable schema.
func Stitch(cfg Config) (*Schema, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	pl := &plan{
		rootOwners:     map[string]map[string]*subschemaPlan{},
		mergeProviders: map[string][]*subschemaPlan{},
		maxBatchSize:   cfg.MaxBatchSize,
		logger:         logger,
	}
	if pl.maxBatchSize <= 0 {
		pl.maxBatchSize = DefaultMaxBatchSize
	}

	reg := newRegistry()
	byPointer := map[*Subschema]*subschemaPlan{}
	names := map[string]bool{}
	for _, s := range cfg.Subschemas {
		if s == nil {
			continue
		}
		if s.Name == "" {
			return nil, fmt.Errorf("subschema without a name")
		}
		if names[s.Name] {
			return nil, fmt.Errorf("duplicate subschema name %q", s.Name)
		}
		names[s.Name] = true
		if err := applyTransforms(s); err != nil {
			return nil, err
		}
		sp, err := newSubschemaPlan(s)
		if err != nil {
			return nil, err
		}
		if err := reg.add(s.TypeDefs, definitionSource{name: s.Name, subschema: s}); err != nil {
			return nil, err
		}
		pl.subschemas = append(pl.subschemas, sp)
		byPointer[s] = sp
	}
	for _, doc := range cfg.TypeDefs {
		if err := reg.add(doc, definitionSource{}); err != nil {
			return nil, err
		}
	}
	if err := reg.applyExtensions(); err != nil {
		return nil, err
	}

	for _, sp := range pl.subschemas {
		typeNames := make([]string, 0, len(sp.Merge))
		for typeName := range sp.Merge {
			typeNames = append(typeNames, typeName)
		}
		sort.Strings(typeNames)
		for _, typeName := range typeNames {
			pl.mergeProviders[typeName] = append(pl.mergeProviders[typeName], sp)
		}
	}
	for _, root := range []string{"Query", "Mutation"} {
		for field, owner := range reg.owners[root] {
			if sp := byPointer[owner]; sp != nil && sp.remote() {
				if pl.rootOwners[root] == nil {
					pl.rootOwners[root] = map[string]*subschemaPlan{}
				}
				pl.rootOwners[root][field] = sp
			}
		}
	}

	resolvers := ResolverMap{}
	merge := func(from ResolverMap, origin *subschemaPlan) {
		for typeName, fields := range from {
			for fieldName, fn := range fields {
				if fn == nil {
					continue
				}
				if _, exists := resolvers.Lookup(typeName, fieldName); exists {
					logger.Debug("resolver overridden", "type", typeName, "field", fieldName)
				}
				if origin != nil && !origin.remote() {
					fn = tagResolver(fn, origin.Name)
				}
				resolvers.Set(typeName, fieldName, fn)
			}
		}
	}
	for _, sp := range pl.subschemas {
		merge(sp.Resolvers, sp)
	}
	for _, rm := range cfg.Resolvers {
		merge(rm, nil)
	}

	executable, err := newTypeBuilder(reg, pl, resolvers).build()
	if err != nil {
		return nil, err
	}
	doc := reg.document()
	logger.Debug("schema stitched",
		"subschemas", len(pl.subschemas),
		"type_defs", len(cfg.TypeDefs),
		"types", len(reg.order),
	)
	return &Schema{
		schema:    executable,
		document:  doc,
		sdl:       PrintSDL(doc),
		canonical: CanonicalSDL(doc),
	}, nil
}
