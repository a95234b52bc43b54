package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql/language/ast"
	"golang.org/x/sync/errgroup"
)

// SubschemaName names the subschema holding every remote package's types.
const SubschemaName = "adobe-io"

// schemaAction is the action every remote package exposes to publish its
// type definitions.
const schemaAction = "graphql"

// baseTypeDefs gives remote packages a Query type to extend and declares
// the @function directive.
const baseTypeDefs = `
type Query {
  ignoreMe: String
}

directive @function(name: String!) on FIELD_DEFINITION
`

// Descriptor is the parsed, rewritten schema of one remote package.
type Descriptor struct {
	Package   string
	SchemaDef *ast.Document
}

type schemaPayload struct {
	TypeDefs string `json:"typeDefs"`
}

// Collect fetches the type definitions of every package concurrently. The
// first failure cancels the remaining fetches. Descriptors are returned in
// package order.
func Collect(ctx context.Context, invoker Invoker, packages []string) ([]Descriptor, error) {
	descs := make([]Descriptor, len(packages))
	g, gctx := errgroup.WithContext(ctx)
	for i, pkg := range packages {
		g.Go(func() error {
			doc, err := fetchSchema(gctx, invoker, pkg)
			if err != nil {
				return fmt.Errorf("failed fetching remote schema for package %q: %w", pkg, err)
			}
			descs[i] = Descriptor{Package: pkg, SchemaDef: doc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}

func fetchSchema(ctx context.Context, invoker Invoker, pkg string) (*ast.Document, error) {
	raw, err := invoker.Invoke(ctx, pkg+"/"+schemaAction, nil)
	if err != nil {
		return nil, err
	}
	var payload schemaPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding schema payload: %w", err)
	}
	doc, err := stitch.ParseSDL(pkg, payload.TypeDefs)
	if err != nil {
		return nil, err
	}
	if err := RewriteFunctionDirectives(doc, pkg); err != nil {
		return nil, err
	}
	return doc, nil
}

// BuildSubschema combines descs into one local subschema. Fields carrying
// @function resolve by invoking the named action through invoker.
func BuildSubschema(descs []Descriptor, invoker Invoker) (*stitch.Subschema, error) {
	doc, err := stitch.ParseSDL(SubschemaName, baseTypeDefs)
	if err != nil {
		return nil, err
	}
	for _, d := range descs {
		if d.SchemaDef == nil {
			continue
		}
		doc.Definitions = append(doc.Definitions, d.SchemaDef.Definitions...)
	}

	resolvers := stitch.ResolverMap{}
	for _, def := range doc.Definitions {
		typeName, fields := objectFields(def)
		for _, field := range fields {
			if action := functionName(field.Directives); action != "" {
				resolvers.Set(typeName, field.Name.Value, functionResolver(invoker, action))
			}
		}
	}

	return &stitch.Subschema{
		Name:      SubschemaName,
		TypeDefs:  doc,
		Resolvers: resolvers,
	}, nil
}

func objectFields(def ast.Node) (string, []*ast.FieldDefinition) {
	switch d := def.(type) {
	case *ast.ObjectDefinition:
		return d.Name.Value, d.Fields
	case *ast.TypeExtensionDefinition:
		if d.Definition != nil {
			return d.Definition.Name.Value, d.Definition.Fields
		}
	}
	return "", nil
}
