package stitch

import (
	"sort"

	"github.com/graphql-go/graphql/language/ast"
)

// CanonicalSDL renders doc with definitions sorted by kind and name, and
// fields, arguments, enum values, interfaces, union members and directive
// locations sorted by name. Two documents describing the same schema
// render identically whatever order their sources listed things in. doc
// is not modified.
func CanonicalSDL(doc *ast.Document) string {
	if doc == nil {
		return ""
	}
	defs := make([]ast.Node, 0, len(doc.Definitions))
	for _, def := range doc.Definitions {
		defs = append(defs, canonicalDefinition(def))
	}
	sort.SliceStable(defs, func(i, j int) bool {
		ki, kj := defs[i].GetKind(), defs[j].GetKind()
		if ki != kj {
			return ki < kj
		}
		return definitionName(defs[i]) < definitionName(defs[j])
	})
	return PrintSDL(ast.NewDocument(&ast.Document{Definitions: defs}))
}

func canonicalDefinition(def ast.Node) ast.Node {
	switch d := def.(type) {
	case *ast.ObjectDefinition:
		out := *d
		out.Interfaces = sortedNamed(d.Interfaces)
		out.Fields = sortedFields(d.Fields)
		return &out
	case *ast.InterfaceDefinition:
		out := *d
		out.Fields = sortedFields(d.Fields)
		return &out
	case *ast.InputObjectDefinition:
		out := *d
		out.Fields = sortedInputValues(d.Fields)
		return &out
	case *ast.EnumDefinition:
		out := *d
		out.Values = append([]*ast.EnumValueDefinition(nil), d.Values...)
		sort.SliceStable(out.Values, func(i, j int) bool {
			return nameOf(out.Values[i].Name) < nameOf(out.Values[j].Name)
		})
		return &out
	case *ast.UnionDefinition:
		out := *d
		out.Types = sortedNamed(d.Types)
		return &out
	case *ast.DirectiveDefinition:
		out := *d
		out.Arguments = sortedInputValues(d.Arguments)
		out.Locations = append([]*ast.Name(nil), d.Locations...)
		sort.SliceStable(out.Locations, func(i, j int) bool {
			return nameOf(out.Locations[i]) < nameOf(out.Locations[j])
		})
		return &out
	case *ast.TypeExtensionDefinition:
		if d.Definition == nil {
			return d
		}
		out := *d
		out.Definition = canonicalDefinition(d.Definition).(*ast.ObjectDefinition)
		return &out
	}
	return def
}

func sortedFields(fields []*ast.FieldDefinition) []*ast.FieldDefinition {
	out := make([]*ast.FieldDefinition, 0, len(fields))
	for _, f := range fields {
		copied := *f
		copied.Arguments = sortedInputValues(f.Arguments)
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return nameOf(out[i].Name) < nameOf(out[j].Name)
	})
	return out
}

func sortedInputValues(values []*ast.InputValueDefinition) []*ast.InputValueDefinition {
	out := append([]*ast.InputValueDefinition(nil), values...)
	sort.SliceStable(out, func(i, j int) bool {
		return nameOf(out[i].Name) < nameOf(out[j].Name)
	})
	return out
}

func sortedNamed(named []*ast.Named) []*ast.Named {
	out := append([]*ast.Named(nil), named...)
	sort.SliceStable(out, func(i, j int) bool {
		return nameOf(out[i].Name) < nameOf(out[j].Name)
	})
	return out
}

func definitionName(def ast.Node) string {
	switch d := def.(type) {
	case *ast.ObjectDefinition:
		return nameOf(d.Name)
	case *ast.InterfaceDefinition:
		return nameOf(d.Name)
	case *ast.InputObjectDefinition:
		return nameOf(d.Name)
	case *ast.EnumDefinition:
		return nameOf(d.Name)
	case *ast.UnionDefinition:
		return nameOf(d.Name)
	case *ast.ScalarDefinition:
		return nameOf(d.Name)
	case *ast.DirectiveDefinition:
		return nameOf(d.Name)
	case *ast.TypeExtensionDefinition:
		if d.Definition != nil {
			return nameOf(d.Definition.Name)
		}
	}
	return ""
}
