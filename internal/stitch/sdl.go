package stitch

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/printer"
	"github.com/graphql-go/graphql/language/source"
)

// ParseSDL parses a type definition document. name labels the source in
// syntax errors.
func ParseSDL(name, sdl string) (*ast.Document, error) {
	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(sdl), Name: name}),
	})
	if err != nil {
		return nil, fmt.Errorf("invalid type definitions in %s: %w", name, err)
	}
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.OperationDefinition, *ast.FragmentDefinition:
			return nil, fmt.Errorf("invalid type definitions in %s: executable definitions are not allowed", name)
		case *ast.ObjectDefinition:
			err = checkFieldTypes(d.Name, d.Fields)
		case *ast.TypeExtensionDefinition:
			if d.Definition != nil {
				err = checkFieldTypes(d.Definition.Name, d.Definition.Fields)
			}
		case *ast.InterfaceDefinition:
			err = checkFieldTypes(d.Name, d.Fields)
		case *ast.InputObjectDefinition:
			err = checkInputTypes(nameOf(d.Name), d.Fields)
		case *ast.DirectiveDefinition:
			err = checkInputTypes("@"+nameOf(d.Name), d.Arguments)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid type definitions in %s: %w", name, err)
		}
	}
	return doc, nil
}

func checkFieldTypes(typeName *ast.Name, fields []*ast.FieldDefinition) error {
	for _, f := range fields {
		owner := nameOf(typeName) + "." + nameOf(f.Name)
		if !hasType(f.Type) {
			return fmt.Errorf("%s has no type", owner)
		}
		if err := checkInputTypes(owner, f.Arguments); err != nil {
			return err
		}
	}
	return nil
}

func checkInputTypes(owner string, values []*ast.InputValueDefinition) error {
	for _, v := range values {
		if !hasType(v.Type) {
			return fmt.Errorf("%s.%s has no type", owner, nameOf(v.Name))
		}
	}
	return nil
}

func hasType(t ast.Type) bool {
	switch tt := t.(type) {
	case *ast.Named:
		return tt != nil && tt.Name != nil
	case *ast.List:
		return tt != nil && hasType(tt.Type)
	case *ast.NonNull:
		return tt != nil && hasType(tt.Type)
	}
	return false
}

// MustParseSDL is ParseSDL for package-level literals.
func MustParseSDL(name, sdl string) *ast.Document {
	doc, err := ParseSDL(name, sdl)
	if err != nil {
		panic(err)
	}
	return doc
}

// PrintSDL renders a document back to GraphQL syntax.
func PrintSDL(doc *ast.Document) string {
	if doc == nil {
		return ""
	}
	printed, _ := printer.Print(doc).(string)
	return printed
}

func nameOf(n *ast.Name) string {
	if n == nil {
		return ""
	}
	return n.Value
}

func newName(value string) *ast.Name {
	return ast.NewName(&ast.Name{Value: value})
}

func descriptionOf(s *ast.StringValue) string {
	if s == nil {
		return ""
	}
	return s.Value
}

// namedType unwraps list and non-null wrappers.
func namedType(t ast.Type) string {
	for {
		switch tt := t.(type) {
		case *ast.Named:
			return nameOf(tt.Name)
		case *ast.List:
			t = tt.Type
		case *ast.NonNull:
			t = tt.Type
		default:
			return ""
		}
	}
}

func findDirective(directives []*ast.Directive, name string) *ast.Directive {
	for _, d := range directives {
		if nameOf(d.Name) == name {
			return d
		}
	}
	return nil
}

func findArgument(args []*ast.Argument, name string) *ast.Argument {
	for _, a := range args {
		if nameOf(a.Name) == name {
			return a
		}
	}
	return nil
}

// deprecationReason returns the @deprecated reason, or "" if the directive is absent.
func deprecationReason(directives []*ast.Directive) string {
	d := findDirective(directives, "deprecated")
	if d == nil {
		return ""
	}
	if arg := findArgument(d.Arguments, "reason"); arg != nil {
		if s, ok := arg.Value.(*ast.StringValue); ok {
			return s.Value
		}
	}
	return "No longer supported"
}
