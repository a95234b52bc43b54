package stitch

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/samber/lo"
)

// RemoveField drops typeName.fieldName from a subschema. The field is then
// neither exposed nor forwarded to that subschema.
func RemoveField(typeName, fieldName string) Transform {
	return func(doc *ast.Document) error {
		forEachFieldList(doc, typeName, func(fields []*ast.FieldDefinition) []*ast.FieldDefinition {
			return lo.Reject(fields, func(f *ast.FieldDefinition, _ int) bool {
				return nameOf(f.Name) == fieldName
			})
		})
		return nil
	}
}

// ClearDeprecation removes the @deprecated directive from typeName.fieldName.
func ClearDeprecation(typeName, fieldName string) Transform {
	return func(doc *ast.Document) error {
		found := false
		forEachFieldList(doc, typeName, func(fields []*ast.FieldDefinition) []*ast.FieldDefinition {
			for _, f := range fields {
				if nameOf(f.Name) != fieldName {
					continue
				}
				found = true
				f.Directives = lo.Reject(f.Directives, func(d *ast.Directive, _ int) bool {
					return nameOf(d.Name) == "deprecated"
				})
			}
			return fields
		})
		if !found {
			return fmt.Errorf("cannot clear deprecation: field %s.%s not found", typeName, fieldName)
		}
		return nil
	}
}

func forEachFieldList(doc *ast.Document, typeName string, fn func([]*ast.FieldDefinition) []*ast.FieldDefinition) {
	if doc == nil {
		return
	}
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectDefinition:
			if nameOf(d.Name) == typeName {
				d.Fields = fn(d.Fields)
			}
		case *ast.InterfaceDefinition:
			if nameOf(d.Name) == typeName {
				d.Fields = fn(d.Fields)
			}
		case *ast.TypeExtensionDefinition:
			if d.Definition != nil && nameOf(d.Definition.Name) == typeName {
				d.Definition.Fields = fn(d.Definition.Fields)
			}
		}
	}
}

func applyTransforms(s *Subschema) error {
	for i, transform := range s.Transforms {
		if err := transform(s.TypeDefs); err != nil {
			return fmt.Errorf("subschema %q transform %d: %w", s.Name, i, err)
		}
	}
	return nil
}
