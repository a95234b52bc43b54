package stitch

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
)

// typeIndex answers which types and fields one subschema can serve.
type typeIndex struct {
	fields   map[string]map[string]string // type -> field -> named return type
	possible map[string][]string          // abstract type -> object types
	objects  map[string]bool
}

func newTypeIndex(doc *ast.Document) *typeIndex {
	idx := &typeIndex{
		fields:   map[string]map[string]string{},
		possible: map[string][]string{},
		objects:  map[string]bool{},
	}
	if doc == nil {
		return idx
	}
	addFields := func(typeName string, fields []*ast.FieldDefinition) {
		if idx.fields[typeName] == nil {
			idx.fields[typeName] = map[string]string{}
		}
		for _, f := range fields {
			idx.fields[typeName][nameOf(f.Name)] = namedType(f.Type)
		}
	}
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectDefinition:
			name := nameOf(d.Name)
			idx.objects[name] = true
			addFields(name, d.Fields)
			for _, iface := range d.Interfaces {
				idx.addPossible(nameOf(iface.Name), name)
			}
		case *ast.TypeExtensionDefinition:
			if d.Definition != nil {
				addFields(nameOf(d.Definition.Name), d.Definition.Fields)
			}
		case *ast.InterfaceDefinition:
			addFields(nameOf(d.Name), d.Fields)
		case *ast.UnionDefinition:
			idx.fields[nameOf(d.Name)] = map[string]string{}
			for _, member := range d.Types {
				idx.addPossible(nameOf(d.Name), nameOf(member.Name))
			}
		}
	}
	return idx
}

func (idx *typeIndex) addPossible(abstract, object string) {
	for _, existing := range idx.possible[abstract] {
		if existing == object {
			return
		}
	}
	idx.possible[abstract] = append(idx.possible[abstract], object)
}

func (idx *typeIndex) hasType(typeName string) bool {
	_, ok := idx.fields[typeName]
	return ok
}

func (idx *typeIndex) fieldType(typeName, fieldName string) (string, bool) {
	t, ok := idx.fields[typeName][fieldName]
	return t, ok
}

// concreteTypes lists the object types a selection on typeName may produce.
func (idx *typeIndex) concreteTypes(typeName string) []string {
	if idx.objects[typeName] {
		return []string{typeName}
	}
	return idx.possible[typeName]
}

// subschemaPlan is a subschema together with the lookups delegation needs.
type subschemaPlan struct {
	*Subschema
	index *typeIndex
	// keyFields holds the fields named by each merge selection set.
	keyFields map[string][]string
}

func newSubschemaPlan(s *Subschema) (*subschemaPlan, error) {
	p := &subschemaPlan{
		Subschema: s,
		index:     newTypeIndex(s.TypeDefs),
		keyFields: map[string][]string{},
	}
	for typeName, cfg := range s.Merge {
		if err := cfg.validate(typeName); err != nil {
			return nil, fmt.Errorf("subschema %q: %w", s.Name, err)
		}
		fields, err := selectionSetFields(cfg.SelectionSet)
		if err != nil {
			return nil, fmt.Errorf("subschema %q: merge config for %q: %w", s.Name, typeName, err)
		}
		if len(fields) == 0 {
			fields = []string{cfg.Key}
		}
		p.keyFields[typeName] = fields
	}
	return p, nil
}
