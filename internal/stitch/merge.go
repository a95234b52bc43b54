package stitch

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/kinds"
)

// specifiedDirectiveNames are provided by graphql-go and never redeclared.
var specifiedDirectiveNames = map[string]bool{
	"skip":       true,
	"include":    true,
	"deprecated": true,
}

// builtinScalars map to graphql-go's scalar types.
var builtinScalars = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}

// definitionSource labels where a definition came from for conflict messages.
type definitionSource struct {
	name      string
	subschema *Subschema
}

func (s definitionSource) String() string {
	if s.name == "" {
		return "extension type definitions"
	}
	return fmt.Sprintf("subschema %q", s.name)
}

type pendingExtension struct {
	def *ast.ObjectDefinition
	src definitionSource
}

// registry accumulates the union of every source's type definitions.
type registry struct {
	order      []string
	kinds      map[string]string
	sources    map[string]definitionSource
	objects    map[string]*ast.ObjectDefinition
	interfaces map[string]*ast.InterfaceDefinition
	unions     map[string]*ast.UnionDefinition
	enums      map[string]*ast.EnumDefinition
	inputs     map[string]*ast.InputObjectDefinition
	scalars    map[string]*ast.ScalarDefinition

	directiveOrder []string
	directives     map[string]*ast.DirectiveDefinition

	// owners records the last source to define each object field.
	owners map[string]map[string]*Subschema

	extensions []pendingExtension
}

func newRegistry() *registry {
	return &registry{
		kinds:      map[string]string{},
		sources:    map[string]definitionSource{},
		objects:    map[string]*ast.ObjectDefinition{},
		interfaces: map[string]*ast.InterfaceDefinition{},
		unions:     map[string]*ast.UnionDefinition{},
		enums:      map[string]*ast.EnumDefinition{},
		inputs:     map[string]*ast.InputObjectDefinition{},
		scalars:    map[string]*ast.ScalarDefinition{},
		directives: map[string]*ast.DirectiveDefinition{},
		owners:     map[string]map[string]*Subschema{},
	}
}

// add merges every definition in doc. Type extensions are queued until all
// base types are known.
func (r *registry) add(doc *ast.Document, src definitionSource) error {
	if doc == nil {
		return nil
	}
	for _, def := range doc.Definitions {
		var err error
		switch d := def.(type) {
		case *ast.ObjectDefinition:
			err = r.addObject(d, src)
		case *ast.InterfaceDefinition:
			err = r.addInterface(d, src)
		case *ast.UnionDefinition:
			err = r.addUnion(d, src)
		case *ast.EnumDefinition:
			err = r.addEnum(d, src)
		case *ast.InputObjectDefinition:
			err = r.addInput(d, src)
		case *ast.ScalarDefinition:
			err = r.addScalar(d, src)
		case *ast.DirectiveDefinition:
			r.addDirective(d)
		case *ast.TypeExtensionDefinition:
			if d.Definition != nil {
				r.extensions = append(r.extensions, pendingExtension{def: d.Definition, src: src})
			}
		case *ast.SchemaDefinition:
			// Root types are always Query and Mutation.
		default:
			err = fmt.Errorf("%s: unsupported definition %s", src, def.GetKind())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *registry) claim(name, kind string, src definitionSource) (exists bool, err error) {
	prev, ok := r.kinds[name]
	if !ok {
		r.kinds[name] = kind
		r.sources[name] = src
		r.order = append(r.order, name)
		return false, nil
	}
	if prev != kind {
		return true, fmt.Errorf("type %q is defined as %s by %s and as %s by %s",
			name, kindLabel(prev), r.sources[name], kindLabel(kind), src)
	}
	return true, nil
}

func (r *registry) addObject(d *ast.ObjectDefinition, src definitionSource) error {
	name := nameOf(d.Name)
	exists, err := r.claim(name, kinds.ObjectDefinition, src)
	if err != nil {
		return err
	}
	if !exists {
		r.objects[name] = ast.NewObjectDefinition(&ast.ObjectDefinition{
			Name:        d.Name,
			Description: d.Description,
			Directives:  d.Directives,
		})
	}
	r.mergeObjectFields(r.objects[name], d, src)
	return nil
}

func (r *registry) mergeObjectFields(target, d *ast.ObjectDefinition, src definitionSource) {
	name := nameOf(target.Name)
	if d.Description != nil {
		target.Description = d.Description
	}
	target.Interfaces = mergeNamed(target.Interfaces, d.Interfaces)
	target.Fields = mergeFields(target.Fields, d.Fields)
	if r.owners[name] == nil {
		r.owners[name] = map[string]*Subschema{}
	}
	for _, f := range d.Fields {
		r.owners[name][nameOf(f.Name)] = src.subschema
	}
}

func (r *registry) addInterface(d *ast.InterfaceDefinition, src definitionSource) error {
	name := nameOf(d.Name)
	exists, err := r.claim(name, kinds.InterfaceDefinition, src)
	if err != nil {
		return err
	}
	if !exists {
		r.interfaces[name] = ast.NewInterfaceDefinition(&ast.InterfaceDefinition{Name: d.Name})
	}
	target := r.interfaces[name]
	if d.Description != nil {
		target.Description = d.Description
	}
	target.Fields = mergeFields(target.Fields, d.Fields)
	return nil
}

func (r *registry) addUnion(d *ast.UnionDefinition, src definitionSource) error {
	name := nameOf(d.Name)
	exists, err := r.claim(name, kinds.UnionDefinition, src)
	if err != nil {
		return err
	}
	if !exists {
		r.unions[name] = ast.NewUnionDefinition(&ast.UnionDefinition{Name: d.Name})
	}
	target := r.unions[name]
	if d.Description != nil {
		target.Description = d.Description
	}
	target.Types = mergeNamed(target.Types, d.Types)
	return nil
}

func (r *registry) addEnum(d *ast.EnumDefinition, src definitionSource) error {
	name := nameOf(d.Name)
	exists, err := r.claim(name, kinds.EnumDefinition, src)
	if err != nil {
		return err
	}
	if !exists {
		r.enums[name] = ast.NewEnumDefinition(&ast.EnumDefinition{Name: d.Name})
	}
	target := r.enums[name]
	if d.Description != nil {
		target.Description = d.Description
	}
	for _, v := range d.Values {
		replaced := false
		for i, existing := range target.Values {
			if nameOf(existing.Name) == nameOf(v.Name) {
				target.Values[i] = v
				replaced = true
				break
			}
		}
		if !replaced {
			target.Values = append(target.Values, v)
		}
	}
	return nil
}

func (r *registry) addInput(d *ast.InputObjectDefinition, src definitionSource) error {
	name := nameOf(d.Name)
	exists, err := r.claim(name, kinds.InputObjectDefinition, src)
	if err != nil {
		return err
	}
	if !exists {
		r.inputs[name] = ast.NewInputObjectDefinition(&ast.InputObjectDefinition{Name: d.Name})
	}
	target := r.inputs[name]
	if d.Description != nil {
		target.Description = d.Description
	}
	for _, f := range d.Fields {
		replaced := false
		for i, existing := range target.Fields {
			if nameOf(existing.Name) == nameOf(f.Name) {
				target.Fields[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			target.Fields = append(target.Fields, f)
		}
	}
	return nil
}

func (r *registry) addScalar(d *ast.ScalarDefinition, src definitionSource) error {
	name := nameOf(d.Name)
	if builtinScalars[name] {
		return nil
	}
	exists, err := r.claim(name, kinds.ScalarDefinition, src)
	if err != nil {
		return err
	}
	if !exists || d.Description != nil {
		r.scalars[name] = d
	}
	return nil
}

func (r *registry) addDirective(d *ast.DirectiveDefinition) {
	name := nameOf(d.Name)
	if specifiedDirectiveNames[name] {
		return
	}
	if _, ok := r.directives[name]; !ok {
		r.directiveOrder = append(r.directiveOrder, name)
	}
	r.directives[name] = d
}

// applyExtensions folds queued `extend type` definitions into their base
// types. Extending a type no source defines is an error.
func (r *registry) applyExtensions() error {
	for _, ext := range r.extensions {
		name := nameOf(ext.def.Name)
		target, ok := r.objects[name]
		if !ok {
			if kind, known := r.kinds[name]; known {
				return fmt.Errorf("%s extends %s %q, only object types can be extended", ext.src, kindLabel(kind), name)
			}
			return fmt.Errorf("%s extends unknown type %q", ext.src, name)
		}
		r.mergeObjectFields(target, ext.def, ext.src)
	}
	r.extensions = nil
	return nil
}

// document renders the merged definitions in first-seen order.
func (r *registry) document() *ast.Document {
	defs := make([]ast.Node, 0, len(r.order)+len(r.directiveOrder))
	for _, name := range r.directiveOrder {
		defs = append(defs, r.directives[name])
	}
	for _, name := range r.order {
		switch r.kinds[name] {
		case kinds.ObjectDefinition:
			defs = append(defs, r.objects[name])
		case kinds.InterfaceDefinition:
			defs = append(defs, r.interfaces[name])
		case kinds.UnionDefinition:
			defs = append(defs, r.unions[name])
		case kinds.EnumDefinition:
			defs = append(defs, r.enums[name])
		case kinds.InputObjectDefinition:
			defs = append(defs, r.inputs[name])
		case kinds.ScalarDefinition:
			defs = append(defs, r.scalars[name])
		}
	}
	return ast.NewDocument(&ast.Document{Definitions: defs})
}

func mergeFields(existing, incoming []*ast.FieldDefinition) []*ast.FieldDefinition {
	out := append([]*ast.FieldDefinition(nil), existing...)
	for _, f := range incoming {
		replaced := false
		for i, e := range out {
			if nameOf(e.Name) == nameOf(f.Name) {
				out[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return out
}

func mergeNamed(existing, incoming []*ast.Named) []*ast.Named {
	out := append([]*ast.Named(nil), existing...)
	seen := map[string]bool{}
	for _, n := range out {
		seen[nameOf(n.Name)] = true
	}
	for _, n := range incoming {
		if !seen[nameOf(n.Name)] {
			seen[nameOf(n.Name)] = true
			out = append(out, n)
		}
	}
	return out
}

func kindLabel(kind string) string {
	switch kind {
	case kinds.ObjectDefinition:
		return "an object"
	case kinds.InterfaceDefinition:
		return "an interface"
	case kinds.UnionDefinition:
		return "a union"
	case kinds.EnumDefinition:
		return "an enum"
	case kinds.InputObjectDefinition:
		return "an input object"
	case kinds.ScalarDefinition:
		return "a scalar"
	default:
		return kind
	}
}
