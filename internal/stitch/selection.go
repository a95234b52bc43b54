package stitch

import (
	"fmt"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

const (
	typenameField  = "__typename"
	keyAliasPrefix = "__key_"
)

func keyAlias(field string) string {
	return keyAliasPrefix + field
}

// selectionSetFields returns the top-level field names of a selection set
// literal such as "{ sku }".
func selectionSetFields(selectionSet string) ([]string, error) {
	if selectionSet == "" {
		return nil, nil
	}
	doc, err := parser.Parse(parser.ParseParams{Source: selectionSet})
	if err != nil {
		return nil, fmt.Errorf("invalid selection set %q: %w", selectionSet, err)
	}
	op, ok := doc.Definitions[0].(*ast.OperationDefinition)
	if !ok || op.SelectionSet == nil {
		return nil, fmt.Errorf("invalid selection set %q", selectionSet)
	}
	var fields []string
	for _, sel := range op.SelectionSet.Selections {
		if f, ok := sel.(*ast.Field); ok {
			fields = append(fields, nameOf(f.Name))
		}
	}
	return fields, nil
}

func responseKey(f *ast.Field) string {
	if f.Alias != nil && f.Alias.Value != "" {
		return f.Alias.Value
	}
	return nameOf(f.Name)
}

// selectionBuilder rewrites a client selection into one the target
// subschema accepts. Fragment spreads become inline fragments, fields and
// type conditions the target lacks are dropped, and the keys other
// subschemas need to fetch the dropped fields are added in their place.
type selectionBuilder struct {
	plan      *plan
	target    *subschemaPlan
	fragments map[string]ast.Definition
	variables map[string]bool
}

func newSelectionBuilder(pl *plan, target *subschemaPlan, fragments map[string]ast.Definition) *selectionBuilder {
	return &selectionBuilder{
		plan:      pl,
		target:    target,
		fragments: fragments,
		variables: map[string]bool{},
	}
}

// field copies f for typeName, rewriting its sub-selection.
func (b *selectionBuilder) field(typeName string, f *ast.Field) *ast.Field {
	out := ast.NewField(&ast.Field{
		Alias:      f.Alias,
		Name:       f.Name,
		Arguments:  f.Arguments,
		Directives: f.Directives,
	})
	for _, arg := range f.Arguments {
		collectVariables(arg, b.variables)
	}
	for _, d := range f.Directives {
		collectVariables(d, b.variables)
	}
	if f.SelectionSet == nil {
		return out
	}
	returnType, _ := b.target.index.fieldType(typeName, nameOf(f.Name))
	out.SelectionSet = b.selectionSet(returnType, f.SelectionSet.Selections)
	return out
}

func (b *selectionBuilder) selectionSet(typeName string, selections []ast.Selection) *ast.SelectionSet {
	out := []ast.Selection{typenameSelection()}
	pruned := false
	for _, sel := range selections {
		switch s := sel.(type) {
		case *ast.Field:
			name := nameOf(s.Name)
			if name == typenameField {
				continue
			}
			if _, ok := b.target.index.fieldType(typeName, name); !ok {
				pruned = true
				continue
			}
			out = append(out, b.field(typeName, s))
		case *ast.InlineFragment:
			if frag := b.inlineFragment(typeName, s.TypeCondition, s.Directives, s.SelectionSet); frag != nil {
				out = append(out, frag)
			} else {
				pruned = true
			}
		case *ast.FragmentSpread:
			def, ok := b.fragments[nameOf(s.Name)].(*ast.FragmentDefinition)
			if !ok {
				continue
			}
			if frag := b.inlineFragment(typeName, def.TypeCondition, s.Directives, def.SelectionSet); frag != nil {
				out = append(out, frag)
			} else {
				pruned = true
			}
		}
	}
	if pruned {
		out = append(out, b.keySelections(typeName)...)
	}
	return ast.NewSelectionSet(&ast.SelectionSet{Selections: out})
}

func (b *selectionBuilder) inlineFragment(typeName string, cond *ast.Named, directives []*ast.Directive, set *ast.SelectionSet) *ast.InlineFragment {
	condition := typeName
	if cond != nil {
		condition = nameOf(cond.Name)
	}
	if !b.target.index.hasType(condition) || set == nil {
		return nil
	}
	for _, d := range directives {
		collectVariables(d, b.variables)
	}
	return ast.NewInlineFragment(&ast.InlineFragment{
		TypeCondition: ast.NewNamed(&ast.Named{Name: newName(condition)}),
		Directives:    directives,
		SelectionSet:  b.selectionSet(condition, set.Selections),
	})
}

// keySelections selects, under reserved aliases, the fields other
// subschemas need to fetch the rest of an object of typeName.
func (b *selectionBuilder) keySelections(typeName string) []ast.Selection {
	var out []ast.Selection
	for _, concrete := range b.target.index.concreteTypes(typeName) {
		seen := map[string]bool{}
		var keys []ast.Selection
		for _, provider := range b.plan.mergeProviders[concrete] {
			if provider == b.target {
				continue
			}
			for _, field := range provider.keyFields[concrete] {
				if seen[field] {
					continue
				}
				if _, ok := b.target.index.fieldType(concrete, field); !ok {
					continue
				}
				seen[field] = true
				keys = append(keys, ast.NewField(&ast.Field{
					Alias: newName(keyAlias(field)),
					Name:  newName(field),
				}))
			}
		}
		if len(keys) == 0 {
			continue
		}
		if concrete == typeName {
			out = append(out, keys...)
			continue
		}
		out = append(out, ast.NewInlineFragment(&ast.InlineFragment{
			TypeCondition: ast.NewNamed(&ast.Named{Name: newName(concrete)}),
			SelectionSet:  ast.NewSelectionSet(&ast.SelectionSet{Selections: keys}),
		}))
	}
	return out
}

func typenameSelection() *ast.Field {
	return ast.NewField(&ast.Field{Name: newName(typenameField)})
}

// variableDefinitions returns the definitions of the variables the builder
// saw, in the order the operation declares them, plus their values.
func (b *selectionBuilder) variableDefinitions(op *ast.OperationDefinition, values map[string]interface{}) ([]*ast.VariableDefinition, map[string]interface{}) {
	if op == nil || len(b.variables) == 0 {
		return nil, nil
	}
	var defs []*ast.VariableDefinition
	vars := map[string]interface{}{}
	for _, def := range op.VariableDefinitions {
		if def.Variable == nil {
			continue
		}
		name := nameOf(def.Variable.Name)
		if !b.variables[name] {
			continue
		}
		defs = append(defs, def)
		if v, ok := values[name]; ok {
			vars[name] = v
		}
	}
	return defs, vars
}
