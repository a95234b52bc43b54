package stitch

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/kinds"
)

// typeBuilder turns the merged registry into graphql-go types. Field maps
// are thunks so types may reference each other in any order.
type typeBuilder struct {
	reg       *registry
	plan      *plan
	resolvers ResolverMap
	types     map[string]graphql.Type
	errs      []error
}

func newTypeBuilder(reg *registry, pl *plan, resolvers ResolverMap) *typeBuilder {
	return &typeBuilder{
		reg:       reg,
		plan:      pl,
		resolvers: resolvers,
		types: map[string]graphql.Type{
			"String":  graphql.String,
			"Int":     graphql.Int,
			"Float":   graphql.Float,
			"Boolean": graphql.Boolean,
			"ID":      graphql.ID,
		},
	}
}

func (b *typeBuilder) fail(format string, args ...interface{}) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func (b *typeBuilder) build() (graphql.Schema, error) {
	for _, name := range b.reg.order {
		switch b.reg.kinds[name] {
		case kinds.ScalarDefinition:
			b.types[name] = b.scalar(b.reg.scalars[name])
		case kinds.EnumDefinition:
			b.types[name] = b.enum(b.reg.enums[name])
		case kinds.InputObjectDefinition:
			b.types[name] = b.inputObject(b.reg.inputs[name])
		case kinds.InterfaceDefinition:
			b.types[name] = b.iface(b.reg.interfaces[name])
		case kinds.ObjectDefinition:
			b.types[name] = b.object(b.reg.objects[name])
		case kinds.UnionDefinition:
			b.types[name] = b.union(b.reg.unions[name])
		}
	}

	query, ok := b.types["Query"].(*graphql.Object)
	if !ok {
		return graphql.Schema{}, fmt.Errorf("stitched schema has no Query type")
	}
	cfg := graphql.SchemaConfig{Query: query}
	if mutation, ok := b.types["Mutation"].(*graphql.Object); ok && len(b.reg.objects["Mutation"].Fields) > 0 {
		cfg.Mutation = mutation
	}
	for _, name := range b.reg.order {
		if name == "Query" || name == "Mutation" {
			continue
		}
		cfg.Types = append(cfg.Types, b.types[name])
	}
	cfg.Directives = append([]*graphql.Directive{}, graphql.SpecifiedDirectives...)
	for _, name := range b.reg.directiveOrder {
		cfg.Directives = append(cfg.Directives, b.directive(b.reg.directives[name]))
	}

	schema, err := graphql.NewSchema(cfg)
	if len(b.errs) > 0 {
		return graphql.Schema{}, b.errs[0]
	}
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("invalid stitched schema: %w", err)
	}
	return schema, nil
}

func (b *typeBuilder) scalar(d *ast.ScalarDefinition) *graphql.Scalar {
	passthrough := func(value interface{}) interface{} { return value }
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        nameOf(d.Name),
		Description: descriptionOf(d.Description),
		Serialize:   passthrough,
		ParseValue:  passthrough,
		ParseLiteral: func(v ast.Value) interface{} {
			return valueFromAST(v, nil)
		},
	})
}

func (b *typeBuilder) enum(d *ast.EnumDefinition) *graphql.Enum {
	values := graphql.EnumValueConfigMap{}
	for _, v := range d.Values {
		name := nameOf(v.Name)
		values[name] = &graphql.EnumValueConfig{
			Value:             name,
			Description:       descriptionOf(v.Description),
			DeprecationReason: deprecationReason(v.Directives),
		}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:        nameOf(d.Name),
		Description: descriptionOf(d.Description),
		Values:      values,
	})
}

func (b *typeBuilder) inputObject(d *ast.InputObjectDefinition) *graphql.InputObject {
	name := nameOf(d.Name)
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        name,
		Description: descriptionOf(d.Description),
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields := graphql.InputObjectConfigFieldMap{}
			for _, f := range d.Fields {
				fields[nameOf(f.Name)] = &graphql.InputObjectFieldConfig{
					Type:         b.inputType(f.Type, name+"."+nameOf(f.Name)),
					DefaultValue: valueFromAST(f.DefaultValue, nil),
					Description:  descriptionOf(f.Description),
				}
			}
			return fields
		}),
	})
}

func (b *typeBuilder) iface(d *ast.InterfaceDefinition) *graphql.Interface {
	name := nameOf(d.Name)
	var iface *graphql.Interface
	iface = graphql.NewInterface(graphql.InterfaceConfig{
		Name:        name,
		Description: descriptionOf(d.Description),
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.fields(name, d.Fields, false)
		}),
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			return b.resolveType(iface, p)
		},
	})
	return iface
}

func (b *typeBuilder) union(d *ast.UnionDefinition) *graphql.Union {
	name := nameOf(d.Name)
	var union *graphql.Union
	union = graphql.NewUnion(graphql.UnionConfig{
		Name:        name,
		Description: descriptionOf(d.Description),
		Types: graphql.UnionTypesThunk(func() []*graphql.Object {
			members := make([]*graphql.Object, 0, len(d.Types))
			for _, member := range d.Types {
				obj, ok := b.types[nameOf(member.Name)].(*graphql.Object)
				if !ok {
					b.fail("union %q member %q is not an object type", name, nameOf(member.Name))
					continue
				}
				members = append(members, obj)
			}
			return members
		}),
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			return b.resolveType(union, p)
		},
	})
	return union
}

func (b *typeBuilder) object(d *ast.ObjectDefinition) *graphql.Object {
	name := nameOf(d.Name)
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        name,
		Description: descriptionOf(d.Description),
		Interfaces: graphql.InterfacesThunk(func() []*graphql.Interface {
			ifaces := make([]*graphql.Interface, 0, len(d.Interfaces))
			for _, n := range d.Interfaces {
				iface, ok := b.types[nameOf(n.Name)].(*graphql.Interface)
				if !ok {
					b.fail("type %q implements %q, which is not an interface", name, nameOf(n.Name))
					continue
				}
				ifaces = append(ifaces, iface)
			}
			return ifaces
		}),
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return b.fields(name, d.Fields, true)
		}),
	})
}

func (b *typeBuilder) fields(typeName string, defs []*ast.FieldDefinition, withResolvers bool) graphql.Fields {
	fields := graphql.Fields{}
	for _, f := range defs {
		fieldName := nameOf(f.Name)
		field := &graphql.Field{
			Name:              fieldName,
			Type:              b.outputType(f.Type, typeName+"."+fieldName),
			Description:       descriptionOf(f.Description),
			DeprecationReason: deprecationReason(f.Directives),
			Args:              b.arguments(f.Arguments, typeName+"."+fieldName),
		}
		if withResolvers {
			field.Resolve = b.plan.resolverFor(typeName, fieldName, b.resolvers)
		}
		fields[fieldName] = field
	}
	return fields
}

func (b *typeBuilder) arguments(defs []*ast.InputValueDefinition, owner string) graphql.FieldConfigArgument {
	if len(defs) == 0 {
		return nil
	}
	args := graphql.FieldConfigArgument{}
	for _, a := range defs {
		args[nameOf(a.Name)] = &graphql.ArgumentConfig{
			Type:         b.inputType(a.Type, owner+"("+nameOf(a.Name)+")"),
			DefaultValue: valueFromAST(a.DefaultValue, nil),
			Description:  descriptionOf(a.Description),
		}
	}
	return args
}

func (b *typeBuilder) directive(d *ast.DirectiveDefinition) *graphql.Directive {
	name := nameOf(d.Name)
	locations := make([]string, 0, len(d.Locations))
	for _, loc := range d.Locations {
		locations = append(locations, nameOf(loc))
	}
	return graphql.NewDirective(graphql.DirectiveConfig{
		Name:        name,
		Description: descriptionOf(d.Description),
		Locations:   locations,
		Args:        b.arguments(d.Arguments, "@"+name),
	})
}

func (b *typeBuilder) outputType(t ast.Type, owner string) graphql.Output {
	switch tt := t.(type) {
	case *ast.NonNull:
		return graphql.NewNonNull(b.outputType(tt.Type, owner))
	case *ast.List:
		return graphql.NewList(b.outputType(tt.Type, owner))
	case *ast.Named:
		typ, ok := b.types[nameOf(tt.Name)]
		if !ok {
			b.fail("%s references unknown type %q", owner, nameOf(tt.Name))
			return graphql.String
		}
		if _, isInput := typ.(*graphql.InputObject); isInput {
			b.fail("%s uses input type %q as an output", owner, nameOf(tt.Name))
			return graphql.String
		}
		return typ
	}
	b.fail("%s has an unsupported type", owner)
	return graphql.String
}

func (b *typeBuilder) inputType(t ast.Type, owner string) graphql.Input {
	switch tt := t.(type) {
	case *ast.NonNull:
		return graphql.NewNonNull(b.inputType(tt.Type, owner))
	case *ast.List:
		return graphql.NewList(b.inputType(tt.Type, owner))
	case *ast.Named:
		typ, ok := b.types[nameOf(tt.Name)]
		if !ok {
			b.fail("%s references unknown type %q", owner, nameOf(tt.Name))
			return graphql.String
		}
		switch typ.(type) {
		case *graphql.Scalar, *graphql.Enum, *graphql.InputObject:
			return typ
		}
		b.fail("%s uses output type %q as an input", owner, nameOf(tt.Name))
		return graphql.String
	}
	b.fail("%s has an unsupported type", owner)
	return graphql.String
}

// resolveType picks the concrete type of an abstract value: the
// __typename a subschema reported, the only possible type, or IsTypeOf.
func (b *typeBuilder) resolveType(abstract graphql.Abstract, p graphql.ResolveTypeParams) *graphql.Object {
	if m, ok := p.Value.(map[string]interface{}); ok {
		if name, ok := m[typenameField].(string); ok {
			if obj, ok := b.types[name].(*graphql.Object); ok {
				return obj
			}
		}
	}
	possible := p.Info.Schema.PossibleTypes(abstract)
	if len(possible) == 1 {
		return possible[0]
	}
	for _, obj := range possible {
		if obj.IsTypeOf != nil && obj.IsTypeOf(graphql.IsTypeOfParams{Value: p.Value, Info: p.Info, Context: p.Context}) {
			return obj
		}
	}
	return nil
}
