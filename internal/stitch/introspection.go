package stitch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
)

// IntrospectionQuery fetches everything needed to rebuild a schema's type
// definitions.
const IntrospectionQuery = `query IntrospectionQuery {
  __schema {
    queryType { name }
    mutationType { name }
    subscriptionType { name }
    types { ...FullType }
    directives {
      name
      description
      locations
      args { ...InputValue }
    }
  }
}

fragment FullType on __Type {
  kind
  name
  description
  fields(includeDeprecated: true) {
    name
    description
    args { ...InputValue }
    type { ...TypeRef }
    isDeprecated
    deprecationReason
  }
  inputFields { ...InputValue }
  interfaces { ...TypeRef }
  enumValues(includeDeprecated: true) {
    name
    description
    isDeprecated
    deprecationReason
  }
  possibleTypes { ...TypeRef }
}

fragment InputValue on __InputValue {
  name
  description
  type { ...TypeRef }
  defaultValue
}

fragment TypeRef on __Type {
  kind
  name
  ofType {
    kind
    name
    ofType {
      kind
      name
      ofType {
        kind
        name
        ofType {
          kind
          name
          ofType {
            kind
            name
            ofType {
              kind
              name
              ofType { kind name }
            }
          }
        }
      }
    }
  }
}`

type introspectionSchema struct {
	QueryType        *introspectionName       `json:"queryType"`
	MutationType     *introspectionName       `json:"mutationType"`
	SubscriptionType *introspectionName       `json:"subscriptionType"`
	Types            []introspectionType      `json:"types"`
	Directives       []introspectionDirective `json:"directives"`
}

type introspectionName struct {
	Name string `json:"name"`
}

type introspectionType struct {
	Kind          string                    `json:"kind"`
	Name          string                    `json:"name"`
	Description   string                    `json:"description"`
	Fields        []introspectionField      `json:"fields"`
	InputFields   []introspectionInputValue `json:"inputFields"`
	Interfaces    []introspectionTypeRef    `json:"interfaces"`
	EnumValues    []introspectionEnumValue  `json:"enumValues"`
	PossibleTypes []introspectionTypeRef    `json:"possibleTypes"`
}

type introspectionField struct {
	Name              string                    `json:"name"`
	Description       string                    `json:"description"`
	Args              []introspectionInputValue `json:"args"`
	Type              introspectionTypeRef      `json:"type"`
	IsDeprecated      bool                      `json:"isDeprecated"`
	DeprecationReason string                    `json:"deprecationReason"`
}

type introspectionInputValue struct {
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Type         introspectionTypeRef `json:"type"`
	DefaultValue *string              `json:"defaultValue"`
}

type introspectionEnumValue struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	IsDeprecated      bool   `json:"isDeprecated"`
	DeprecationReason string `json:"deprecationReason"`
}

type introspectionTypeRef struct {
	Kind   string                `json:"kind"`
	Name   string                `json:"name"`
	OfType *introspectionTypeRef `json:"ofType"`
}

type introspectionDirective struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Locations   []string                  `json:"locations"`
	Args        []introspectionInputValue `json:"args"`
}

// Introspect runs IntrospectionQuery through exec and converts the result.
func Introspect(ctx context.Context, exec Executor) (*ast.Document, error) {
	resp, err := exec.Execute(ctx, Request{Query: IntrospectionQuery, OperationName: "IntrospectionQuery"})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, &RemoteError{Errors: resp.Errors}
	}
	return IntrospectionToDocument(resp.Data)
}

// IntrospectionToDocument rebuilds type definitions from an introspection
// result. It accepts the data object or the full response envelope. Root
// operation types are renamed to Query and Mutation so they merge with
// other sources; subscriptions are dropped.
func IntrospectionToDocument(result map[string]interface{}) (*ast.Document, error) {
	if data, ok := result["data"].(map[string]interface{}); ok {
		result = data
	}
	raw, ok := result["__schema"]
	if !ok {
		return nil, fmt.Errorf("introspection result has no __schema")
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var schema introspectionSchema
	if err := json.Unmarshal(encoded, &schema); err != nil {
		return nil, fmt.Errorf("decoding introspection result: %w", err)
	}

	c := &introspectionConverter{rename: map[string]string{}, skip: map[string]bool{}}
	if schema.QueryType == nil || schema.QueryType.Name == "" {
		return nil, fmt.Errorf("introspection result has no query type")
	}
	c.rename[schema.QueryType.Name] = "Query"
	if schema.MutationType != nil && schema.MutationType.Name != "" {
		c.rename[schema.MutationType.Name] = "Mutation"
	}
	if schema.SubscriptionType != nil && schema.SubscriptionType.Name != "" {
		c.skip[schema.SubscriptionType.Name] = true
	}

	var defs []ast.Node
	for _, d := range schema.Directives {
		if specifiedDirectiveNames[d.Name] || d.Name == "specifiedBy" {
			continue
		}
		def, err := c.directive(d)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	for _, t := range schema.Types {
		if strings.HasPrefix(t.Name, "__") || builtinScalars[t.Name] || c.skip[t.Name] {
			continue
		}
		def, err := c.typeDefinition(t)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return ast.NewDocument(&ast.Document{Definitions: defs}), nil
}

type introspectionConverter struct {
	rename map[string]string
	skip   map[string]bool
}

func (c *introspectionConverter) name(n string) *ast.Name {
	if renamed, ok := c.rename[n]; ok {
		return newName(renamed)
	}
	return newName(n)
}

func description(s string) *ast.StringValue {
	if s == "" {
		return nil
	}
	return ast.NewStringValue(&ast.StringValue{Value: s})
}

func (c *introspectionConverter) typeDefinition(t introspectionType) (ast.Node, error) {
	switch t.Kind {
	case "SCALAR":
		return ast.NewScalarDefinition(&ast.ScalarDefinition{
			Name:        c.name(t.Name),
			Description: description(t.Description),
		}), nil
	case "OBJECT":
		fields, err := c.fields(t.Fields)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t.Name, err)
		}
		ifaces := make([]*ast.Named, 0, len(t.Interfaces))
		for _, ref := range t.Interfaces {
			ifaces = append(ifaces, ast.NewNamed(&ast.Named{Name: c.name(ref.Name)}))
		}
		return ast.NewObjectDefinition(&ast.ObjectDefinition{
			Name:        c.name(t.Name),
			Description: description(t.Description),
			Interfaces:  ifaces,
			Fields:      fields,
		}), nil
	case "INTERFACE":
		fields, err := c.fields(t.Fields)
		if err != nil {
			return nil, fmt.Errorf("type %q: %w", t.Name, err)
		}
		return ast.NewInterfaceDefinition(&ast.InterfaceDefinition{
			Name:        c.name(t.Name),
			Description: description(t.Description),
			Fields:      fields,
		}), nil
	case "UNION":
		members := make([]*ast.Named, 0, len(t.PossibleTypes))
		for _, ref := range t.PossibleTypes {
			members = append(members, ast.NewNamed(&ast.Named{Name: c.name(ref.Name)}))
		}
		return ast.NewUnionDefinition(&ast.UnionDefinition{
			Name:        c.name(t.Name),
			Description: description(t.Description),
			Types:       members,
		}), nil
	case "ENUM":
		values := make([]*ast.EnumValueDefinition, 0, len(t.EnumValues))
		for _, v := range t.EnumValues {
			values = append(values, ast.NewEnumValueDefinition(&ast.EnumValueDefinition{
				Name:        newName(v.Name),
				Description: description(v.Description),
				Directives:  deprecatedDirective(v.IsDeprecated, v.DeprecationReason),
			}))
		}
		return ast.NewEnumDefinition(&ast.EnumDefinition{
			Name:        c.name(t.Name),
			Description: description(t.Description),
			Values:      values,
		}), nil
	case "INPUT_OBJECT":
		fields, err := c.inputValues(t.InputFields)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", t.Name, err)
		}
		return ast.NewInputObjectDefinition(&ast.InputObjectDefinition{
			Name:        c.name(t.Name),
			Description: description(t.Description),
			Fields:      fields,
		}), nil
	default:
		return nil, fmt.Errorf("type %q has unsupported kind %q", t.Name, t.Kind)
	}
}

func (c *introspectionConverter) fields(in []introspectionField) ([]*ast.FieldDefinition, error) {
	out := make([]*ast.FieldDefinition, 0, len(in))
	for _, f := range in {
		typ, err := c.typeRef(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		args, err := c.inputValues(f.Args)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out = append(out, ast.NewFieldDefinition(&ast.FieldDefinition{
			Name:        newName(f.Name),
			Description: description(f.Description),
			Arguments:   args,
			Type:        typ,
			Directives:  deprecatedDirective(f.IsDeprecated, f.DeprecationReason),
		}))
	}
	return out, nil
}

func (c *introspectionConverter) inputValues(in []introspectionInputValue) ([]*ast.InputValueDefinition, error) {
	out := make([]*ast.InputValueDefinition, 0, len(in))
	for _, v := range in {
		typ, err := c.typeRef(v.Type)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", v.Name, err)
		}
		def := ast.NewInputValueDefinition(&ast.InputValueDefinition{
			Name:        newName(v.Name),
			Description: description(v.Description),
			Type:        typ,
		})
		if v.DefaultValue != nil {
			value, err := parser.ParseValue(parser.ParseParams{Source: *v.DefaultValue})
			if err != nil {
				return nil, fmt.Errorf("argument %q default %q: %w", v.Name, *v.DefaultValue, err)
			}
			def.DefaultValue = value
		}
		out = append(out, def)
	}
	return out, nil
}

func (c *introspectionConverter) directive(d introspectionDirective) (*ast.DirectiveDefinition, error) {
	args, err := c.inputValues(d.Args)
	if err != nil {
		return nil, fmt.Errorf("directive %q: %w", d.Name, err)
	}
	locations := make([]*ast.Name, 0, len(d.Locations))
	for _, loc := range d.Locations {
		locations = append(locations, newName(loc))
	}
	return ast.NewDirectiveDefinition(&ast.DirectiveDefinition{
		Name:        newName(d.Name),
		Description: description(d.Description),
		Arguments:   args,
		Locations:   locations,
	}), nil
}

func (c *introspectionConverter) typeRef(ref introspectionTypeRef) (ast.Type, error) {
	switch ref.Kind {
	case "NON_NULL":
		if ref.OfType == nil {
			return nil, fmt.Errorf("non-null type without ofType")
		}
		inner, err := c.typeRef(*ref.OfType)
		if err != nil {
			return nil, err
		}
		return ast.NewNonNull(&ast.NonNull{Type: inner}), nil
	case "LIST":
		if ref.OfType == nil {
			return nil, fmt.Errorf("list type without ofType")
		}
		inner, err := c.typeRef(*ref.OfType)
		if err != nil {
			return nil, err
		}
		return ast.NewList(&ast.List{Type: inner}), nil
	default:
		if ref.Name == "" {
			return nil, fmt.Errorf("named type without a name")
		}
		return ast.NewNamed(&ast.Named{Name: c.name(ref.Name)}), nil
	}
}

func deprecatedDirective(deprecated bool, reason string) []*ast.Directive {
	if !deprecated {
		return nil
	}
	var args []*ast.Argument
	if reason != "" {
		args = append(args, ast.NewArgument(&ast.Argument{
			Name:  newName("reason"),
			Value: ast.NewStringValue(&ast.StringValue{Value: reason}),
		}))
	}
	return []*ast.Directive{ast.NewDirective(&ast.Directive{Name: newName("deprecated"), Arguments: args})}
}
