package stitch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/kinds"
	"github.com/graphql-go/graphql/language/visitor"
)

// valueFromAST converts a literal to its untyped Go form. Variables are read
// from vars; a missing variable yields nil.
func valueFromAST(v ast.Value, vars map[string]interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case *ast.Variable:
		return vars[nameOf(val.Name)]
	case *ast.IntValue:
		if n, err := strconv.ParseInt(val.Value, 10, 64); err == nil {
			return int(n)
		}
		return nil
	case *ast.FloatValue:
		if f, err := strconv.ParseFloat(val.Value, 64); err == nil {
			return f
		}
		return nil
	case *ast.StringValue:
		return val.Value
	case *ast.BooleanValue:
		return val.Value
	case *ast.EnumValue:
		if val.Value == "null" {
			return nil
		}
		return val.Value
	case *ast.ListValue:
		out := make([]interface{}, 0, len(val.Values))
		for _, item := range val.Values {
			out = append(out, valueFromAST(item, vars))
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(val.Fields))
		for _, f := range val.Fields {
			out[nameOf(f.Name)] = valueFromAST(f.Value, vars)
		}
		return out
	default:
		return nil
	}
}

// astFromValue renders a Go value as a GraphQL literal. Map keys are sorted
// so printed operations are stable. There is no null literal node, so nil
// is written as the bare keyword through an enum node.
func astFromValue(v interface{}) (ast.Value, error) {
	switch val := v.(type) {
	case nil:
		return ast.NewEnumValue(&ast.EnumValue{Value: "null"}), nil
	case ast.Value:
		return val, nil
	case string:
		return ast.NewStringValue(&ast.StringValue{Value: val}), nil
	case bool:
		return ast.NewBooleanValue(&ast.BooleanValue{Value: val}), nil
	case int:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.Itoa(val)}), nil
	case int32:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.FormatInt(int64(val), 10)}), nil
	case int64:
		return ast.NewIntValue(&ast.IntValue{Value: strconv.FormatInt(val, 10)}), nil
	case float32:
		return floatLiteral(float64(val)), nil
	case float64:
		return floatLiteral(val), nil
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return ast.NewIntValue(&ast.IntValue{Value: val.String()}), nil
		}
		return ast.NewFloatValue(&ast.FloatValue{Value: val.String()}), nil
	case []interface{}:
		values := make([]ast.Value, 0, len(val))
		for _, item := range val {
			lit, err := astFromValue(item)
			if err != nil {
				return nil, err
			}
			values = append(values, lit)
		}
		return ast.NewListValue(&ast.ListValue{Values: values}), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]*ast.ObjectField, 0, len(keys))
		for _, k := range keys {
			lit, err := astFromValue(val[k])
			if err != nil {
				return nil, err
			}
			fields = append(fields, ast.NewObjectField(&ast.ObjectField{Name: newName(k), Value: lit}))
		}
		return ast.NewObjectValue(&ast.ObjectValue{Fields: fields}), nil
	}

	// Typed slices such as []string.
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]interface{}, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return astFromValue(items)
	}
	return nil, fmt.Errorf("cannot encode %T as a GraphQL literal", v)
}

func floatLiteral(f float64) ast.Value {
	if f == float64(int64(f)) {
		return ast.NewIntValue(&ast.IntValue{Value: strconv.FormatInt(int64(f), 10)})
	}
	return ast.NewFloatValue(&ast.FloatValue{Value: strconv.FormatFloat(f, 'g', -1, 64)})
}

// argumentsFromMap builds a sorted argument list for a delegated field.
func argumentsFromMap(args map[string]interface{}) ([]*ast.Argument, error) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*ast.Argument, 0, len(keys))
	for _, k := range keys {
		lit, err := astFromValue(args[k])
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}
		out = append(out, ast.NewArgument(&ast.Argument{Name: newName(k), Value: lit}))
	}
	return out, nil
}

// collectVariables adds the name of every variable referenced under node.
func collectVariables(node ast.Node, into map[string]bool) {
	if node == nil {
		return
	}
	visitor.Visit(node, &visitor.VisitorOptions{
		KindFuncMap: map[string]visitor.NamedVisitFuncs{
			kinds.Variable: {
				Kind: func(p visitor.VisitFuncParams) (string, interface{}) {
					if v, ok := p.Node.(*ast.Variable); ok {
						into[nameOf(v.Name)] = true
					}
					return visitor.ActionNoChange, nil
				},
			},
		},
	}, nil)
}
