package stitch

import (
	"context"
	"fmt"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
	"go.opentelemetry.io/otel/attribute"

	"storefront-graphql/internal/observability"
)

// proxyResolver forwards a root field to the remote subschema that owns it.
func (pl *plan) proxyResolver(rootType string, owner *subschemaPlan) graphql.FieldResolveFn {
	operation := ast.OperationTypeQuery
	if rootType == "Mutation" {
		operation = ast.OperationTypeMutation
	}
	return func(p graphql.ResolveParams) (interface{}, error) {
		if len(p.Info.FieldASTs) == 0 {
			return nil, nil
		}
		b := newSelectionBuilder(pl, owner, p.Info.Fragments)
		selections := make([]ast.Selection, 0, len(p.Info.FieldASTs))
		for _, f := range p.Info.FieldASTs {
			selections = append(selections, b.field(rootType, f))
		}

		op, _ := p.Info.Operation.(*ast.OperationDefinition)
		defs, vars := b.variableDefinitions(op, p.Info.VariableValues)
		var opName *ast.Name
		if op != nil && op.Name != nil {
			opName = op.Name
		}
		query := printOperation(ast.NewOperationDefinition(&ast.OperationDefinition{
			Operation:           operation,
			Name:                opName,
			VariableDefinitions: defs,
			SelectionSet:        ast.NewSelectionSet(&ast.SelectionSet{Selections: selections}),
		}))

		key := responseKey(p.Info.FieldASTs[0])
		resp, err := pl.execute(p.Context, owner, Request{
			Query:         query,
			Variables:     vars,
			OperationName: nameOf(opName),
		}, attribute.String("graphql.field.name", p.Info.FieldName))
		if err != nil {
			return nil, err
		}
		if unplaced := attachErrors(resp.Data, resp.Errors); len(unplaced) > 0 {
			return nil, &RemoteError{Subschema: owner.Name, Errors: unplaced}
		}
		return tagOrigin(resp.Data[key], owner.Name), nil
	}
}

func printOperation(op *ast.OperationDefinition) string {
	printed, _ := printer.Print(ast.NewDocument(&ast.Document{Definitions: []ast.Node{op}})).(string)
	return printed
}

// execute sends req to target and records the delegation.
func (pl *plan) execute(ctx context.Context, target *subschemaPlan, req Request, attrs ...attribute.KeyValue) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs = append(attrs, attribute.String("stitch.subschema", target.Name))
	ctx, span := startDelegationSpan(ctx, "stitch.delegate", attrs...)
	start := time.Now()
	resp, err := target.Executor.Execute(ctx, req)
	observability.GraphQLMetricsFromContext(ctx).RecordDelegation(ctx, target.Name, time.Since(start), err)
	finishDelegationSpan(span, err, "")
	if err != nil {
		pl.logger.Debug("delegation failed", "subschema", target.Name, "error", err)
		return nil, fmt.Errorf("subschema %q: %w", target.Name, err)
	}
	if resp == nil {
		resp = &Response{}
	}
	if resp.Data == nil {
		resp.Data = map[string]interface{}{}
	}
	return resp, nil
}
