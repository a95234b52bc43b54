package observability

import (
	"context"
	"log/slog"
	"testing"

	"storefront-graphql/internal/gqlrequest"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestGraphQLSpanAttributes(t *testing.T) {
	analysis := &gqlrequest.Analysis{
		Envelope: gqlrequest.Envelope{
			Query:             `query Cart { cart(cart_id: "x") { id } }`,
			DocumentSizeBytes: 40,
		},
		RequestedOperationName: "Cart",
		OperationName:          "Cart",
		OperationType:          "query",
		OperationHash:          "hash123",
		RootFields:             []string{"cart"},
		FieldCount:             2,
		SelectionDepth:         2,
		Operation:              &ast.OperationDefinition{},
	}
	meta := gqlrequest.ExecMeta{Store: "default", Currency: "EUR", Fingerprint: "fp-1"}

	attrs := GraphQLSpanAttributes(analysis, meta)
	set := attribute.NewSet(attrs...)

	v, ok := set.Value("storefront.store")
	assert.True(t, ok)
	assert.Equal(t, "default", v.AsString())
	v, ok = set.Value("storefront.currency")
	assert.True(t, ok)
	assert.Equal(t, "EUR", v.AsString())
	v, ok = set.Value("graphql.operation.root_fields")
	assert.True(t, ok)
	assert.Equal(t, []string{"cart"}, v.AsStringSlice())
	_, ok = set.Value("schema.fingerprint")
	assert.True(t, ok)
}

func TestGraphQLSpanAttributes_OmitsEmptyMeta(t *testing.T) {
	attrs := GraphQLSpanAttributes(nil, gqlrequest.ExecMeta{})
	assert.Empty(t, attrs)
}

func TestGraphQLLogFieldsIncludesTraceID(t *testing.T) {
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
		Remote:  true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	fields := GraphQLLogFields(ctx, &gqlrequest.Analysis{
		OperationName: "Cart",
		OperationType: "query",
	}, gqlrequest.ExecMeta{Store: "default"})

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if attr, ok := f.(slog.Attr); ok {
			keys = append(keys, attr.Key)
		}
	}
	assert.Contains(t, keys, "trace_id")
	assert.Contains(t, keys, "store")
	assert.NotContains(t, keys, "currency")
}
