package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql"
)

type resolverData struct {
	Parent interface{}            `json:"parent"`
	Args   map[string]interface{} `json:"args"`
}

type resolverResult struct {
	Result interface{} `json:"result"`
}

// functionResolver invokes action with the serialized parent and
// arguments and returns the "result" member of its response.
func functionResolver(invoker Invoker, action string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		args := p.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		var parent interface{}
		if !isRootType(p.Info) {
			parent = stitch.StripReserved(p.Source)
		}
		data, err := json.Marshal(resolverData{Parent: parent, Args: args})
		if err != nil {
			return nil, fmt.Errorf("encoding resolver data for %q: %w", action, err)
		}
		ctx := p.Context
		if ctx == nil {
			ctx = context.Background()
		}
		raw, err := invoker.Invoke(ctx, action, map[string]any{"resolverData": string(data)})
		if err != nil {
			return nil, err
		}
		var out resolverResult
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decoding result of %q: %w", action, err)
		}
		return out.Result, nil
	}
}

// isRootType reports whether the field belongs to the Query or Mutation
// type. Root fields have no parent.
func isRootType(info graphql.ResolveInfo) bool {
	parent, ok := info.ParentType.(*graphql.Object)
	if !ok || parent == nil {
		return false
	}
	return parent == info.Schema.QueryType() || parent == info.Schema.MutationType()
}
