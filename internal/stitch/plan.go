package stitch

import (
	"strings"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/logging"
)

// Reserved keys on result maps. They never reach the client because
// graphql-go only copies selected fields into the response.
const (
	originKey = "__stitch_subschema"
	errorsKey = "__stitch_errors"
)

// plan holds what the resolvers need to route fields between subschemas.
type plan struct {
	subschemas []*subschemaPlan
	// rootOwners maps root type and field to the remote subschema serving it.
	rootOwners map[string]map[string]*subschemaPlan
	// mergeProviders lists, per type, the subschemas that can fetch it by key.
	mergeProviders map[string][]*subschemaPlan
	maxBatchSize   int
	logger         *logging.Logger
}

func (pl *plan) subschema(name string) *subschemaPlan {
	for _, sp := range pl.subschemas {
		if sp.Name == name {
			return sp
		}
	}
	return nil
}

func (pl *plan) resolverFor(typeName, fieldName string, resolvers ResolverMap) graphql.FieldResolveFn {
	if fn, ok := resolvers.Lookup(typeName, fieldName); ok {
		return fn
	}
	if owner := pl.rootOwners[typeName][fieldName]; owner != nil {
		return pl.proxyResolver(typeName, owner)
	}
	return pl.fieldResolver
}

// fieldResolver reads a field from a parent produced by a subschema. If
// that subschema does not define the field, it is fetched from another
// subschema that can merge the parent's type.
func (pl *plan) fieldResolver(p graphql.ResolveParams) (interface{}, error) {
	parent, ok := p.Source.(map[string]interface{})
	if !ok || len(p.Info.FieldASTs) == 0 {
		return graphql.DefaultResolveFn(p)
	}
	key := responseKey(p.Info.FieldASTs[0])
	if err := fieldErrors(parent, key); err != nil {
		return nil, err
	}
	origin, _ := parent[originKey].(string)
	if origin == "" {
		return graphql.DefaultResolveFn(p)
	}
	if value, present := parent[key]; present {
		return value, nil
	}
	typeName := p.Info.ParentType.Name()
	from := pl.subschema(origin)
	if from != nil {
		if _, defined := from.index.fieldType(typeName, p.Info.FieldName); defined {
			if value, present := parent[p.Info.FieldName]; present {
				return value, nil
			}
			return nil, nil
		}
	}
	if target := pl.mergeTarget(from, typeName, p.Info.FieldName); target != nil {
		return pl.delegateMerged(p, target, typeName, parent, key)
	}
	return nil, nil
}

// mergeTarget finds the last subschema other than from that defines
// typeName.fieldName and can fetch typeName by key.
func (pl *plan) mergeTarget(from *subschemaPlan, typeName, fieldName string) *subschemaPlan {
	providers := pl.mergeProviders[typeName]
	for i := len(providers) - 1; i >= 0; i-- {
		sp := providers[i]
		if sp == from || !sp.remote() {
			continue
		}
		if _, ok := sp.index.fieldType(typeName, fieldName); ok {
			return sp
		}
	}
	return nil
}

// tagResolver marks results of a local subschema's resolver with the
// subschema's name so missing fields can be merged in from elsewhere.
func tagResolver(fn graphql.FieldResolveFn, subschema string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		value, err := fn(p)
		if err != nil {
			return value, err
		}
		if thunk, ok := value.(func() (interface{}, error)); ok {
			return func() (interface{}, error) {
				v, err := thunk()
				if err != nil {
					return v, err
				}
				return tagOrigin(v, subschema), nil
			}, nil
		}
		return tagOrigin(value, subschema), nil
	}
}

// tagOrigin returns value with subschema recorded on every reachable map.
// Maps are copied so values owned by a resolver are never mutated. Maps
// already carrying an origin are kept as they are.
func tagOrigin(value interface{}, subschema string) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		if _, tagged := v[originKey]; tagged {
			return v
		}
		out := make(map[string]interface{}, len(v)+1)
		for k, child := range v {
			if k == errorsKey {
				out[k] = child
				continue
			}
			out[k] = tagOrigin(child, subschema)
		}
		out[originKey] = subschema
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = tagOrigin(item, subschema)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = tagOrigin(item, subschema)
		}
		return out
	}
	return value
}

// attachErrors files backend errors under the deepest map the error path
// reaches, keyed by the field leading out of it. A path that ends at a
// list index, or runs into a null entry, is filed on the field holding the
// list. Errors that cannot be placed below the root are returned.
func attachErrors(data map[string]interface{}, errs []ResponseError) []ResponseError {
	var unplaced []ResponseError
	for _, e := range errs {
		holder, key, depth := errorHolder(data, e.Path)
		if holder == nil || depth == 0 {
			unplaced = append(unplaced, e)
			continue
		}
		byField, _ := holder[errorsKey].(map[string][]ResponseError)
		if byField == nil {
			byField = map[string][]ResponseError{}
			holder[errorsKey] = byField
		}
		byField[key] = append(byField[key], e)
	}
	return unplaced
}

func errorHolder(data map[string]interface{}, path []interface{}) (map[string]interface{}, string, int) {
	var (
		holder map[string]interface{}
		key    string
		depth  int
	)
	var container interface{} = data
	for i, segment := range path {
		if m, ok := container.(map[string]interface{}); ok {
			if k, isKey := segment.(string); isKey {
				holder, key, depth = m, k, i
			}
		}
		container = step(container, segment)
		if container == nil {
			break
		}
	}
	return holder, key, depth
}

// filedErrors returns the errors filed for key on the map found by walking
// path from data.
func filedErrors(data map[string]interface{}, path []string, key string) []ResponseError {
	var container interface{} = data
	for _, segment := range path {
		container = step(container, segment)
	}
	holder, _ := container.(map[string]interface{})
	byField, _ := holder[errorsKey].(map[string][]ResponseError)
	return byField[key]
}

func step(container interface{}, segment interface{}) interface{} {
	switch c := container.(type) {
	case map[string]interface{}:
		if key, ok := segment.(string); ok {
			return c[key]
		}
	case []interface{}:
		var idx int
		switch i := segment.(type) {
		case float64:
			idx = int(i)
		case int:
			idx = i
		default:
			return nil
		}
		if idx >= 0 && idx < len(c) {
			return c[idx]
		}
	}
	return nil
}

// fieldErrors returns the backend errors filed for key on parent.
func fieldErrors(parent map[string]interface{}, key string) error {
	byField, _ := parent[errorsKey].(map[string][]ResponseError)
	if len(byField[key]) == 0 {
		return nil
	}
	return joinResponseErrors(byField[key])
}

// RemoteError carries the errors a subschema reported for one field.
type RemoteError struct {
	Subschema string
	Errors    []ResponseError
}

func (e *RemoteError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, re := range e.Errors {
		msgs = append(msgs, re.Message)
	}
	if e.Subschema == "" {
		return strings.Join(msgs, "; ")
	}
	return e.Subschema + ": " + strings.Join(msgs, "; ")
}

func joinResponseErrors(errs []ResponseError) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return &RemoteError{Errors: errs}
}

// StripReserved returns a copy of value without the bookkeeping keys the
// stitcher adds to result maps. Resolvers that forward their parent to
// another service use it.
func StripReserved(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, child := range v {
			if k == originKey || k == errorsKey {
				continue
			}
			out[k] = StripReserved(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = StripReserved(item)
		}
		return out
	}
	return value
}
