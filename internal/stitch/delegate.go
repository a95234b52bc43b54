package stitch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"storefront-graphql/internal/observability"
)

const mergeFieldAlias = "__merge"

type batchState struct {
	mu          sync.Mutex
	batches     map[string]*mergeBatch
	cacheHits   int32
	cacheMisses int32
	requests    int32
}

type batchStateKey struct{}

func newBatchState() *batchState {
	return &batchState{batches: make(map[string]*mergeBatch)}
}

// NewBatchingContext injects request-scoped batch state for merged-type
// delegation. A context that already carries state is returned unchanged.
func NewBatchingContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := getBatchState(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, batchStateKey{}, newBatchState())
}

func getBatchState(ctx context.Context) (*batchState, bool) {
	if ctx == nil {
		return nil, false
	}
	state, ok := ctx.Value(batchStateKey{}).(*batchState)
	return state, ok
}

// GetBatchState retrieves the batch state from context (exported for middleware access).
func GetBatchState(ctx context.Context) (*batchState, bool) {
	return getBatchState(ctx)
}

// IncrementCacheHit increments the cache hit counter.
func (s *batchState) IncrementCacheHit() {
	atomic.AddInt32(&s.cacheHits, 1)
}

// IncrementCacheMiss increments the cache miss counter.
func (s *batchState) IncrementCacheMiss() {
	atomic.AddInt32(&s.cacheMisses, 1)
}

// GetCacheHits returns how many parents reused a key already in a batch.
func (s *batchState) GetCacheHits() int32 {
	return atomic.LoadInt32(&s.cacheHits)
}

// GetCacheMisses returns how many parents added a new key to a batch.
func (s *batchState) GetCacheMisses() int32 {
	return atomic.LoadInt32(&s.cacheMisses)
}

// GetRequests returns how many merged-type requests were sent.
func (s *batchState) GetRequests() int32 {
	return atomic.LoadInt32(&s.requests)
}

// mergeBatch collects the keys of sibling objects that need fields from the
// same subschema. It is sent once, on the first thunk that needs it.
type mergeBatch struct {
	plan      *plan
	state     *batchState
	target    *subschemaPlan
	typeName  string
	config    *MergedTypeConfig
	fragments map[string]ast.Definition
	operation *ast.OperationDefinition
	variables map[string]interface{}

	// Guarded by state.mu.
	started bool
	parents int
	keys    []interface{}
	seen    map[string]bool
	fields  []*ast.Field

	once    sync.Once
	results map[string]map[string]interface{}
	// keyErrors holds backend errors that could not be matched to an
	// item, filed under the keys of the chunk that produced them.
	keyErrors map[string][]ResponseError
	err       error
}

// delegateMerged registers parent with the batch for its position in the
// response and returns a thunk that reads the field once the batch ran.
func (pl *plan) delegateMerged(p graphql.ResolveParams, target *subschemaPlan, typeName string, parent map[string]interface{}, key string) (interface{}, error) {
	cfg := target.Merge[typeName]
	keyValue, ok := parent[keyAlias(cfg.Key)]
	if !ok {
		keyValue, ok = parent[cfg.Key]
	}
	if !ok || keyValue == nil {
		pl.logger.Debug("merge key missing on parent",
			"type", typeName, "field", p.Info.FieldName, "key", cfg.Key, "subschema", target.Name)
		return nil, nil
	}

	state, ok := getBatchState(p.Context)
	if !ok {
		state = newBatchState()
	}
	batch := state.register(pl, p, target, typeName, cfg, keyValue)
	ctx := p.Context
	return func() (interface{}, error) {
		if err := batch.load(ctx); err != nil {
			return nil, err
		}
		if errs := batch.keyErrors[keyString(keyValue)]; len(errs) > 0 {
			return nil, &RemoteError{Subschema: target.Name, Errors: errs}
		}
		item := batch.results[keyString(keyValue)]
		if item == nil {
			return nil, nil
		}
		if err := fieldErrors(item, key); err != nil {
			return nil, err
		}
		return item[key], nil
	}, nil
}

func (s *batchState) register(pl *plan, p graphql.ResolveParams, target *subschemaPlan, typeName string, cfg *MergedTypeConfig, keyValue interface{}) *mergeBatch {
	group := strings.Join([]string{target.Name, typeName, parentPath(p.Info.Path)}, "|")

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.batches[group]
	if batch == nil || batch.started {
		op, _ := p.Info.Operation.(*ast.OperationDefinition)
		batch = &mergeBatch{
			plan:      pl,
			state:     s,
			target:    target,
			typeName:  typeName,
			config:    cfg,
			fragments: p.Info.Fragments,
			operation: op,
			variables: p.Info.VariableValues,
			seen:      map[string]bool{},
		}
		s.batches[group] = batch
	}

	batch.parents++
	k := keyString(keyValue)
	if batch.seen[k] {
		s.IncrementCacheHit()
		observability.GraphQLMetricsFromContext(p.Context).RecordBatchCacheHit(p.Context, typeName)
	} else {
		batch.seen[k] = true
		batch.keys = append(batch.keys, keyValue)
		s.IncrementCacheMiss()
		observability.GraphQLMetricsFromContext(p.Context).RecordBatchCacheMiss(p.Context, typeName)
	}
	for _, f := range p.Info.FieldASTs {
		if !lo.Contains(batch.fields, f) {
			batch.fields = append(batch.fields, f)
		}
	}
	return batch
}

func (b *mergeBatch) load(ctx context.Context) error {
	b.once.Do(func() {
		b.state.mu.Lock()
		b.started = true
		keys := append([]interface{}(nil), b.keys...)
		fields := append([]*ast.Field(nil), b.fields...)
		parents := b.parents
		b.state.mu.Unlock()

		b.results, b.keyErrors, b.err = b.fetch(ctx, keys, fields, parents)
	})
	return b.err
}

func (b *mergeBatch) fetch(ctx context.Context, keys []interface{}, fields []*ast.Field, parents int) (map[string]map[string]interface{}, map[string][]ResponseError, error) {
	metrics := observability.GraphQLMetricsFromContext(ctx)
	chunks := lo.Chunk(keys, b.plan.maxBatchSize)
	metrics.RecordBatchKeyCount(ctx, int64(len(keys)), b.typeName)
	metrics.RecordBatchQueriesSaved(ctx, int64(parents-len(chunks)), b.typeName)

	partials := make([]map[string]map[string]interface{}, len(chunks))
	orphans := make([][]ResponseError, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			res, orphaned, err := b.fetchChunk(gctx, chunk, fields)
			if err != nil {
				return err
			}
			partials[i], orphans[i] = res, orphaned
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	results := make(map[string]map[string]interface{}, len(keys))
	keyErrors := map[string][]ResponseError{}
	for i, partial := range partials {
		for k, item := range partial {
			results[k] = item
		}
		if len(orphans[i]) == 0 {
			continue
		}
		// Errors go to the keys the backend returned nothing for. When every
		// key came back they are reported on the whole chunk.
		targets := lo.Filter(chunks[i], func(k interface{}, _ int) bool {
			return partial[keyString(k)] == nil
		})
		if len(targets) == 0 {
			targets = chunks[i]
		}
		for _, k := range targets {
			keyErrors[keyString(k)] = orphans[i]
		}
	}
	metrics.RecordBatchResultCount(ctx, int64(len(results)), b.typeName)
	return results, keyErrors, nil
}

// fetchChunk sends one merge request. Besides the items by key it returns
// the backend errors that belong to no returned item.
func (b *mergeBatch) fetchChunk(ctx context.Context, keys []interface{}, fields []*ast.Field) (map[string]map[string]interface{}, []ResponseError, error) {
	atomic.AddInt32(&b.state.requests, 1)
	args, err := argumentsFromMap(b.config.Args(keys))
	if err != nil {
		return nil, nil, fmt.Errorf("building merge arguments for %q: %w", b.typeName, err)
	}

	builder := newSelectionBuilder(b.plan, b.target, b.fragments)
	requested := make([]ast.Selection, 0, len(fields))
	for _, f := range fields {
		requested = append(requested, f)
	}
	inner := builder.selectionSet(b.typeName, requested)
	inner.Selections = append(inner.Selections, ast.NewField(&ast.Field{
		Alias: newName(keyAlias(b.config.Key)),
		Name:  newName(b.config.Key),
	}))
	selection := ast.NewSelectionSet(&ast.SelectionSet{
		Selections: []ast.Selection{
			typenameSelection(),
			ast.NewInlineFragment(&ast.InlineFragment{
				TypeCondition: ast.NewNamed(&ast.Named{Name: newName(b.typeName)}),
				SelectionSet:  inner,
			}),
		},
	})
	for i := len(b.config.ResultPath) - 1; i >= 0; i-- {
		selection = ast.NewSelectionSet(&ast.SelectionSet{
			Selections: []ast.Selection{ast.NewField(&ast.Field{
				Name:         newName(b.config.ResultPath[i]),
				SelectionSet: selection,
			})},
		})
	}
	root := ast.NewField(&ast.Field{
		Alias:        newName(mergeFieldAlias),
		Name:         newName(b.config.FieldName),
		Arguments:    args,
		SelectionSet: selection,
	})

	defs, vars := builder.variableDefinitions(b.operation, b.variables)
	query := printOperation(ast.NewOperationDefinition(&ast.OperationDefinition{
		Operation:           ast.OperationTypeQuery,
		VariableDefinitions: defs,
		SelectionSet:        ast.NewSelectionSet(&ast.SelectionSet{Selections: []ast.Selection{root}}),
	}))

	resp, err := b.plan.execute(ctx, b.target, Request{Query: query, Variables: vars},
		attribute.String("stitch.merge.type", b.typeName),
		attribute.Int("stitch.merge.keys", len(keys)),
	)
	if err != nil {
		return nil, nil, err
	}
	orphaned := attachErrors(resp.Data, resp.Errors)
	if len(orphaned) > 0 && resp.Data[mergeFieldAlias] == nil {
		return nil, nil, &RemoteError{Subschema: b.target.Name, Errors: orphaned}
	}
	listPath := append([]string{mergeFieldAlias}, b.config.ResultPath...)
	orphaned = append(orphaned, filedErrors(resp.Data, listPath[:len(listPath)-1], listPath[len(listPath)-1])...)

	var list interface{} = resp.Data[mergeFieldAlias]
	for _, segment := range b.config.ResultPath {
		list = step(list, segment)
	}
	items, _ := list.([]interface{})
	out := make(map[string]map[string]interface{}, len(items))
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		k, ok := item[keyAlias(b.config.Key)]
		if !ok || k == nil {
			continue
		}
		tagged, _ := tagOrigin(item, b.target.Name).(map[string]interface{})
		out[keyString(k)] = tagged
	}
	return out, orphaned, nil
}

// parentPath renders the response path of the parent object without list
// indices, so every entry of a list shares one batch.
func parentPath(path *graphql.ResponsePath) string {
	if path == nil {
		return ""
	}
	var segments []string
	for _, segment := range path.Prev.AsArray() {
		if s, ok := segment.(string); ok {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, ".")
}

func keyString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
