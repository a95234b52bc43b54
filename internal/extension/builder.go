package extension

import (
	"errors"
	"fmt"
	"sync"

	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql/language/ast"
)

var errSealed = errors.New("extension API used after setup() returned")

// Builder accumulates one extension's contributions during setup. Every
// method returns the builder so calls can be chained. Misuse is recorded
// and reported as a setup failure once setup returns.
type Builder struct {
	mu        sync.Mutex
	name      string
	typeDefs  []*ast.Document
	resolvers stitch.ResolverMap
	schemas   []*stitch.Subschema
	context   gqlcontext.ExtendFunc
	extended  bool
	sealed    bool
	errs      []error
}

func newBuilder(name string) *Builder {
	return &Builder{name: name, resolvers: stitch.ResolverMap{}}
}

// AddTypeDefs parses sdl and adds it to the extension's type definitions.
func (b *Builder) AddTypeDefs(sdl string) *Builder {
	doc, err := stitch.ParseSDL(b.name, sdl)
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.usable() {
		return b
	}
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.typeDefs = append(b.typeDefs, doc)
	return b
}

// AddResolvers merges resolvers into the extension's map. A field that is
// already set is replaced.
func (b *Builder) AddResolvers(resolvers stitch.ResolverMap) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.usable() {
		return b
	}
	for typeName, fields := range resolvers {
		for fieldName, fn := range fields {
			b.resolvers.Set(typeName, fieldName, fn)
		}
	}
	return b
}

// AddSchema adds a subschema to be stitched alongside the extension's type
// definitions.
func (b *Builder) AddSchema(schema *stitch.Subschema) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.usable() {
		return b
	}
	if schema == nil {
		b.errs = append(b.errs, errors.New("AddSchema called with a nil subschema"))
		return b
	}
	b.schemas = append(b.schemas, schema)
	return b
}

// ExtendContext sets the extension's per-request context function. It may
// be called once.
func (b *Builder) ExtendContext(fn gqlcontext.ExtendFunc) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.usable() {
		return b
	}
	switch {
	case fn == nil:
		b.errs = append(b.errs, errors.New("ExtendContext called with a nil function"))
	case b.extended:
		b.errs = append(b.errs, fmt.Errorf("ExtendContext called more than once"))
	default:
		b.context = fn
		b.extended = true
	}
	return b
}

// usable must be called with mu held.
func (b *Builder) usable() bool {
	if b.sealed {
		b.errs = append(b.errs, errSealed)
		return false
	}
	return true
}

func (b *Builder) seal() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
}

func (b *Builder) err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return errors.Join(b.errs...)
}
