package gqlcontext

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/graphql-go/graphql"
)

var bearerPattern = regexp.MustCompile(`^Bearer (.+)$`)

// ExtendFunc derives an extension's context value from a copy of the base
// context. The schema is the final stitched schema.
type ExtendFunc func(schema *graphql.Schema, base *Context) (any, error)

// Extension pairs an extension name with its context function.
type Extension struct {
	Name   string
	Extend ExtendFunc
}

// Builder produces a Context for each incoming request.
type Builder struct {
	schema     *graphql.Schema
	extensions []Extension
}

// NewBuilder returns a builder that runs exts in the given order. Entries
// without an ExtendFunc are skipped.
func NewBuilder(exts []Extension, schema *graphql.Schema) *Builder {
	withFn := make([]Extension, 0, len(exts))
	for _, ext := range exts {
		if ext.Extend != nil {
			withFn = append(withFn, ext)
		}
	}
	return &Builder{schema: schema, extensions: withFn}
}

// Build reads the storefront headers and runs every extension context
// function against its own clone of the base context.
func (b *Builder) Build(header http.Header) (*Context, error) {
	base := baseContext(header)

	result := base.Clone()
	result.Extensions = make(map[string]any, len(b.extensions))
	for _, ext := range b.extensions {
		value, err := ext.Extend(b.schema, base.Clone())
		if err != nil {
			return nil, &ExtendError{Extension: ext.Name, Err: err}
		}
		result.Extensions[ext.Name] = value
	}
	return result, nil
}

func baseContext(header http.Header) *Context {
	ctx := &Context{RequestHeaders: header.Clone()}
	if ctx.RequestHeaders == nil {
		ctx.RequestHeaders = http.Header{}
	}
	if m := bearerPattern.FindStringSubmatch(header.Get("Authorization")); m != nil {
		token := m[1]
		ctx.MonolithToken = &token
	}
	ctx.Currency = headerValue(header, "Content-Currency")
	ctx.Store = headerValue(header, "Store")
	return ctx
}

func headerValue(header http.Header, name string) *string {
	values := header.Values(name)
	if len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// ExtendError reports a failing extension context function.
type ExtendError struct {
	Extension string
	Err       error
}

func (e *ExtendError) Error() string {
	return fmt.Sprintf("context function of extension %q failed: %v", e.Extension, e.Err)
}

func (e *ExtendError) Unwrap() error {
	return e.Err
}
