// Package gqlcontext builds the per-request GraphQL context shared by the
// stitched schema's resolvers and backend executors.
package gqlcontext

import (
	"context"
	"net/http"
)

// Context is the per-request GraphQL context. Optional values are pointers so
// an absent header is distinguishable from an empty one.
type Context struct {
	MonolithToken  *string
	Currency       *string
	Store          *string
	RequestHeaders http.Header

	// Extensions holds each extension's context value keyed by extension name.
	Extensions map[string]any
}

// Clone returns a copy of the base fields with fresh header storage. The
// extension values are not carried over.
func (c *Context) Clone() *Context {
	if c == nil {
		return &Context{RequestHeaders: http.Header{}}
	}
	headers := c.RequestHeaders.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return &Context{
		MonolithToken:  clonePtr(c.MonolithToken),
		Currency:       clonePtr(c.Currency),
		Store:          clonePtr(c.Store),
		RequestHeaders: headers,
	}
}

// Extension returns the context value registered by the named extension.
func (c *Context) Extension(name string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Extensions[name]
	return v, ok
}

// StoreCode returns the Store header value, or "" when absent.
func (c *Context) StoreCode() string {
	if c == nil {
		return ""
	}
	return deref(c.Store)
}

// CurrencyCode returns the Content-Currency header value, or "" when absent.
func (c *Context) CurrencyCode() string {
	if c == nil {
		return ""
	}
	return deref(c.Currency)
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type contextKey struct{}

// WithContext stores gc on ctx.
func WithContext(ctx context.Context, gc *Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, gc)
}

// FromContext returns the GraphQL context stored on ctx, or nil.
func FromContext(ctx context.Context) *Context {
	if ctx == nil {
		return nil
	}
	gc, _ := ctx.Value(contextKey{}).(*Context)
	return gc
}
