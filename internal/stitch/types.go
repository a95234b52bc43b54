// Package stitch merges several GraphQL sources into one executable schema.
//
// A source is a Subschema: type definitions plus either local resolvers or
// an Executor that forwards operations to a remote GraphQL service. Root
// fields owned by a remote subschema are proxied. Object fields that live in
// a different subschema than their parent are fetched in batches through the
// owning subschema's MergedTypeConfig.
package stitch

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// DefaultMaxBatchSize caps the number of keys sent in one merged-type request.
const DefaultMaxBatchSize = 100

// ResolverMap maps type name to field name to resolver.
type ResolverMap map[string]map[string]graphql.FieldResolveFn

// Set registers fn for typeName.fieldName, replacing any previous resolver.
func (m ResolverMap) Set(typeName, fieldName string, fn graphql.FieldResolveFn) ResolverMap {
	if m[typeName] == nil {
		m[typeName] = map[string]graphql.FieldResolveFn{}
	}
	m[typeName][fieldName] = fn
	return m
}

// Lookup returns the resolver registered for typeName.fieldName.
func (m ResolverMap) Lookup(typeName, fieldName string) (graphql.FieldResolveFn, bool) {
	fn, ok := m[typeName][fieldName]
	return fn, ok && fn != nil
}

// Subschema is one source of types for the stitched schema.
type Subschema struct {
	Name      string
	TypeDefs  *ast.Document
	Resolvers ResolverMap
	// Executor forwards delegated operations. Nil for local subschemas,
	// whose fields resolve in-process.
	Executor Executor
	// Merge declares how objects of a type can be fetched from this
	// subschema by key when they were produced elsewhere.
	Merge      map[string]*MergedTypeConfig
	Transforms []Transform
}

func (s *Subschema) remote() bool {
	return s != nil && s.Executor != nil
}

// MergedTypeConfig describes the batched entry point used to fetch a type's
// fields from the subschema that declares it.
type MergedTypeConfig struct {
	// SelectionSet lists the fields the parent object must carry, e.g. "{ sku }".
	SelectionSet string
	// Key is the field whose value identifies an object.
	Key string
	// FieldName is the root query field that accepts a list of keys.
	FieldName string
	// Args builds the root field arguments for a batch of keys.
	Args func(keys []interface{}) map[string]interface{}
	// ResultPath locates the returned list below the root field.
	ResultPath []string
}

func (c *MergedTypeConfig) validate(typeName string) error {
	if c == nil {
		return fmt.Errorf("merge config for %q is nil", typeName)
	}
	if strings.TrimSpace(c.Key) == "" || strings.TrimSpace(c.FieldName) == "" || c.Args == nil {
		return fmt.Errorf("merge config for %q requires Key, FieldName and Args", typeName)
	}
	return nil
}

// Transform rewrites a subschema's type definitions before they are merged.
type Transform func(doc *ast.Document) error

// Request is an operation forwarded to a remote subschema.
type Request struct {
	Query         string
	Variables     map[string]interface{}
	OperationName string
}

// Response is the standard GraphQL response envelope.
type Response struct {
	Data   map[string]interface{} `json:"data"`
	Errors []ResponseError        `json:"errors,omitempty"`
}

// ResponseError is one entry of a GraphQL errors array.
type ResponseError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func (e ResponseError) Error() string {
	return e.Message
}

// Executor runs an operation against a remote GraphQL service.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (*Response, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
