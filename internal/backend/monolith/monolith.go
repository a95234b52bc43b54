// Package monolith proxies the Magento PHP GraphQL API as a subschema.
package monolith

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront-graphql/internal/backend"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql/language/ast"
)

// SubschemaName names the monolith subschema.
const SubschemaName = "monolith"

// Config configures the monolith subschema.
type Config struct {
	URL                  string
	IntrospectionTimeout time.Duration
	RequestTimeout       time.Duration
	HTTPClient           *http.Client
	Logger               *logging.Logger
}

// IntrospectionError reports that the monolith schema could not be fetched.
type IntrospectionError struct {
	URL string
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("Failed introspecting remote Magento schema at %q. "+
		"Make sure that the MONOLITH_GRAPHQL_URL configuration is set to "+
		"the correct value for your Magento instance", e.URL)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// AssertionError reports a monolith schema missing structure the gateway
// relies on.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return e.Message
}

// NewExecutor returns an executor that forwards the customer token, currency
// and store of the current request.
func NewExecutor(cfg Config) *stitch.HTTPExecutor {
	return stitch.NewHTTPExecutor(cfg.URL,
		stitch.WithHTTPClient(cfg.HTTPClient),
		stitch.WithTimeout(cfg.RequestTimeout),
		stitch.WithHeaders(forwardHeaders),
	)
}

func forwardHeaders(ctx context.Context, h http.Header) {
	gc := gqlcontext.FromContext(ctx)
	if gc == nil {
		return
	}
	if gc.MonolithToken != nil {
		h.Set("Authorization", "Bearer "+*gc.MonolithToken)
	}
	if gc.Currency != nil {
		h.Set("Content-Currency", *gc.Currency)
	}
	if gc.Store != nil {
		h.Set("Store", *gc.Store)
	}
}

// NewSubschema introspects the monolith and returns its subschema.
func NewSubschema(ctx context.Context, cfg Config) (*stitch.Subschema, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	exec := NewExecutor(cfg)

	logger.Info("fetching monolith schema", "url", cfg.URL)
	doc, err := backend.Introspect(ctx, exec, cfg.IntrospectionTimeout, logger)
	if err != nil {
		logger.Error("failed introspecting monolith schema", "url", cfg.URL, "error", err.Error())
		return nil, &IntrospectionError{URL: cfg.URL, Err: err}
	}
	if err := AssertRequiredStructure(doc); err != nil {
		return nil, err
	}

	return &stitch.Subschema{
		Name:     SubschemaName,
		TypeDefs: doc,
		Executor: exec,
		Merge: map[string]*stitch.MergedTypeConfig{
			"SimpleProduct": ProductMergeConfig(),
		},
	}, nil
}

// ProductMergeConfig fetches products by sku through Query.products.
func ProductMergeConfig() *stitch.MergedTypeConfig {
	return &stitch.MergedTypeConfig{
		SelectionSet: "{ sku }",
		Key:          "sku",
		FieldName:    "products",
		Args: func(keys []interface{}) map[string]interface{} {
			return map[string]interface{}{
				"filter": map[string]interface{}{
					"sku": map[string]interface{}{"in": keys},
				},
			}
		},
		ResultPath: []string{"items"},
	}
}

// AssertRequiredStructure checks that doc exposes the product filter the
// gateway delegates through.
func AssertRequiredStructure(doc *ast.Document) error {
	var filter *ast.InputObjectDefinition
	for _, def := range doc.Definitions {
		if in, ok := def.(*ast.InputObjectDefinition); ok && in.Name != nil && in.Name.Value == "ProductAttributeFilterInput" {
			filter = in
			break
		}
	}
	if filter == nil {
		return &AssertionError{Message: `Could not find required type "ProductAttributeFilterInput" in PHP application schema. ` +
			`Make sure your Magento store is running version 2.3.4 or later.`}
	}
	for _, f := range filter.Fields {
		if f.Name != nil && f.Name.Value == "sku" {
			return nil
		}
	}
	return &AssertionError{Message: `Could not find required field "ProductAttributeFilterInput.sku" in PHP application schema. ` +
		`Make sure your store has the "sku" attribute exposed for filtering: ` +
		`https://devdocs.magento.com/guides/v2.4/graphql/custom-filters.html`}
}
