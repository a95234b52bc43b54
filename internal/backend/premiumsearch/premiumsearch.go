// Package premiumsearch proxies the Live Search GraphQL service.
package premiumsearch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storefront-graphql/internal/backend"
	"storefront-graphql/internal/backend/monolith"
	"storefront-graphql/internal/gqlcontext"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/stitch"
)

// SubschemaName names the premium search subschema.
const SubschemaName = "premium-search"

// forwardedHeaders are copied from the incoming request when present.
var forwardedHeaders = []string{
	"Magento-Environment-Id",
	"Magento-Store-Code",
	"Magento-Store-View-Code",
	"Magento-Website-Code",
}

// Config configures the premium search subschema.
type Config struct {
	URL                  string
	APIKey               string
	IntrospectionTimeout time.Duration
	RequestTimeout       time.Duration
	HTTPClient           *http.Client
	Logger               *logging.Logger
}

// IntrospectionError reports that the search schema could not be fetched.
type IntrospectionError struct {
	URL string
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("Failed introspecting remote Search Schema at %q", e.URL)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// NewExecutor returns an executor that authenticates with the API key and
// forwards the storefront scope headers.
func NewExecutor(cfg Config) *stitch.HTTPExecutor {
	return stitch.NewHTTPExecutor(cfg.URL,
		stitch.WithHTTPClient(cfg.HTTPClient),
		stitch.WithTimeout(cfg.RequestTimeout),
		stitch.WithHeaders(func(ctx context.Context, h http.Header) {
			h.Set("X-Api-Key", cfg.APIKey)
			gc := gqlcontext.FromContext(ctx)
			if gc == nil {
				return
			}
			for _, name := range forwardedHeaders {
				if v := gc.RequestHeaders.Get(name); v != "" {
					h.Set(name, v)
				}
			}
		}),
	)
}

// Transforms hide the ProductInterface fields the monolith's product types
// do not implement, and undeprecate ProductInterface.id.
func Transforms() []stitch.Transform {
	return []stitch.Transform{
		stitch.RemoveField("ProductInterface", "uid"),
		stitch.ClearDeprecation("ProductInterface", "id"),
		stitch.RemoveField("ProductInterface", "custom_attributes"),
	}
}

// NewSubschema introspects the search service and returns its subschema.
func NewSubschema(ctx context.Context, cfg Config) (*stitch.Subschema, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	exec := NewExecutor(cfg)

	logger.Info("fetching premium search schema", "url", cfg.URL)
	doc, err := backend.Introspect(ctx, exec, cfg.IntrospectionTimeout, logger)
	if err != nil {
		return nil, &IntrospectionError{URL: cfg.URL, Err: err}
	}
	return &stitch.Subschema{
		Name:       SubschemaName,
		TypeDefs:   doc,
		Executor:   exec,
		Transforms: Transforms(),
		Merge: map[string]*stitch.MergedTypeConfig{
			"SimpleProduct": monolith.ProductMergeConfig(),
		},
	}, nil
}
