// Package catalogsearch serves Query.productsSearch from the Search
// Storefront gRPC service.
//
// The service only returns product identities. Every other product field is
// fetched from the monolith through its SimpleProduct merge config, keyed by
// sku, so a page of results costs one extra request rather than one per item.
package catalogsearch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"storefront-graphql/internal/grpcjson"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"google.golang.org/grpc"
)

// SubschemaName names the catalog search subschema.
const SubschemaName = "catalog-search"

const searchProductsMethod = "/magento.searchStorefrontApi.proto.Search/SearchProducts"

// searchStore is the store ID the search service indexes products under.
const searchStore = "1"

var errNoResponse = errors.New("Did not receive a response from Search gRPC API")

// Filter attribute groups by the input type that carries their value.
var (
	equalAttributes = []string{"category_id", "sku", "url_key"}
	matchAttributes = []string{"description", "name", "short_description"}
)

// SearchRange bounds a numeric attribute.
type SearchRange struct {
	From *float64 `json:"from,omitempty"`
	To   *float64 `json:"to,omitempty"`
}

// Filter restricts results by one attribute.
type Filter struct {
	Attribute string       `json:"attribute"`
	Eq        string       `json:"eq,omitempty"`
	In        []string     `json:"in,omitempty"`
	Range     *SearchRange `json:"range,omitempty"`
}

// Sort orders results by one attribute.
type Sort struct {
	Attribute string `json:"attribute"`
	Direction string `json:"direction"`
}

// ProductSearchRequest is the SearchProducts request message.
type ProductSearchRequest struct {
	Phrase      string   `json:"phrase,omitempty"`
	Store       string   `json:"store"`
	Filters     []Filter `json:"filters,omitempty"`
	Sort        []Sort   `json:"sort,omitempty"`
	CurrentPage int      `json:"current_page,omitempty"`
	PageSize    int      `json:"page_size,omitempty"`
}

// ProductItem identifies one product in a search result.
type ProductItem struct {
	ID     int    `json:"id"`
	SKU    string `json:"sku"`
	TypeID string `json:"type_id"`
}

// ProductSearchResponse is the SearchProducts response message.
type ProductSearchResponse struct {
	Items      []ProductItem `json:"items"`
	TotalCount int           `json:"total_count"`
}

// Client calls the Search service.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewClient wraps conn. A positive timeout bounds each call.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// SearchProducts runs a product search.
func (c *Client) SearchProducts(ctx context.Context, req *ProductSearchRequest) (*ProductSearchResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var resp ProductSearchResponse
	if err := c.conn.Invoke(ctx, searchProductsMethod, req, &resp, grpcjson.CallOption()); err != nil {
		return nil, fmt.Errorf("search SearchProducts: %w", err)
	}
	return &resp, nil
}

// ResolveType maps a search service product type to its GraphQL type.
func ResolveType(typeID string) string {
	switch typeID {
	case "downloadable":
		return "DownloadableProduct"
	default:
		return "SimpleProduct"
	}
}

// NewSubschema returns the local subschema serving Query.productsSearch.
func NewSubschema(client *Client, logger *logging.Logger) (*stitch.Subschema, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	doc, err := stitch.ParseSDL(SubschemaName, typeDefs)
	if err != nil {
		return nil, err
	}
	resolvers := stitch.ResolverMap{}
	resolvers.Set("Query", "productsSearch", productsSearch(client, logger))
	return &stitch.Subschema{
		Name:      SubschemaName,
		TypeDefs:  doc,
		Resolvers: resolvers,
	}, nil
}

func productsSearch(client *Client, logger *logging.Logger) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx := p.Context
		if ctx == nil {
			ctx = context.Background()
		}
		req, err := buildRequest(p.Args)
		if err != nil {
			return nil, err
		}
		logger.Debug("sending search request to Search gRPC API",
			"phrase", req.Phrase, "filters", len(req.Filters), "page", req.CurrentPage)
		resp, err := client.SearchProducts(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errNoResponse
		}
		items := lo.Map(resp.Items, func(item ProductItem, _ int) interface{} {
			return map[string]interface{}{
				"__typename": ResolveType(item.TypeID),
				"id":         item.ID,
				"sku":        item.SKU,
			}
		})
		return map[string]interface{}{
			"items":       items,
			"total_count": resp.TotalCount,
		}, nil
	}
}

func buildRequest(args map[string]interface{}) (*ProductSearchRequest, error) {
	req := &ProductSearchRequest{Store: searchStore}
	if search, ok := args["search"].(string); ok {
		req.Phrase = search
	}
	if filter, ok := args["filter"].(map[string]interface{}); ok {
		filters, err := buildFilters(filter)
		if err != nil {
			return nil, err
		}
		req.Filters = filters
	}
	if order, ok := args["sort"].(map[string]interface{}); ok {
		req.Sort = buildSort(order)
	}
	if page, err := cast.ToIntE(args["currentPage"]); err == nil && page > 0 {
		req.CurrentPage = page
	}
	if size, err := cast.ToIntE(args["pageSize"]); err == nil && size > 0 {
		req.PageSize = size
	}
	return req, nil
}

// buildFilters emits one filter per attribute, in attribute name order.
func buildFilters(input map[string]interface{}) ([]Filter, error) {
	attrs := lo.Keys(input)
	sort.Strings(attrs)

	var filters []Filter
	for _, attr := range attrs {
		value, ok := input[attr].(map[string]interface{})
		if !ok {
			continue
		}
		f := Filter{Attribute: attr}
		switch {
		case lo.Contains(equalAttributes, attr):
			if eq, ok := value["eq"].(string); ok {
				f.Eq = eq
			}
			if in, ok := value["in"].([]interface{}); ok {
				f.In = cast.ToStringSlice(lo.Compact(in))
			}
		case lo.Contains(matchAttributes, attr):
			if match, ok := value["match"].(string); ok && match != "" {
				f.In = []string{match}
			}
		case attr == "price":
			r := &SearchRange{}
			for bound, dst := range map[string]**float64{"from": &r.From, "to": &r.To} {
				raw, ok := value[bound].(string)
				if !ok || raw == "" {
					continue
				}
				n, err := cast.ToFloat64E(raw)
				if err != nil {
					return nil, fmt.Errorf("invalid price %s %q: %w", bound, raw, err)
				}
				*dst = &n
			}
			f.Range = r
		default:
			continue
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// buildSort orders the sort attributes by name so requests are stable.
func buildSort(input map[string]interface{}) []Sort {
	attrs := lo.Keys(input)
	sort.Strings(attrs)
	var out []Sort
	for _, attr := range attrs {
		if dir, ok := input[attr].(string); ok {
			out = append(out, Sort{Attribute: attr, Direction: dir})
		}
	}
	return out
}
