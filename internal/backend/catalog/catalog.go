// Package catalog resolves products by ID through the Catalog Storefront
// gRPC service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-graphql/internal/grpcjson"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/stitch"

	"github.com/graphql-go/graphql"
	"github.com/spf13/cast"
	"google.golang.org/grpc"
)

// SubschemaName names the catalog subschema.
const SubschemaName = "catalog"

const getProductsMethod = "/magento.catalogStorefrontApi.proto.Catalog/GetProducts"

const typeDefs = `
extend type Query {
    productByID(id: ID!): CatalogServiceProduct
}

type CatalogServiceProduct {
    id: ID!
    name: String!
}
`

var errNoResponse = errors.New("Did not receive a response from Catalog gRPC API")

// ProductsGetRequest is the GetProducts request message.
type ProductsGetRequest struct {
	IDs            []string `json:"ids"`
	Store          string   `json:"store"`
	AttributeCodes []string `json:"attribute_codes"`
}

// Product is one item of a GetProducts response.
type Product struct {
	ID   string `json:"id,omitempty"`
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// ProductsGetResponse is the GetProducts response message.
type ProductsGetResponse struct {
	Items []Product `json:"items"`
}

// Client calls the Catalog service.
type Client struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewClient wraps conn. A positive timeout bounds each call.
func NewClient(conn grpc.ClientConnInterface, timeout time.Duration) *Client {
	return &Client{conn: conn, timeout: timeout}
}

// GetProducts fetches products by ID.
func (c *Client) GetProducts(ctx context.Context, req *ProductsGetRequest) (*ProductsGetResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	var resp ProductsGetResponse
	if err := c.conn.Invoke(ctx, getProductsMethod, req, &resp, grpcjson.CallOption()); err != nil {
		return nil, fmt.Errorf("catalog GetProducts: %w", err)
	}
	return &resp, nil
}

// NewSubschema returns the local subschema serving Query.productByID.
func NewSubschema(client *Client, logger *logging.Logger) (*stitch.Subschema, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	doc, err := stitch.ParseSDL(SubschemaName, typeDefs)
	if err != nil {
		return nil, err
	}
	resolvers := stitch.ResolverMap{}
	resolvers.Set("Query", "productByID", productByID(client, logger))
	return &stitch.Subschema{
		Name:      SubschemaName,
		TypeDefs:  doc,
		Resolvers: resolvers,
	}, nil
}

func productByID(client *Client, logger *logging.Logger) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx := p.Context
		if ctx == nil {
			ctx = context.Background()
		}
		id, err := cast.ToStringE(p.Args["id"])
		if err != nil {
			return nil, fmt.Errorf("productByID: invalid id: %w", err)
		}
		req := &ProductsGetRequest{
			IDs:            []string{id},
			Store:          "default",
			AttributeCodes: []string{"name"},
		}
		logger.Debug("sending product request to Catalog gRPC API", "ids", req.IDs)
		resp, err := client.GetProducts(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, errNoResponse
		}
		if len(resp.Items) == 0 {
			return nil, nil
		}
		product := resp.Items[0]
		return map[string]interface{}{
			"id":   product.SKU,
			"name": product.Name,
		}, nil
	}
}
