package remote

import (
	"context"

	"github.com/benjaminabbitt/gainlabz/product"
	"github.com/benjaminabbitt/gainlabz/storefront"
)

// StockPatch is the PATCH /products/{id} body.
type StockPatch struct {
	Stock int `json:"stock"`
}

// ListProducts fetches the full catalog (GET /products).
func (c *Client) ListProducts(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	if err := c.do(ctx, "GET", "/products", nil, nil, notFound(storefront.ReasonProductNotFound), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches one product (GET /products/{id}).
func (c *Client) GetProduct(ctx context.Context, id string) (product.Product, error) {
	var out product.Product
	err := c.do(ctx, "GET", "/products/"+escape(id), nil, nil, notFound(storefront.ReasonProductNotFound), &out)
	return out, err
}

// SetStock writes stock conditioned on the product still being at
// ifVersion (PATCH /products/{id} with If-Match). A stale version fails
// with VersionConflict.
func (c *Client) SetStock(ctx context.Context, id string, stock int, ifVersion int64) (product.Product, error) {
	var out product.Product
	err := c.do(ctx, "PATCH", "/products/"+escape(id), StockPatch{Stock: stock}, &ifVersion,
		notFound(storefront.ReasonProductNotFound), &out)
	return out, err
}
