package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// Product is the subset of the product service's record the gateway snapshots
// into carts.
type Product struct {
	ID    model.ID        `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

type ProductClient struct{ c *Client }

func NewProductClient(c *Client) *ProductClient { return &ProductClient{c: c} }

func (pc *ProductClient) Client() *Client { return pc.c }

// GetProduct fetches one product. A 404 maps to model.ErrProductNotFound and
// every other failure to model.ErrUpstreamUnavailable.
func (pc *ProductClient) GetProduct(ctx context.Context, id model.ID) (Product, error) {
	resp, err := pc.c.DoJSON(ctx, http.MethodGet, "/products/"+url.PathEscape(id.String()), nil)
	if err != nil {
		return Product{}, err
	}

	if resp.StatusCode == http.StatusNotFound {
		drain(resp)
		return Product{}, fmt.Errorf("product %s: %w", id, model.ErrProductNotFound)
	}
	if !isSuccess(resp.StatusCode) {
		drain(resp)
		return Product{}, fmt.Errorf("%s returned %d: %w", pc.c.Name, resp.StatusCode, model.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	p, err := decodeProduct(resp)
	if err != nil {
		return Product{}, fmt.Errorf("decode product %s: %v: %w", id, err, model.ErrUpstreamUnavailable)
	}
	if p.ID.IsZero() {
		p.ID = id
	}
	return p, nil
}

// The product service answers either with the bare record or wrapped in
// {"product": {...}}.
func decodeProduct(resp *http.Response) (Product, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Product{}, err
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return Product{}, err
	}
	if wrapped, ok := raw["product"]; ok {
		payload = wrapped
	}

	var p Product
	if err := json.Unmarshal(payload, &p); err != nil {
		return Product{}, err
	}
	if p.Name == "" {
		return Product{}, errors.New("product has no name")
	}
	return p, nil
}
