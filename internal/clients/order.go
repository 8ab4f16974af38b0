package clients

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type OrderLine struct {
	ProductID model.ID `json:"productId"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
}

// OrderRequest is the body the order service expects on POST /orders.
type OrderRequest struct {
	UserID          model.ID        `json:"userId"`
	Items           []OrderLine     `json:"items"`
	Total           float64         `json:"total"`
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// OrderResult is the order service's answer, kept raw so it can be relayed.
type OrderResult struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	OrderID    model.ID
}

type OrderClient struct{ c *Client }

func NewOrderClient(c *Client) *OrderClient { return &OrderClient{c: c} }

func (oc *OrderClient) Client() *Client { return oc.c }

// CreateOrder submits an order on behalf of the request's user. A non-2xx
// answer is returned as *model.UpstreamError wrapping
// model.ErrOrderCreationFailed with the downstream status and body.
func (oc *OrderClient) CreateOrder(ctx context.Context, in OrderRequest) (OrderResult, error) {
	resp, err := oc.c.DoJSON(ctx, http.MethodPost, "/orders", in,
		StripHeaders(middleware.HeaderUserID, middleware.HeaderUserRole),
		SetHeader(middleware.HeaderUserID, in.UserID.String()),
	)
	if err != nil {
		return OrderResult{}, err
	}

	body := drain(resp)
	if !isSuccess(resp.StatusCode) {
		return OrderResult{}, &model.UpstreamError{
			Err:        model.ErrOrderCreationFailed,
			Service:    oc.c.Name,
			StatusCode: resp.StatusCode,
			Body:       body,
			Header:     resp.Header.Clone(),
		}
	}

	return OrderResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		OrderID:    orderIDFrom(body),
	}, nil
}

func orderIDFrom(body []byte) model.ID {
	var ids struct {
		ID      model.ID `json:"id"`
		OrderID model.ID `json:"orderId"`
	}
	if err := json.Unmarshal(body, &ids); err != nil {
		return ""
	}
	if !ids.ID.IsZero() {
		return ids.ID
	}
	return ids.OrderID
}
