package dto

import "encoding/json"

// CheckoutRequest is the optional body of POST /orders. Items always come
// from the stored cart, never from the client.
type CheckoutRequest struct {
	ShippingAddress json.RawMessage `json:"shippingAddress,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}
