package dto

import (
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type AddCartItemRequest struct {
	ProductID model.ID `json:"productId"`
	// Quantity defaults to 1 when omitted.
	Quantity *int `json:"quantity,omitempty"`
}

type SyncCartRequest struct {
	Items []model.CartItem `json:"items"`
}

type Cart struct {
	Items     []model.CartItem `json:"items"`
	ItemCount int              `json:"itemCount"`
	Total     float64          `json:"total"`
}
