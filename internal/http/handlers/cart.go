package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type CartService interface {
	GetCart(ctx context.Context, userID model.ID) ([]model.CartItem, error)
	AddItem(ctx context.Context, userID, productID model.ID, quantity int) ([]model.CartItem, error)
	SyncCart(ctx context.Context, userID model.ID, items []model.CartItem) ([]model.CartItem, error)
	ClearCart(ctx context.Context, userID model.ID) error
}

type CartHandler struct {
	svc    CartService
	logger *zap.Logger
}

func NewCartHandler(svc CartService, logger *zap.Logger) *CartHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartHandler{svc: svc, logger: logger}
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.GetCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cartBody(items))
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req dto.AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	items, err := h.svc.AddItem(r.Context(), middleware.GetUserID(r.Context()), req.ProductID, qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cartBody(items))
}

func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req dto.SyncCartRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	items, err := h.svc.SyncCart(r.Context(), middleware.GetUserID(r.Context()), req.Items)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, cartBody(items))
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCart(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "Cart cleared"})
}

func (h *CartHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if model.StatusOf(err) >= http.StatusInternalServerError {
		middleware.LoggerFrom(r.Context(), h.logger).Error("cart operation failed", zap.Error(err))
	}
	middleware.WriteError(w, r, err)
}

func cartBody(items []model.CartItem) dto.Cart {
	if items == nil {
		items = []model.CartItem{}
	}
	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	return dto.Cart{
		Items:     items,
		ItemCount: count,
		Total:     checkout.Total(items).InexactFloat64(),
	}
}
