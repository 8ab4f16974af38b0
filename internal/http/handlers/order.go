package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type Checkouter interface {
	Checkout(ctx context.Context, userID model.ID, in checkout.Input) (clients.OrderResult, error)
}

type OrderHandler struct {
	checkout Checkouter
	logger   *zap.Logger
}

func NewOrderHandler(c Checkouter, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{checkout: c, logger: logger}
}

// Create checks out the caller's cart and relays the order service's answer.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	res, err := h.checkout.Checkout(r.Context(), middleware.GetUserID(r.Context()), checkout.Input{
		ShippingAddress: req.ShippingAddress,
		Notes:           req.Notes,
	})
	if err != nil {
		if model.StatusOf(err) >= http.StatusInternalServerError {
			middleware.LoggerFrom(r.Context(), h.logger).Error("checkout failed", zap.Error(err))
		}
		WriteUpstreamError(w, r, err)
		return
	}

	ct := res.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(res.StatusCode)
	_, _ = w.Write(res.Body)
}
