package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type Revoker interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
}

type AuthHandler struct {
	revocations Revoker
	now         func() time.Time
	logger      *zap.Logger
}

func NewAuthHandler(revocations Revoker, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{revocations: revocations, now: time.Now, logger: logger}
}

// Me returns the claims of the presented token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		middleware.WriteError(w, r, model.ErrUnauthenticated)
		return
	}

	c := id.Claims
	user := dto.User{ID: c.UserID, Email: c.Email, Name: c.Name, Role: c.Role}
	if c.IssuedAt != nil {
		t := c.IssuedAt.UTC()
		user.IssuedAt = &t
	}
	if c.ExpiresAt != nil {
		t := c.ExpiresAt.UTC()
		user.ExpiresAt = &t
	}

	middleware.WriteJSON(w, http.StatusOK, dto.MeResponse{User: user})
}

// Logout revokes the presented token for the rest of its lifetime.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		middleware.WriteError(w, r, model.ErrUnauthenticated)
		return
	}

	var ttl time.Duration
	if id.Claims.ExpiresAt != nil {
		ttl = id.Claims.ExpiresAt.Sub(h.now())
	}
	// An already expired token needs no revocation record.
	if ttl > 0 {
		if err := h.revocations.Revoke(r.Context(), id.Token, ttl); err != nil {
			middleware.LoggerFrom(r.Context(), h.logger).Error("revoke token", zap.Error(err))
			middleware.WriteError(w, r, err)
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}
