package middleware

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/auth"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type ctxKey string

const (
	ctxCorrelationID ctxKey = "correlation_id"
	ctxIdentity      ctxKey = "identity"
)

// Identity is what the auth gate attaches to an authenticated request.
type Identity struct {
	Claims *auth.Claims
	Token  string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxIdentity, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxIdentity).(Identity)
	if !ok || id.Claims == nil {
		return Identity{}, false
	}
	return id, true
}

// GetUserID returns the authenticated user's id, or "" for anonymous requests.
func GetUserID(ctx context.Context) model.ID {
	if id, ok := GetIdentity(ctx); ok {
		return id.Claims.UserID
	}
	return ""
}
