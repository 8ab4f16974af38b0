package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/auth"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// RevocationChecker reports whether a token was logged out.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Authenticator is the auth gate in front of identity-bearing routes.
type Authenticator struct {
	verifier    *auth.Verifier
	revocations RevocationChecker
	logger      *zap.Logger
}

func NewAuthenticator(verifier *auth.Verifier, revocations RevocationChecker, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{verifier: verifier, revocations: revocations, logger: logger}
}

// Require rejects requests without a usable bearer token.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.authenticate(r)
		if err != nil {
			if model.StatusOf(err) >= http.StatusInternalServerError {
				LoggerFrom(r.Context(), a.logger).Error("authentication failed", zap.Error(err))
			}
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional attaches identity when the token is usable and otherwise lets the
// request through anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// The revocation lookup runs before signature verification so a logged-out
// token is refused as revoked whatever its signature says.
func (a *Authenticator) authenticate(r *http.Request) (Identity, error) {
	token, ok := BearerToken(r)
	if !ok {
		return Identity{}, model.ErrUnauthenticated
	}

	revoked, err := a.revocations.IsRevoked(r.Context(), token)
	if err != nil {
		return Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Identity{}, model.ErrTokenRevoked
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, model.ErrInvalidToken) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	return Identity{Claims: claims, Token: token}, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
