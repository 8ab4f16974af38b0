package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// Claims mirrors the payload the auth service signs into session tokens.
type Claims struct {
	UserID model.ID `json:"id"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Role   string   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens. It never issues tokens; that is the
// auth service's job.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// WithClock overrides the clock used for expiry checks.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify validates signature and expiry and returns the embedded claims.
// Every failure is reported as model.ErrInvalidToken.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, model.ErrUnauthenticated
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)

	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}
	if claims.UserID.IsZero() {
		return nil, fmt.Errorf("%w: missing user id", model.ErrInvalidToken)
	}

	return claims, nil
}

// RemainingLifetime is how long the token stays valid from now; zero once
// expired.
func (v *Verifier) RemainingLifetime(c *Claims) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	left := c.ExpiresAt.Sub(v.now())
	if left < 0 {
		return 0
	}
	return left
}

// Sign produces a token the way the auth service does. The gateway only uses
// it in tests and local tooling.
func Sign(secret string, c Claims) (string, error) {
	if c.ExpiresAt == nil {
		return "", errors.New("claims must carry an expiry")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
