package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// RateLimitStore increments a shared counter for key inside a fixed window.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
}

// IdentifierFunc extracts the identity a policy counts against.
type IdentifierFunc func(*http.Request) (string, bool)

// RateLimitPolicy bounds requests per identity inside one window.
type RateLimitPolicy struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
	// Skip exempts matching requests from this policy.
	Skip func(*http.Request) bool
}

type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIP identifies callers by remote address. Run it behind chi's RealIP
// so proxied requests resolve to the original client.
func ClientIP() IdentifierFunc {
	return func(r *http.Request) (string, bool) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host == "" {
			return "", false
		}
		return host, true
	}
}

// Limit returns a middleware enforcing policy. Store failures let the request
// through; rejection is reserved for callers that are provably over the limit.
func (rl *RateLimiter) Limit(policy RateLimitPolicy) func(http.Handler) http.Handler {
	if policy.Identifier == nil {
		policy.Identifier = ClientIP()
	}

	return func(next http.Handler) http.Handler {
		if policy.Limit <= 0 || policy.Window <= 0 || rl.store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy.Skip != nil && policy.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			identifier, ok := policy.Identifier(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			count, remaining, err := rl.store.Hit(r.Context(), policy.Name+":"+identifier, policy.Window)
			if err != nil {
				LoggerFrom(r.Context(), rl.logger).Warn("rate limit check failed",
					zap.String("policy", policy.Name),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			left := int64(policy.Limit) - count
			if left < 0 {
				left = 0
			}
			reset := rl.now().Add(remaining)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(left, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if count > int64(policy.Limit) {
				retryAfter := int(math.Ceil(remaining.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))

				LoggerFrom(r.Context(), rl.logger).Info("rate limit exceeded",
					zap.String("policy", policy.Name),
					zap.Int64("count", count),
				)
				WriteJSON(w, http.StatusTooManyRequests, model.ErrorResponse{
					Error:         model.MessageOf(model.ErrRateLimited),
					CorrelationID: GetCorrelationID(r.Context()),
					RetryAfter:    retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
