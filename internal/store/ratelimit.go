package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit"

// RateLimitStore counts hits per key inside fixed windows. The counter is
// incremented by redis itself so concurrent requests never lose a hit.
type RateLimitStore struct {
	rdb *redis.Client
}

func NewRateLimitStore(c *Client) *RateLimitStore {
	return &RateLimitStore{rdb: c.rdb}
}

// Hit records one request for key and returns the count inside the current
// window together with the time left until the window resets.
func (s *RateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		return 0, 0, errors.New("window must be positive")
	}
	k := rateLimitPrefix + ":" + key

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis incr rate limit: %w", err)
	}

	count := incr.Val()
	remaining := pttl.Val()

	// First hit of a window, or a key that lost its expiry: start the window.
	if count == 1 || remaining < 0 {
		if err := s.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis pexpire rate limit: %w", err)
		}
		remaining = window
	}

	return count, remaining, nil
}
