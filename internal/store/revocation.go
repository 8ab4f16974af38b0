package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationPrefix = "revoked"

// RevocationStore records logged-out tokens until their natural expiry.
type RevocationStore struct {
	rdb *redis.Client
}

func NewRevocationStore(c *Client) *RevocationStore {
	return &RevocationStore{rdb: c.rdb}
}

// Revoke marks token as unusable for ttl, which should equal the token's
// remaining lifetime. The key disappears on its own afterwards.
func (s *RevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	key := revocationKey(token)
	if key == "" {
		return errors.New("token must not be empty")
	}

	if err := s.rdb.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := revocationKey(token)
	if key == "" {
		return false, errors.New("token must not be empty")
	}

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists revoked token: %w", err)
	}
	return n > 0, nil
}

func revocationKey(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return revocationPrefix + ":" + token
}
