package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

const cartPrefix = "cart"

// CartStore keeps each user's cart as a single JSON blob. Writes replace the
// whole blob, so concurrent read-modify-write cycles are last-write-wins.
type CartStore struct {
	rdb *redis.Client
}

func NewCartStore(c *Client) *CartStore {
	return &CartStore{rdb: c.rdb}
}

// Load returns the stored items, or an empty slice when the user has no cart.
func (s *CartStore) Load(ctx context.Context, userID model.ID) ([]model.CartItem, error) {
	raw, err := s.rdb.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []model.CartItem{}, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var items []model.CartItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode cart for user %s: %w", userID, err)
	}
	if items == nil {
		items = []model.CartItem{}
	}
	return items, nil
}

// Save overwrites the cart and refreshes its TTL.
func (s *CartStore) Save(ctx context.Context, userID model.ID, items []model.CartItem, ttl time.Duration) error {
	if items == nil {
		items = []model.CartItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}

	if err := s.rdb.Set(ctx, cartKey(userID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

// Delete removes the cart; deleting a missing cart is not an error.
func (s *CartStore) Delete(ctx context.Context, userID model.ID) error {
	if err := s.rdb.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}
	return nil
}

func cartKey(userID model.ID) string {
	return cartPrefix + ":" + userID.String()
}
