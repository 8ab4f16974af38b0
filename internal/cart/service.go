package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

// Store persists one cart per user.
type Store interface {
	Load(ctx context.Context, userID model.ID) ([]model.CartItem, error)
	Save(ctx context.Context, userID model.ID, items []model.CartItem, ttl time.Duration) error
	Delete(ctx context.Context, userID model.ID) error
}

// ProductLookup resolves the product snapshot stored with a new cart line.
type ProductLookup interface {
	GetProduct(ctx context.Context, id model.ID) (clients.Product, error)
}

// Service implements the cart operations on top of Store. Mutations are a
// plain load-modify-save without locking: two concurrent writers for the same
// user race and the last save wins.
type Service struct {
	store    Store
	products ProductLookup
	ttl      time.Duration
	logger   *zap.Logger
}

func NewService(store Store, products ProductLookup, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, products: products, ttl: ttl, logger: logger}
}

func (s *Service) GetCart(ctx context.Context, userID model.ID) ([]model.CartItem, error) {
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return items, nil
}

// AddItem adds quantity units of productID. An existing line only has its
// quantity increased; its snapshot is never refreshed.
func (s *Service) AddItem(ctx context.Context, userID, productID model.ID, quantity int) ([]model.CartItem, error) {
	if productID.IsZero() {
		return nil, model.BadRequest("productId is required")
	}
	if quantity <= 0 {
		return nil, model.BadRequest("quantity must be a positive integer")
	}

	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	if i := indexOf(items, productID); i >= 0 {
		items[i].Quantity += quantity
	} else {
		p, err := s.products.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		items = append(items, snapshot(productID, p, quantity))
	}

	if err := s.store.Save(ctx, userID, items, s.ttl); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.Debug("cart item added",
		zap.String("user_id", userID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", quantity),
	)
	return items, nil
}

// SyncCart merges a client-held cart into the stored one. For every product
// present in both, the larger quantity wins, so a sync never lowers a line.
// Lines only known to the client are snapshotted from the product service like
// AddItem does; the client's name and price are never trusted. Products the
// catalog no longer knows are dropped.
func (s *Service) SyncCart(ctx context.Context, userID model.ID, incoming []model.CartItem) ([]model.CartItem, error) {
	items, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	for _, in := range incoming {
		if in.ProductID.IsZero() || in.Quantity <= 0 {
			continue
		}
		if i := indexOf(items, in.ProductID); i >= 0 {
			items[i].Quantity = max(items[i].Quantity, in.Quantity)
			continue
		}

		p, err := s.products.GetProduct(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, model.ErrProductNotFound) {
				s.logger.Info("dropping unknown product from synced cart",
					zap.String("user_id", userID.String()),
					zap.String("product_id", in.ProductID.String()),
				)
				continue
			}
			return nil, err
		}
		items = append(items, snapshot(in.ProductID, p, in.Quantity))
	}

	if err := s.store.Save(ctx, userID, items, s.ttl); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return items, nil
}

// ClearCart deletes the cart. Clearing an absent cart succeeds.
func (s *Service) ClearCart(ctx context.Context, userID model.ID) error {
	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func snapshot(productID model.ID, p clients.Product, quantity int) model.CartItem {
	return model.CartItem{
		ProductID: productID,
		Name:      p.Name,
		Price:     p.Price.Round(2).InexactFloat64(),
		Image:     p.Image,
		Quantity:  quantity,
	}
}

func indexOf(items []model.CartItem, productID model.ID) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
