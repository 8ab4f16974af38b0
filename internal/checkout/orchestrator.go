package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

const clearCartTimeout = 5 * time.Second

type Carts interface {
	GetCart(ctx context.Context, userID model.ID) ([]model.CartItem, error)
	ClearCart(ctx context.Context, userID model.ID) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, in clients.OrderRequest) (clients.OrderResult, error)
}

type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, ev OrderCreatedEnvelope) error
}

// Input carries the optional fields a client may attach to a checkout.
type Input struct {
	ShippingAddress json.RawMessage
	Notes           string
}

// Orchestrator turns a user's cart into an order. The steps run strictly in
// sequence: load the cart, submit the order, clear the cart, then hand the
// notification off to the dispatcher. Nothing is rolled back once the order
// exists.
type Orchestrator struct {
	carts      Carts
	orders     OrderCreator
	notifier   Notifier
	events     EventPublisher
	dispatcher *Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewOrchestrator(carts Carts, orders OrderCreator, notifier Notifier, dispatcher *Dispatcher, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		carts:      carts,
		orders:     orders,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// WithEvents enables publishing of OrderCreated events.
func (o *Orchestrator) WithEvents(p EventPublisher) *Orchestrator {
	o.events = p
	return o
}

// Total sums price×quantity in decimal and rounds to cents.
func Total(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}

func (o *Orchestrator) Checkout(ctx context.Context, userID model.ID, in Input) (clients.OrderResult, error) {
	log := middleware.LoggerFrom(ctx, o.logger).With(zap.String("user_id", userID.String()))

	items, err := o.carts.GetCart(ctx, userID)
	if err != nil {
		return clients.OrderResult{}, err
	}
	if len(items) == 0 {
		return clients.OrderResult{}, model.ErrEmptyCart
	}

	total := Total(items).InexactFloat64()
	req := clients.OrderRequest{
		UserID:          userID,
		Items:           make([]clients.OrderLine, 0, len(items)),
		Total:           total,
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
	}
	for _, it := range items {
		req.Items = append(req.Items, clients.OrderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	res, err := o.orders.CreateOrder(ctx, req)
	if err != nil {
		log.Warn("order submission failed", zap.Error(err))
		return clients.OrderResult{}, fmt.Errorf("create order: %w", err)
	}

	// The order stands from here on; later failures are only logged. The
	// clear must survive the caller going away after the order was accepted.
	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearCartTimeout)
	defer cancel()
	if err := o.carts.ClearCart(clearCtx, userID); err != nil {
		log.Error("clear cart after checkout", zap.String("order_id", res.OrderID.String()), zap.Error(err))
	}

	o.dispatch(ctx, userID, res.OrderID, items, total)

	log.Info("checkout completed", zap.String("order_id", res.OrderID.String()), zap.Float64("total", total))
	return res, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, userID, orderID model.ID, items []model.CartItem, total float64) {
	if o.dispatcher == nil {
		return
	}

	if o.notifier != nil {
		n := model.Notification{
			UserID: userID,
			Type:   model.NotificationOrderCreated,
			Data:   map[string]any{"orderId": orderID, "total": total},
		}
		o.dispatcher.Go(ctx, "notify order created", func(ctx context.Context) error {
			return o.notifier.Notify(ctx, n)
		})
	}

	if o.events != nil {
		ev := NewOrderCreated(middleware.GetCorrelationID(ctx), OrderCreatedPayload{
			OrderID: orderID,
			UserID:  userID,
			Items:   items,
			Total:   total,
		}, o.now())
		o.dispatcher.Go(ctx, "publish order created", func(ctx context.Context) error {
			return o.events.PublishOrderCreated(ctx, ev)
		})
	}
}
