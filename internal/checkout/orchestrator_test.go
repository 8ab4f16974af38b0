package checkout

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/cart"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/store"
)

type memCarts struct {
	mu       sync.Mutex
	carts    map[model.ID][]model.CartItem
	clearErr error
}

func (m *memCarts) GetCart(_ context.Context, userID model.ID) ([]model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]model.CartItem{}, m.carts[userID]...)
	return items, nil
}

func (m *memCarts) ClearCart(_ context.Context, userID model.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	delete(m.carts, userID)
	return nil
}

type fakeOrders struct {
	calls []clients.OrderRequest
	res   clients.OrderResult
	err   error
}

func (f *fakeOrders) CreateOrder(_ context.Context, in clients.OrderRequest) (clients.OrderResult, error) {
	f.calls = append(f.calls, in)
	return f.res, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return f.err
}

type fakeEvents struct {
	mu  sync.Mutex
	got []OrderCreatedEnvelope
}

func (f *fakeEvents) PublishOrderCreated(_ context.Context, ev OrderCreatedEnvelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	return nil
}

func oneMugCart() *memCarts {
	return &memCarts{carts: map[model.ID][]model.CartItem{
		"7": {{ProductID: "1", Name: "Mug", Price: 10.00, Quantity: 2}},
	}}
}

func drain(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestCheckout_Success(t *testing.T) {
	carts := oneMugCart()
	orders := &fakeOrders{res: clients.OrderResult{
		StatusCode: http.StatusCreated,
		Body:       []byte(`{"id":42,"status":"pending"}`),
		OrderID:    "42",
	}}
	notifier := &fakeNotifier{}
	events := &fakeEvents{}
	d := NewDispatcher(time.Second, zaptest.NewLogger(t))

	o := NewOrchestrator(carts, orders, notifier, d, zaptest.NewLogger(t)).WithEvents(events)

	res, err := o.Checkout(context.Background(), "7", Input{Notes: "leave at door"})
	require.NoError(t, err)
	drain(t, d)

	assert.Equal(t, model.ID("42"), res.OrderID)
	assert.JSONEq(t, `{"id":42,"status":"pending"}`, string(res.Body))

	require.Len(t, orders.calls, 1)
	req := orders.calls[0]
	assert.Equal(t, model.ID("7"), req.UserID)
	assert.Equal(t, 20.0, req.Total)
	assert.Equal(t, "leave at door", req.Notes)
	assert.Equal(t, []clients.OrderLine{{ProductID: "1", Name: "Mug", Price: 10, Quantity: 2}}, req.Items)

	items, _ := carts.GetCart(context.Background(), "7")
	assert.Empty(t, items)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, model.Notification{
		UserID: "7",
		Type:   "order_created",
		Data:   map[string]any{"orderId": model.ID("42"), "total": 20.0},
	}, notifier.sent[0])

	require.Len(t, events.got, 1)
	assert.Equal(t, OrderCreatedEventName, events.got[0].EventName)
	assert.Equal(t, "42", events.got[0].PartitionKey)
	assert.NotEmpty(t, events.got[0].EventID)
}

func TestCheckout_EmptyCartMakesNoOrderCall(t *testing.T) {
	orders := &fakeOrders{}
	d := NewDispatcher(time.Second, nil)
	o := NewOrchestrator(&memCarts{carts: map[model.ID][]model.CartItem{}}, orders, &fakeNotifier{}, d, nil)

	_, err := o.Checkout(context.Background(), "7", Input{})
	assert.ErrorIs(t, err, model.ErrEmptyCart)
	assert.Equal(t, http.StatusBadRequest, model.StatusOf(err))
	assert.Empty(t, orders.calls)
}

func TestCheckout_NotificationFailureDoesNotFailCheckout(t *testing.T) {
	carts := oneMugCart()
	orders := &fakeOrders{res: clients.OrderResult{StatusCode: http.StatusCreated, OrderID: "42"}}
	notifier := &fakeNotifier{err: errors.New("notification service down")}
	d := NewDispatcher(time.Second, nil)

	o := NewOrchestrator(carts, orders, notifier, d, nil)

	_, err := o.Checkout(context.Background(), "7", Input{})
	require.NoError(t, err)
	drain(t, d)

	items, _ := carts.GetCart(context.Background(), "7")
	assert.Empty(t, items)
	assert.Len(t, notifier.sent, 1)
}

func TestCheckout_CartClearFailureStillSucceeds(t *testing.T) {
	carts := oneMugCart()
	carts.clearErr = errors.New("redis down")
	orders := &fakeOrders{res: clients.OrderResult{StatusCode: http.StatusCreated, OrderID: "42"}}
	d := NewDispatcher(time.Second, nil)

	o := NewOrchestrator(carts, orders, &fakeNotifier{}, d, nil)

	res, err := o.Checkout(context.Background(), "7", Input{})
	require.NoError(t, err)
	drain(t, d)
	assert.Equal(t, model.ID("42"), res.OrderID)
}

func TestCheckout_OrderFailurePreservesCart(t *testing.T) {
	carts := oneMugCart()
	orders := &fakeOrders{err: &model.UpstreamError{
		Err:        model.ErrOrderCreationFailed,
		Service:    "Order service",
		StatusCode: http.StatusConflict,
		Body:       []byte(`{"error":"Insufficient stock"}`),
	}}
	notifier := &fakeNotifier{}
	d := NewDispatcher(time.Second, nil)

	o := NewOrchestrator(carts, orders, notifier, d, nil)

	_, err := o.Checkout(context.Background(), "7", Input{})
	require.Error(t, err)
	drain(t, d)

	assert.ErrorIs(t, err, model.ErrOrderCreationFailed)
	assert.Equal(t, http.StatusConflict, model.StatusOf(err))

	items, _ := carts.GetCart(context.Background(), "7")
	assert.Len(t, items, 1)
	assert.Empty(t, notifier.sent)
}

func TestTotal(t *testing.T) {
	items := []model.CartItem{
		{Price: 0.1, Quantity: 3},
		{Price: 19.99, Quantity: 2},
	}
	assert.Equal(t, "40.28", Total(items).StringFixed(2))
	assert.True(t, Total(nil).IsZero())
}

func TestDispatcher_DetachesFromRequestCancellation(t *testing.T) {
	d := NewDispatcher(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var taskErr error
	d.Go(ctx, "slow", func(ctx context.Context) error {
		close(started)
		select {
		case <-time.After(50 * time.Millisecond):
			return nil
		case <-ctx.Done():
			taskErr = ctx.Err()
			return taskErr
		}
	})

	<-started
	cancel()
	drain(t, d)
	assert.NoError(t, taskErr)
}

func TestDispatcher_WaitHonorsDeadline(t *testing.T) {
	d := NewDispatcher(time.Minute, nil)
	release := make(chan struct{})
	d.Go(context.Background(), "stuck", func(context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(release)
	drain(t, d)
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher(time.Second, nil)
	d.Go(context.Background(), "panics", func(context.Context) error { panic("boom") })
	drain(t, d)
}

// cancellingOrders accepts the order and then cancels the caller's context,
// the way a client hanging up right after submission does.
type cancellingOrders struct {
	cancel context.CancelFunc
}

func (c *cancellingOrders) CreateOrder(context.Context, clients.OrderRequest) (clients.OrderResult, error) {
	c.cancel()
	return clients.OrderResult{StatusCode: http.StatusCreated, OrderID: "42"}, nil
}

func TestCheckout_ClearsCartAfterCallerCancels(t *testing.T) {
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	carts := store.NewCartStore(store.Wrap(rdb, nil))
	require.NoError(t, carts.Save(context.Background(), "7",
		[]model.CartItem{{ProductID: "1", Name: "Mug", Price: 10, Quantity: 2}}, time.Hour))

	svc := cart.NewService(carts, nil, time.Hour, nil)
	d := NewDispatcher(time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o := NewOrchestrator(svc, &cancellingOrders{cancel: cancel}, &fakeNotifier{}, d, zaptest.NewLogger(t))

	res, err := o.Checkout(ctx, "7", Input{})
	require.NoError(t, err)
	drain(t, d)
	assert.Equal(t, model.ID("42"), res.OrderID)

	assert.False(t, server.Exists("cart:7"), "an accepted order always empties the cart")
	items, err := svc.GetCart(context.Background(), "7")
	require.NoError(t, err)
	assert.Empty(t, items)
}
