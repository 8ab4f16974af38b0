//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/app"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/auth"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/config"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

const jwtSecret = "integration-secret"

// downstream fakes the four services behind the gateway.
type downstream struct {
	*httptest.Server

	mu            sync.Mutex
	notifications []model.Notification
}

func newDownstream(t *testing.T) *downstream {
	d := &downstream{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /products/7", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"name":"Teapot","price":12.50,"image":"teapot.png"}`))
	})
	mux.HandleFunc("POST /orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "1001" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":555,"status":"pending"}`))
	})
	mux.HandleFunc("POST /notify", func(w http.ResponseWriter, r *http.Request) {
		var n model.Notification
		_ = json.NewDecoder(r.Body).Decode(&n)
		d.mu.Lock()
		d.notifications = append(d.notifications, n)
		d.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})

	d.Server = httptest.NewServer(mux)
	t.Cleanup(d.Close)
	return d
}

func (d *downstream) received() []model.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Notification(nil), d.notifications...)
}

// bindOrderCreated declares a private queue bound to the gateway's
// OrderCreated routing key.
func bindOrderCreated(t *testing.T, amqpURL string) <-chan amqp.Delivery {
	t.Helper()

	conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ch, err := conn.Channel()
	require.NoError(t, err)

	require.NoError(t, ch.ExchangeDeclare(checkout.EventsExchange, "topic", true, false, false, false, nil))
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, checkout.OrderCreatedRoutingKey, checkout.EventsExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)
	return deliveries
}

func startGateway(t *testing.T, cfg config.Config) string {
	t.Helper()

	gw, err := app.New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Error("gateway did not shut down")
		}
	})

	return "http://" + ln.Addr().String()
}

func TestGatewayCheckoutEndToEnd(t *testing.T) {
	redisHost, redisPort := startRedis(t)
	amqpURL := startRabbitMQ(t)
	databaseURL := startPostgres(t)
	deliveries := bindOrderCreated(t, amqpURL)
	services := newDownstream(t)

	port, err := strconv.Atoi(redisPort)
	require.NoError(t, err)

	baseURL := startGateway(t, config.Config{
		APIPrefix:        "/api",
		Env:              "test",
		JWTSecret:        jwtSecret,
		Redis:            config.RedisSettings{Host: redisHost, Port: port},
		AuthURL:          services.URL,
		ProductURL:       services.URL,
		OrderURL:         services.URL,
		NotificationURL:  services.URL,
		UpstreamTimeout:  5 * time.Second,
		HealthTimeout:    3 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		RateLimit:        config.RateLimitPolicy{Window: 15 * time.Minute, Max: 100},
		AuthRateLimit:    config.RateLimitPolicy{Window: 15 * time.Minute, Max: 10},
		CartTTL:          time.Hour,
		MaxBodyBytes:     1 << 20,
		DatabaseURL:      databaseURL,
		AMQPURL:          amqpURL,
		CORSAllowOrigins: []string{"*"},
	})

	token, err := auth.Sign(jwtSecret, auth.Claims{
		UserID: "1001",
		Email:  "it@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	client := &http.Client{Timeout: 10 * time.Second}
	cid := fmt.Sprintf("it-%d", time.Now().UnixNano())

	// Health reports every collaborator
	resp := doRequest(t, client, http.MethodGet, baseURL+"/api/health", "", "", cid)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	var health dto.HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body, &health))
	assert.Equal(t, "connected", health.Cache)
	assert.Equal(t, "connected", health.Database)
	assert.Len(t, health.Services, 4)

	// Cart
	resp = doRequest(t, client, http.MethodPost, baseURL+"/api/cart/add", `{"productId":7,"quantity":2}`, token, cid)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))

	resp = doRequest(t, client, http.MethodGet, baseURL+"/api/cart", "", token, cid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cart dto.Cart
	require.NoError(t, json.Unmarshal(resp.Body, &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 25.0, cart.Total)

	// Checkout
	resp = doRequest(t, client, http.MethodPost, baseURL+"/api/orders", `{"notes":"leave at door"}`, token, cid)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))
	assert.JSONEq(t, `{"id":555,"status":"pending"}`, string(resp.Body))

	resp = doRequest(t, client, http.MethodGet, baseURL+"/api/cart", "", token, cid)
	require.NoError(t, json.Unmarshal(resp.Body, &cart))
	assert.Empty(t, cart.Items)

	select {
	case d := <-deliveries:
		assert.Equal(t, cid, d.CorrelationId)
		var ev checkout.OrderCreatedEnvelope
		require.NoError(t, json.Unmarshal(d.Body, &ev))
		assert.Equal(t, checkout.OrderCreatedEventName, ev.EventName)
		assert.Equal(t, model.ID("555"), ev.Payload.OrderID)
		assert.Equal(t, model.ID("1001"), ev.Payload.UserID)
		assert.Equal(t, 25.0, ev.Payload.Total)
	case <-time.After(15 * time.Second):
		t.Fatal("no OrderCreated event published")
	}

	require.Eventually(t, func() bool { return len(services.received()) == 1 }, 10*time.Second, 100*time.Millisecond)
	n := services.received()[0]
	assert.Equal(t, model.NotificationOrderCreated, n.Type)
	assert.Equal(t, model.ID("1001"), n.UserID)

	// Logout revokes the token in redis
	resp = doRequest(t, client, http.MethodPost, baseURL+"/api/auth/logout", "", token, cid)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, client, http.MethodGet, baseURL+"/api/auth/me", "", token, cid)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type httpResult struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func doRequest(t *testing.T, client *http.Client, method, url, body, token, cid string) httpResult {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Correlation-Id", cid)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, cid, resp.Header.Get("X-Correlation-Id"), "correlation id is echoed")

	return httpResult{StatusCode: resp.StatusCode, Body: data, Header: resp.Header.Clone()}
}
