package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/auth"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/cart"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/config"
	httpapi "github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/handlers"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/store"
)

// App owns every process-scoped resource of the gateway. It is built once at
// startup and torn down by Run when its context ends.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	redis      *store.Client
	db         *pgxpool.Pool
	amqpConn   *amqp.Connection
	events     *checkout.AMQPPublisher
	dispatcher *checkout.Dispatcher
	metrics    *middleware.Metrics

	handler http.Handler
}

// New connects to redis (required) and to the optional database and broker,
// then assembles the router.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	rc, err := store.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = rc

	if cfg.DatabaseURL != "" {
		// pgxpool connects lazily; the health endpoint reports reachability.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("create database pool: %w", err)
		}
		a.db = pool
	}

	if cfg.AMQPURL != "" {
		if err := a.connectBroker(); err != nil {
			// Events are advisory; the gateway serves without them.
			logger.Warn("event publishing disabled", zap.Error(err))
		}
	}

	a.metrics, err = middleware.NewMetrics(nil)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.dispatcher = checkout.NewDispatcher(cfg.UpstreamTimeout, logger.Named("dispatcher"))
	a.handler = a.buildRouter()

	return a, nil
}

func (a *App) connectBroker() error {
	conn, err := amqp.DialConfig(a.cfg.AMQPURL, amqp.Config{
		Dial: amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	pub, err := checkout.NewAMQPPublisher(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}

	a.amqpConn = conn
	a.events = pub
	return nil
}

func (a *App) buildRouter() http.Handler {
	cfg := a.cfg

	// Base HTTP client (shared)
	sharedHTTP := &http.Client{Timeout: cfg.UpstreamTimeout}

	authBase := clients.NewClient("Auth service", cfg.AuthURL, sharedHTTP)
	productBase := clients.NewClient("Product service", cfg.ProductURL, sharedHTTP)
	orderBase := clients.NewClient("Order service", cfg.OrderURL, sharedHTTP)
	notificationBase := clients.NewClient("Notification service", cfg.NotificationURL, sharedHTTP)

	revocations := store.NewRevocationStore(a.redis)

	cartSvc := cart.NewService(
		store.NewCartStore(a.redis),
		clients.NewProductClient(productBase),
		cfg.CartTTL,
		a.logger.Named("cart"),
	)

	orchestrator := checkout.NewOrchestrator(
		cartSvc,
		clients.NewOrderClient(orderBase),
		clients.NewNotificationClient(notificationBase),
		a.dispatcher,
		a.logger.Named("checkout"),
	)
	if a.events != nil {
		orchestrator.WithEvents(a.events)
	}

	health := &handlers.HealthHandler{
		Cache: a.redis,
		Probes: []clients.HealthProbe{
			{Name: "auth", Client: authBase, Path: "/health"},
			{Name: "product", Client: productBase, Path: "/health"},
			{Name: "order", Client: orderBase, Path: "/health"},
			{Name: "notification", Client: notificationBase, Path: "/health"},
		},
		Timeout: cfg.HealthTimeout,
		Logger:  a.logger,
	}
	if a.db != nil {
		health.Database = a.db
	}

	return httpapi.NewRouter(httpapi.Deps{
		Logger:         a.logger,
		Cfg:            cfg,
		Metrics:        a.metrics,
		Auth:           middleware.NewAuthenticator(auth.NewVerifier(cfg.JWTSecret), revocations, a.logger),
		Limiter:        middleware.NewRateLimiter(store.NewRateLimitStore(a.redis), a.logger),
		Revocations:    revocations,
		AuthService:    authBase,
		ProductService: productBase,
		OrderService:   orderBase,
		Cart:           cartSvc,
		Checkout:       orchestrator,
		Health:         health,
	})
}

func (a *App) Handler() http.Handler { return a.handler }

// Run binds the port and serves until ctx is cancelled, then drains
// in-flight requests and background tasks within the shutdown timeout and
// releases every connection. A bind failure is returned immediately.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+a.cfg.Port)
	if err != nil {
		_ = a.Close()
		return fmt.Errorf("listen on :%s: %w", a.cfg.Port, err)
	}
	return a.Serve(ctx, ln)
}

func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("api gateway listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("prefix", a.cfg.APIPrefix),
			zap.String("env", a.cfg.Env),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown", zap.Error(err))
	}
	if err := a.dispatcher.Wait(shutdownCtx); err != nil {
		a.logger.Warn("background tasks still running at shutdown", zap.Error(err))
	}
	if err := a.Close(); err != nil {
		a.logger.Error("release resources", zap.Error(err))
	}

	a.logger.Info("shutdown complete")
	return runErr
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.ShutdownTimeout > 0 {
		return a.cfg.ShutdownTimeout
	}
	return 10 * time.Second
}

// Close releases the broker, database and cache connections. It is safe to
// call more than once.
func (a *App) Close() error {
	var errs []error

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp channel: %w", err))
		}
		a.events = nil
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp connection: %w", err))
		}
		a.amqpConn = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
		a.redis = nil
	}

	return errors.Join(errs...)
}
