package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/config"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/handlers"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/model"
)

type Deps struct {
	Logger  *zap.Logger
	Cfg     config.Config
	Metrics *middleware.Metrics

	Auth        *middleware.Authenticator
	Limiter     *middleware.RateLimiter
	Revocations handlers.Revoker

	AuthService    *clients.Client
	ProductService *clients.Client
	OrderService   *clients.Client

	Cart     handlers.CartService
	Checkout handlers.Checkouter
	Health   *handlers.HealthHandler
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	prefix := d.Cfg.APIPrefix

	r := chi.NewRouter()

	// Middlewares (outer -> inner)
	r.Use(middleware.CorrelationID)
	r.Use(chimw.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(d.Cfg.CORSAllowOrigins))
	r.Use(middleware.Logging(log))
	if d.Metrics != nil {
		r.Use(d.Metrics.Handler)
	}
	r.Use(middleware.Recover(log))
	r.Use(middleware.BodyLimit(d.Cfg.MaxBodyBytes))
	if d.Limiter != nil {
		r.Use(d.Limiter.Limit(middleware.RateLimitPolicy{
			Name:   "general",
			Limit:  d.Cfg.RateLimit.Max,
			Window: d.Cfg.RateLimit.Window,
			Skip:   generalExempt(prefix),
		}))
	}

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	api := chi.NewRouter()
	api.NotFound(notFound)
	api.MethodNotAllowed(notFound)

	api.Get("/health", d.Health.Health)
	if d.Metrics != nil {
		api.Method(http.MethodGet, "/metrics", d.Metrics.Exposition())
	}

	authProxy := handlers.NewProxy(d.AuthService, log)
	productProxy := handlers.NewProxy(d.ProductService, log)
	orderProxy := handlers.NewProxy(d.OrderService, log)
	downstreamPath := handlers.StripPrefix(prefix)

	// Auth
	authH := handlers.NewAuthHandler(d.Revocations, log)
	api.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Limit(middleware.RateLimitPolicy{
					Name:   "auth",
					Limit:  d.Cfg.AuthRateLimit.Max,
					Window: d.Cfg.AuthRateLimit.Window,
				}))
			}
			r.Post("/register", authProxy.To(handlers.Fixed("/register")))
			r.Post("/login", authProxy.To(handlers.Fixed("/login")))
			r.Post("/refresh", authProxy.To(handlers.Fixed("/refresh")))
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Require)
			r.Get("/me", authH.Me)
			r.Post("/logout", authH.Logout)
			r.Post("/change-password", authProxy.To(handlers.Fixed("/change-password")))
		})
	})

	// Products: reads personalize, writes need a user
	api.Route("/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Optional)
			r.Get("/", productProxy.To(downstreamPath))
			r.Get("/search", productProxy.To(downstreamPath))
			r.Get("/{id}", productProxy.To(downstreamPath))
		})

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Require)
			r.Post("/", productProxy.To(downstreamPath))
			r.Put("/{id}", productProxy.To(downstreamPath))
			r.Delete("/{id}", productProxy.To(downstreamPath))
		})
	})

	// Cart
	cart := handlers.NewCartHandler(d.Cart, log)
	api.Route("/cart", func(r chi.Router) {
		r.Use(d.Auth.Require)
		r.Get("/", cart.Get)
		r.Post("/add", cart.Add)
		r.Post("/sync", cart.Sync)
		r.Delete("/", cart.Clear)
	})

	// Orders
	order := handlers.NewOrderHandler(d.Checkout, log)
	api.Route("/orders", func(r chi.Router) {
		r.Use(d.Auth.Require)
		r.Get("/", orderProxy.To(downstreamPath))
		r.Post("/", order.Create)
		r.Get("/{id}", orderProxy.To(downstreamPath))
		r.Post("/{id}/cancel", orderProxy.To(downstreamPath))
	})

	if prefix == "" {
		r.Mount("/", api)
		return r
	}

	r.Mount(prefix, api)

	// Orchestrators and scrapers probe the bare paths.
	r.Get("/health", d.Health.Health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Exposition())
	}

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusNotFound, model.ErrorResponse{
		Error:         "Endpoint not found",
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	})
}

// generalExempt keeps health checks, scrapes and the auth-limited routes out
// of the general rate limit. Each request counts against one policy only.
func generalExempt(prefix string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		switch r.URL.Path {
		case "/health", "/metrics", prefix + "/health", prefix + "/metrics",
			prefix + "/auth/register", prefix + "/auth/login", prefix + "/auth/refresh":
			return true
		default:
			return false
		}
	}
}
