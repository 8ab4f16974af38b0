package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port      string
	APIPrefix string
	Env       string

	JWTSecret string

	Redis RedisSettings

	// Upstream base URLs (inside docker network recommended)
	AuthURL         string
	ProductURL      string
	OrderURL        string
	NotificationURL string

	UpstreamTimeout time.Duration
	HealthTimeout   time.Duration
	ShutdownTimeout time.Duration

	RateLimit     RateLimitPolicy
	AuthRateLimit RateLimitPolicy

	CartTTL      time.Duration
	MaxBodyBytes int64

	// Optional collaborators; empty disables them.
	DatabaseURL string
	AMQPURL     string

	// CORS
	CORSAllowOrigins []string
}

type RedisSettings struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisSettings) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type RateLimitPolicy struct {
	Window time.Duration
	Max    int
}

// Load resolves the configuration from the environment. Defaults match the
// docker-compose service names and are only suitable for local development.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:      v.GetString("PORT"),
		APIPrefix: normalizePrefix(v.GetString("API_PREFIX")),
		Env:       v.GetString("ENV"),
		JWTSecret: v.GetString("JWT_SECRET"),
		Redis: RedisSettings{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		AuthURL:         v.GetString("AUTH_SERVICE_URL"),
		ProductURL:      v.GetString("PRODUCT_SERVICE_URL"),
		OrderURL:        v.GetString("ORDER_SERVICE_URL"),
		NotificationURL: v.GetString("NOTIFICATION_SERVICE_URL"),
		UpstreamTimeout: v.GetDuration("UPSTREAM_TIMEOUT"),
		HealthTimeout:   v.GetDuration("HEALTH_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		RateLimit: RateLimitPolicy{
			Window: v.GetDuration("RATE_LIMIT_WINDOW"),
			Max:    v.GetInt("RATE_LIMIT_MAX"),
		},
		AuthRateLimit: RateLimitPolicy{
			Window: v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			Max:    v.GetInt("AUTH_RATE_LIMIT_MAX"),
		},
		CartTTL:          v.GetDuration("CART_TTL"),
		MaxBodyBytes:     v.GetInt64("MAX_BODY_BYTES"),
		DatabaseURL:      strings.TrimSpace(v.GetString("DATABASE_URL")),
		AMQPURL:          strings.TrimSpace(v.GetString("AMQP_URL")),
		CORSAllowOrigins: splitCSV(v.GetString("CORS_ALLOW_ORIGINS")),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("API_PREFIX", "/api")
	v.SetDefault("ENV", "development")

	v.SetDefault("JWT_SECRET", "development-secret-key")

	v.SetDefault("REDIS_HOST", "redis")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_SERVICE_URL", "http://auth-service:5000")
	v.SetDefault("PRODUCT_SERVICE_URL", "http://product-service:5001")
	v.SetDefault("ORDER_SERVICE_URL", "http://order-service:5002")
	v.SetDefault("NOTIFICATION_SERVICE_URL", "http://notification-service:5003")

	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("HEALTH_TIMEOUT", "5s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("AUTH_RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("AUTH_RATE_LIMIT_MAX", 10)

	v.SetDefault("CART_TTL", "168h")
	v.SetDefault("MAX_BODY_BYTES", 10<<20)

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AMQP_URL", "")

	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
		return fmt.Errorf("invalid general rate limit policy %+v", c.RateLimit)
	}
	if c.AuthRateLimit.Window <= 0 || c.AuthRateLimit.Max <= 0 {
		return fmt.Errorf("invalid auth rate limit policy %+v", c.AuthRateLimit)
	}
	if c.CartTTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive, got %s", c.CartTTL)
	}
	return nil
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
