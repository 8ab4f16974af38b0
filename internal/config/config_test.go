package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, 30*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, RateLimitPolicy{Window: 15 * time.Minute, Max: 100}, cfg.RateLimit)
	assert.Equal(t, RateLimitPolicy{Window: 15 * time.Minute, Max: 10}, cfg.AuthRateLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.CartTTL)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowOrigins)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.AMQPURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("API_PREFIX", "v1/")
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("ORDER_SERVICE_URL", "http://orders:7000")
	t.Setenv("AUTH_RATE_LIMIT_MAX", "3")
	t.Setenv("UPSTREAM_TIMEOUT", "12s")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/v1", cfg.APIPrefix)
	assert.Equal(t, "cache.local:6380", cfg.Redis.Addr())
	assert.Equal(t, "http://orders:7000", cfg.OrderURL)
	assert.Equal(t, 3, cfg.AuthRateLimit.Max)
	assert.Equal(t, 12*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigins)
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api/": "/api",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePrefix(in), "prefix %q", in)
	}
}
