package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/clients"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/http/dto"
	"github.com/andreasstove999/ecommerce-system/shopstream-gateway/internal/middleware"
)

const (
	statusHealthy       = "healthy"
	statusDegraded      = "degraded"
	statusConnected     = "connected"
	statusDisconnected  = "disconnected"
	statusNotConfigured = "not_configured"
)

var errNoPinger = errors.New("no client configured")

// Pinger is satisfied by the redis client wrapper and by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	Cache    Pinger
	Database Pinger
	Probes   []clients.HealthProbe
	Timeout  time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// Health reports cache and downstream liveness. It always answers: 200 when
// everything is up, 503 otherwise. The database is informational and never
// degrades the status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	now := h.Now
	if now == nil {
		now = time.Now
	}

	resp := dto.HealthResponse{
		Status:   statusHealthy,
		Cache:    statusConnected,
		Services: make(map[string]string, len(h.Probes)),
		Database: statusNotConfigured,
	}

	if err := ping(r.Context(), h.Cache, timeout); err != nil {
		resp.Cache = statusDisconnected
		resp.Status = statusDegraded
		h.logger(r).Warn("cache health check failed", zap.Error(err))
	}

	for _, res := range clients.CheckAll(r.Context(), h.Probes, timeout) {
		resp.Services[res.Name] = res.Status()
		if !res.OK {
			resp.Status = statusDegraded
		}
	}

	if h.Database != nil {
		resp.Database = statusConnected
		if err := ping(r.Context(), h.Database, timeout); err != nil {
			resp.Database = statusDisconnected
			h.logger(r).Warn("database health check failed", zap.Error(err))
		}
	}

	resp.Timestamp = now().UTC()

	status := http.StatusOK
	if resp.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, status, resp)
}

func (h *HealthHandler) logger(r *http.Request) *zap.Logger {
	l := h.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return middleware.LoggerFrom(r.Context(), l)
}

func ping(ctx context.Context, p Pinger, timeout time.Duration) error {
	if p == nil {
		return errNoPinger
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx)
}
