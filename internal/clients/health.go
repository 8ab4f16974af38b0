package clients

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type HealthProbe struct {
	Name   string
	Client *Client
	Path   string
}

type HealthResult struct {
	Name       string `json:"name"`
	OK         bool   `json:"ok"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (r HealthResult) Status() string {
	if r.OK {
		return StatusHealthy
	}
	return StatusUnhealthy
}

func CheckHealth(ctx context.Context, probe HealthProbe, timeout time.Duration) HealthResult {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := probe.Path
	if path == "" {
		path = "/health"
	}

	resp, err := probe.Client.Do(ctx, http.MethodGet, path, "", nil, http.Header{})
	if err != nil {
		return HealthResult{Name: probe.Name, OK: false, Error: err.Error()}
	}
	drain(resp)

	return HealthResult{Name: probe.Name, OK: isSuccess(resp.StatusCode), StatusCode: resp.StatusCode}
}

// CheckAll probes every service concurrently. A failing probe never cancels
// the others; results come back in probe order.
func CheckAll(ctx context.Context, probes []HealthProbe, timeout time.Duration) []HealthResult {
	results := make([]HealthResult, len(probes))

	var g errgroup.Group
	for i := range probes {
		g.Go(func() error {
			results[i] = CheckHealth(ctx, probes[i], timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
