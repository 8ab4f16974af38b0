package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's process-scoped counters. One instance is built
// at startup and shared by the middleware and the /metrics handler.
type Metrics struct {
	registry *prometheus.Registry
	Requests *prometheus.CounterVec
	Errors   prometheus.Counter
	InFlight prometheus.Gauge
	started  time.Time
}

func NewMetrics(now func() time.Time) (*Metrics, error) {
	if now == nil {
		now = time.Now
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests partitioned by method and status code.",
		}, []string{"method", "status"}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "errors_total",
			Help:      "Total number of requests answered with a 5xx status.",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		started: now(),
	}

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "uptime_seconds",
		Help:      "Seconds since the gateway process started.",
	}, func() float64 {
		return now().Sub(m.started).Seconds()
	})

	for _, c := range []prometheus.Collector{
		m.Requests,
		m.Errors,
		m.InFlight,
		uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// Handler records request and error counts.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.Status()
		m.Requests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		if status >= http.StatusInternalServerError {
			m.Errors.Inc()
		}
	})
}

// Exposition serves the registry in the Prometheus text format.
func (m *Metrics) Exposition() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
