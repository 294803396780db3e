// Package obs holds the gateway's Prometheus instrumentation.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aussiebroadwan/gatekeeper/pkg/guardx"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// Metrics tracks gateway-level Prometheus metrics.
//
// All metrics use the gateway_ prefix. The breaker state gauge is fed by
// the resilience registry's state-change hook rather than polled.
type Metrics struct {
	// RequestsTotal counts inbound requests by method, route pattern and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration tracks inbound request latency.
	RequestDuration *prometheus.HistogramVec

	// RateLimitedTotal counts requests rejected by inbound rate limits.
	RateLimitedTotal prometheus.Counter

	// BreakerState reports the current breaker state per resource
	// (0 closed, 1 open, 2 half-open).
	BreakerState *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates the metric set on a private registry so tests can run
// several instances side by side.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Total inbound requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_request_duration_seconds",
				Help:    "Inbound request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_rate_limited_total",
				Help: "Requests rejected by inbound rate limits",
			},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_breaker_state",
				Help: "Circuit breaker state per resource (0 closed, 1 open, 2 half-open)",
			},
			[]string{"resource"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.RateLimitedTotal, m.BreakerState)
	return m
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// BreakerHook adapts the gauge to the resilience registry's state-change
// callback. It runs under the breaker lock, so it must stay cheap.
func (m *Metrics) BreakerHook() func(name string, from, to guardx.State) {
	return func(name string, _, to guardx.State) {
		m.BreakerState.WithLabelValues(name).Set(float64(to))
	}
}

// HTTPMiddleware records request counts and latency. Route is the mux
// pattern when available, falling back to the raw path for unmatched
// requests so cardinality stays bounded to registered routes plus one.
func (m *Metrics) HTTPMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			if sw.status == http.StatusTooManyRequests {
				m.RateLimitedTotal.Inc()
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
