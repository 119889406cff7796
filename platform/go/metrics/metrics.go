// Package metrics exposes Prometheus collectors for the HTTP surface and the scheduling coordinator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for scheduling operations.
const (
	OutcomeSuccess      = "success"
	OutcomeError        = "error"
	OutcomeInconsistent = "inconsistent"
)

// Metrics owns a private registry so multiple instances (tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	scheduling      *prometheus.CounterVec
	retries         *prometheus.CounterVec
}

// New registers every collector on a fresh registry. service is attached as a const label.
func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"method", "path", "status"}),
		scheduling: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "harmony_scheduling_operations_total",
			Help:        "Scheduling coordinator operations by outcome",
			ConstLabels: labels,
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "harmony_scheduling_retries_total",
			Help:        "Retried coordinator steps",
			ConstLabels: labels,
		}, []string{"operation", "step"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.scheduling,
		m.retries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records request count and latency labelled by the chi route pattern, so
// path parameters never explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		code := strconv.Itoa(status)
		m.requests.WithLabelValues(r.Method, path, code).Inc()
		m.requestDuration.WithLabelValues(r.Method, path, code).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveScheduling counts one coordinator operation. A nil receiver is a no-op.
func (m *Metrics) ObserveScheduling(operation, outcome string) {
	if m == nil {
		return
	}
	m.scheduling.WithLabelValues(operation, outcome).Inc()
}

// ObserveRetry counts one retried coordinator step.
func (m *Metrics) ObserveRetry(operation, step string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation, step).Inc()
}
