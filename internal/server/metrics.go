package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/types"
)

const metricsNamespace = "taskdash"

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	resetRequests   *prometheus.CounterVec
	resetConfirms   *prometheus.CounterVec
	authzDenials    *prometheus.CounterVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		resetRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "password_reset_requests_total",
			Help:      "Password reset requests by outcome",
		}, []string{"result"}),
		resetConfirms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "password_reset_confirms_total",
			Help:      "Password reset confirmations by outcome",
		}, []string{"result"}),
		authzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "authz_denials_total",
			Help:      "Access decisions denied by the authorization evaluator",
		}, []string{"kind", "role"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.resetRequests,
		m.resetConfirms,
		m.authzDenials,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records count and latency per chi route pattern, so that
// ids in the path do not explode label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		m.requestTotal.With(labels).Inc()
		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}

// ObserveReset matches services.ResetObserver.
func (m *Metrics) ObserveReset(operation, result string) {
	switch operation {
	case services.ResetOperationRequest:
		m.resetRequests.WithLabelValues(result).Inc()
	case services.ResetOperationConfirm:
		m.resetConfirms.WithLabelValues(result).Inc()
	}
}

// ObserveDenial matches authz.DenyObserver.
func (m *Metrics) ObserveDenial(actor types.User, intent authz.Intent) {
	role := string(actor.Role)
	if !actor.Role.Valid() {
		role = "unknown"
	}
	m.authzDenials.WithLabelValues(string(intent), role).Inc()
}
