package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one handler. Each handler owns a registry
// so tests can build several routers in one process.
type Metrics struct {
	Registry *prometheus.Registry

	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	computations *prometheus.CounterVec
	actual       *prometheus.GaugeVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_pricing_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "event_pricing_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		computations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_pricing_computations_total",
			Help: "Engine invocations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		actual: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "event_pricing_actual_balance",
			Help: "Last computed actual balance per event.",
		}, []string{"event_id", "status"}),
	}
	m.Registry.MustRegister(m.requests, m.duration, m.computations, m.actual)
	m.Registry.MustRegister(collectors.NewGoCollector())
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency under the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) observeComputation(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.computations.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) setActualBalance(eventID, status string, balance float64) {
	m.actual.DeletePartialMatch(prometheus.Labels{"event_id": eventID})
	m.actual.WithLabelValues(eventID, status).Set(balance)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
