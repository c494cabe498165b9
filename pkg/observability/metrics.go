package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision outcome label values
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Cache event label values
const (
	CacheHit        = "hit"
	CacheMiss       = "miss"
	CacheInvalidate = "invalidate"
	CachePurge      = "purge"
)

// Metrics holds the Prometheus collectors for the authorization core and
// its HTTP surface.
type Metrics struct {
	// Authorization metrics
	AuthzDecisionsTotal       *prometheus.CounterVec
	AuthzResolveDuration      *prometheus.HistogramVec
	AuthzCacheEventsTotal     *prometheus.CounterVec
	AuthzConstructionsTotal   prometheus.Counter
	AuthzRegisteredOperations prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundup_authz_decisions_total",
				Help: "Authorization decisions by operation, outcome and denial reason",
			},
			[]string{"operation", "outcome", "reason"},
		),
		AuthzResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundup_authz_resolve_duration_seconds",
				Help:    "Time spent resolving effective grants",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"result"},
		),
		AuthzCacheEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundup_authz_cache_events_total",
				Help: "Grant cache hits, misses and invalidations",
			},
			[]string{"event"},
		),
		AuthzConstructionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "groundup_authz_interceptor_constructions_total",
				Help: "Number of times the lazy wrapper constructed its interceptor",
			},
		),
		AuthzRegisteredOperations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "groundup_authz_registered_operations",
				Help: "Number of operations in the permission table",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "groundup_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "groundup_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.AuthzDecisionsTotal,
		m.AuthzResolveDuration,
		m.AuthzCacheEventsTotal,
		m.AuthzConstructionsTotal,
		m.AuthzRegisteredOperations,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// RecordDecision counts one authorization decision. Nil receivers are ignored
// so components can run without metrics.
func (m *Metrics) RecordDecision(operation, outcome, reason string) {
	if m == nil {
		return
	}
	m.AuthzDecisionsTotal.WithLabelValues(operation, outcome, reason).Inc()
}

// ObserveResolve records the latency of one grant resolution
func (m *Metrics) ObserveResolve(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.AuthzResolveDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordCacheEvent counts a grant cache event
func (m *Metrics) RecordCacheEvent(event string) {
	if m == nil {
		return
	}
	m.AuthzCacheEventsTotal.WithLabelValues(event).Inc()
}

// RecordConstruction counts one lazy interceptor construction
func (m *Metrics) RecordConstruction() {
	if m == nil {
		return
	}
	m.AuthzConstructionsTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests, labelling by the mux route
// template so path parameters do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
