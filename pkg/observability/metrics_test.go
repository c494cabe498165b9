package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDecision("inventory.get", OutcomeAllowed, "")
	m.RecordDecision("inventory.get", OutcomeAllowed, "")
	m.RecordDecision("inventory.delete", OutcomeDenied, "lacks_permission")
	m.RecordCacheEvent(CacheHit)
	m.RecordConstruction()
	m.ObserveResolve(3*time.Millisecond, nil)
	m.ObserveResolve(time.Millisecond, errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("inventory.get", OutcomeAllowed, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("inventory.delete", OutcomeDenied, "lacks_permission")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzCacheEventsTotal.WithLabelValues(CacheHit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzConstructionsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.AuthzResolveDuration))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDecision("op", OutcomeAllowed, "")
		m.RecordCacheEvent(CacheMiss)
		m.RecordConstruction()
		m.ObserveResolve(time.Second, nil)
	})
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	RegisterMetricsEndpoint(router, registry)

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/{id}", "418")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "groundup_http_requests_total")
}
