package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/site-photos/internal/photos"
)

var _ photos.Observer = (*Service)(nil)

func TestObserverCounters(t *testing.T) {
	m := New()

	m.ObserveBatchItem("move", photos.OutcomeSuccess)
	m.ObserveBatchItem("move", photos.OutcomeSuccess)
	m.ObserveBatchItem("delete", photos.OutcomeError)
	m.ObserveUpload(photos.OutcomeSuccess)
	m.ObserveFetch(photos.OutcomeStale, 10*time.Millisecond)
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.SetActiveSessions(3)

	assert.InDelta(t, 2, testutil.ToFloat64(m.batchItems.WithLabelValues("move", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.batchItems.WithLabelValues("delete", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.uploads.WithLabelValues("success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.activeSessions), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.fetchDuration))
}

func TestNilServiceIsSafe(t *testing.T) {
	var m *Service
	m.ObserveBatchItem("move", "success")
	m.ObserveHTTPRequest("GET", "/", 200, time.Second)
	m.SetActiveSessions(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/staging/previews/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", m.Handler())

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/staging/previews/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	count := testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/api/v1/staging/previews/{id}", "404"))
	assert.InDelta(t, 3, count, 0)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}
