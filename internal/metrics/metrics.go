// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Service owns a private registry so tests can create as many as they need.
type Service struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	batchItems      *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

// New registers every collector.
func New() *Service {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photo_fetch_duration_seconds",
		Help:    "Duration of photo collection fetches by outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	batchItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photo_batch_items_total",
		Help: "Photos processed by batch move and delete",
	}, []string{"operation", "outcome"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "photo_upload_submissions_total",
		Help: "Upload submissions by outcome",
	}, []string{"outcome"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reference_cache_lookups_total",
		Help: "Reference data cache lookups",
	}, []string{"result"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "photo_sessions_active",
		Help: "Photo workspaces currently held in memory",
	})

	registry.MustRegister(requestDuration, requestTotal, fetchDuration, batchItems, uploads, cacheLookups, activeSessions)

	return &Service{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		fetchDuration:   fetchDuration,
		batchItems:      batchItems,
		uploads:         uploads,
		cacheLookups:    cacheLookups,
		activeSessions:  activeSessions,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Service) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *Service) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTPRequest records one served request.
func (m *Service) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

func (m *Service) ObserveFetch(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Service) ObserveBatchItem(operation, outcome string) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(operation, outcome).Inc()
}

func (m *Service) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup counts a reference cache hit or miss.
func (m *Service) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetActiveSessions reports the number of workspaces held in memory.
func (m *Service) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Middleware records request metrics labelled with the chi route pattern,
// so path parameters do not explode the label set.
func (m *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.ObserveHTTPRequest(r.Method, path, status, time.Since(start))
	})
}
