package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry for the process.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	promotionOutcomes *prometheus.CounterVec
	promotionBatch    *prometheus.HistogramVec
	auditDropped      prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	promotionOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_students_total",
		Help: "Students handled by promotion executes, by action and outcome",
	}, []string{"type", "outcome"})

	promotionBatch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promotion_batch_duration_seconds",
		Help:    "Wall time of one promotion execute",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"type"})

	auditDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_dispatch_fallback_total",
		Help: "Audit entries written inline because the queue was unavailable",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheLatency, promotionOutcomes, promotionBatch, auditDropped, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLookups:      cacheLookups,
		cacheLatency:      cacheLatency,
		promotionOutcomes: promotionOutcomes,
		promotionBatch:    promotionBatch,
		auditDropped:      auditDropped,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records one lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordPromotionOutcome counts one student outcome: promoted, graduated, skipped or error.
func (m *MetricsService) RecordPromotionOutcome(promotionType, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.promotionOutcomes.WithLabelValues(promotionType, outcome).Add(float64(n))
}

// ObservePromotionBatch records the duration of an execute call.
func (m *MetricsService) ObservePromotionBatch(promotionType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.promotionBatch.WithLabelValues(promotionType).Observe(duration.Seconds())
}

// RecordAuditFallback counts audit entries written without the queue.
func (m *MetricsService) RecordAuditFallback() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
