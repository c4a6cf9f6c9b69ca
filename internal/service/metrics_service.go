package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the edit lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	editsSubmitted prometheus.Counter
	editsReviewed  *prometheus.CounterVec
	editsApplied   prometheus.Counter
	editsReverted  prometheus.Counter
	editsReset     prometheus.Counter
	applyRuns      prometheus.Histogram
}

// NewMetricsService registers the core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	editsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edits_submitted_total",
		Help: "Total edits submitted by contributors",
	})

	editsReviewed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edits_reviewed_total",
		Help: "Total moderator decisions by outcome",
	}, []string{"decision"})

	editsApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edits_applied_total",
		Help: "Total edits written to live records",
	})

	editsReverted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edits_reverted_total",
		Help: "Total corrective revert entries created",
	})

	editsReset := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edits_reset_total",
		Help: "Total edits reset back to pending",
	})

	applyRuns := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "edit_apply_run_seconds",
		Help:    "Duration of scheduler apply runs",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		editsSubmitted, editsReviewed, editsApplied, editsReverted, editsReset, applyRuns, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		editsSubmitted:  editsSubmitted,
		editsReviewed:   editsReviewed,
		editsApplied:    editsApplied,
		editsReverted:   editsReverted,
		editsReset:      editsReset,
		applyRuns:       applyRuns,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
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

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordEditSubmitted counts contributor submissions.
func (m *MetricsService) RecordEditSubmitted(count int) {
	if m == nil {
		return
	}
	m.editsSubmitted.Add(float64(count))
}

// RecordEditReviewed counts a moderator decision.
func (m *MetricsService) RecordEditReviewed(decision string) {
	if m == nil {
		return
	}
	m.editsReviewed.WithLabelValues(decision).Inc()
}

// RecordEditsApplied counts edits written by an apply run.
func (m *MetricsService) RecordEditsApplied(count int) {
	if m == nil {
		return
	}
	m.editsApplied.Add(float64(count))
}

// RecordEditReverted counts a corrective revert entry.
func (m *MetricsService) RecordEditReverted() {
	if m == nil {
		return
	}
	m.editsReverted.Inc()
}

// RecordEditReset counts an in-place reset.
func (m *MetricsService) RecordEditReset() {
	if m == nil {
		return
	}
	m.editsReset.Inc()
}

// ObserveApplyRun records the duration of one scheduler run.
func (m *MetricsService) ObserveApplyRun(duration time.Duration) {
	if m == nil {
		return
	}
	m.applyRuns.Observe(duration.Seconds())
}
