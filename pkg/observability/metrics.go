package observability

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors for reviewcraft and implements
// [ExportHooks], [CacheHooks] and [HTTPHooks].
type Metrics struct {
	StageDurationSec   *prometheus.HistogramVec
	StageErrors        *prometheus.CounterVec
	TierFailures       *prometheus.CounterVec
	ImagesNormalized   *prometheus.CounterVec
	CacheEvents        *prometheus.CounterVec
	CacheBytes         *prometheus.CounterVec
	UpstreamRequests   *prometheus.CounterVec
	UpstreamErrors     *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
	RequestsTotal      *prometheus.CounterVec
	RequestDurationSec *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewcraft_export_stage_duration_seconds",
			Help:    "Duration of export pipeline stages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_export_stage_errors_total",
			Help: "Export stages that ended in an error.",
		}, []string{"op", "stage"}),
		TierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_cascade_tier_failures_total",
			Help: "Fallback tiers that failed before the next tier ran.",
		}, []string{"cascade", "tier"}),
		ImagesNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_images_normalized_total",
			Help: "Images normalized, by resolution path.",
		}, []string{"resolution"}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_cache_events_total",
			Help: "Cache hits, misses and writes.",
		}, []string{"key_type", "event"}),
		CacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_cache_written_bytes_total",
			Help: "Bytes written to the cache.",
		}, []string{"key_type"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_upstream_requests_total",
			Help: "Outgoing HTTP requests by host and status.",
		}, []string{"host", "status"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_upstream_errors_total",
			Help: "Outgoing HTTP requests that failed before a response.",
		}, []string{"host"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewcraft_upstream_duration_seconds",
			Help:    "Outgoing HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewcraft_http_requests_total",
			Help: "Total number of served HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewcraft_http_request_duration_seconds",
			Help:    "Served HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	registry.MustRegister(
		m.StageDurationSec,
		m.StageErrors,
		m.TierFailures,
		m.ImagesNormalized,
		m.CacheEvents,
		m.CacheBytes,
		m.UpstreamRequests,
		m.UpstreamErrors,
		m.UpstreamDuration,
		m.RequestsTotal,
		m.RequestDurationSec,
	)

	return m
}

// Register installs m as the export, cache and HTTP hooks.
func (m *Metrics) Register() {
	SetExportHooks(m)
	SetCacheHooks(m)
	SetHTTPHooks(m)
}

// =============================================================================
// Hook implementations
// =============================================================================

func (m *Metrics) OnStageStart(context.Context, string, string) {}

func (m *Metrics) OnStageComplete(_ context.Context, op, stage string, d time.Duration, err error) {
	m.StageDurationSec.WithLabelValues(op, stage).Observe(d.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(op, stage).Inc()
	}
}

func (m *Metrics) OnTierFailed(_ context.Context, cascade, tier string, _ error) {
	m.TierFailures.WithLabelValues(cascade, tier).Inc()
}

func (m *Metrics) OnImageNormalized(_ context.Context, resolution string, _ time.Duration) {
	m.ImagesNormalized.WithLabelValues(resolution).Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheEvents.WithLabelValues(keyType, "set").Inc()
	m.CacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	m.UpstreamRequests.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.UpstreamDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.UpstreamErrors.WithLabelValues(host).Inc()
}

var (
	_ ExportHooks = (*Metrics)(nil)
	_ CacheHooks  = (*Metrics)(nil)
	_ HTTPHooks   = (*Metrics)(nil)
)

// =============================================================================
// HTTP middleware
// =============================================================================

// Middleware records request counts and durations for served routes.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
	})
}

// normalizeRoute keeps label cardinality bounded.
func normalizeRoute(path string) string {
	switch {
	case path == "/" || path == "/preview":
		return "/preview"
	case path == "/api/image-proxy":
		return "/api/image-proxy"
	case path == "/metrics", path == "/healthz":
		return path
	case strings.HasPrefix(path, "/api/"):
		return "/api/*"
	default:
		return "other"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
