package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/turtacn/taskflow/pkg/constants"
)

// Metrics manages the Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
	RateLimitHits      *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics on reg. A nil reg selects the default
// registerer served by /metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_http_requests_total",
				Help: "Total number of HTTP requests by route and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskflow_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_rate_limit_hits_total",
				Help: "Total number of requests rejected by a rate limiter.",
			},
			[]string{"scope"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_cache_lookups_total",
				Help: "Response cache lookups by result.",
			},
			[]string{"result"},
		),
		CacheInvalidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_cache_invalidated_entries_total",
				Help: "Entries removed by prefix invalidation.",
			},
			[]string{"namespace"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskflow_events_published_total",
				Help: "Domain events handed to the publisher by type and result.",
			},
			[]string{"type", "result"},
		),
	}
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rate limit rejection.
func (m *Metrics) RecordRateLimitHit(scope constants.RateLimitScope) {
	if m == nil {
		return
	}
	m.RateLimitHits.WithLabelValues(string(scope)).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordCacheInvalidation records entries removed under a namespace.
func (m *Metrics) RecordCacheInvalidation(namespace string, removed int) {
	if m == nil || removed == 0 {
		return
	}
	m.CacheInvalidations.WithLabelValues(namespace).Add(float64(removed))
}

// RecordEvent records a publish attempt.
func (m *Metrics) RecordEvent(eventType constants.EventType, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(string(eventType), result).Inc()
}
