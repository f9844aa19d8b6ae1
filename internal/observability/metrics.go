package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lis186/smart-weather-mcp-server-sub001/internal/models"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Routed queries by outcome (success/error). Watch for: traffic volume, error ratio.
	QueriesTotal *prometheus.CounterVec

	// Queries by parsing source (rules_only, rules_with_ai_fallback, rules_fallback).
	// Watch for: rules_fallback growth = AI unavailable, rules_with_ai_fallback cost.
	ParseSourceTotal *prometheus.CounterVec

	// Queries by detected language. Low cardinality: en, zh-TW, zh-CN, ja.
	QueriesByLanguageTotal *prometheus.CounterVec

	// AI fallback call rate by status. Watch for: error vs success ratio, spend.
	AICallsTotal *prometheus.CounterVec

	// AI fallback latency. Watch for: p95 approaching the call timeout.
	AICallDuration prometheus.Histogram

	// Upstream weather API call rate by backend and status.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream weather API latency per backend. Watch for: p95 > 2s (degradation).
	UpstreamCallDuration *prometheus.HistogramVec

	// Retry attempts against upstream APIs. Watch for: high retries = unstable upstream.
	UpstreamRetriesTotal prometheus.Counter

	// Cache hits and misses by cache type tag.
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Fallback-chain advances at call time. Watch for: nonzero = primary API failing.
	RoutingFallbacksTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	cacheGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherQueriesTotal",
			Help: "Total number of routed weather queries",
		},
		[]string{"outcome"},
	)
	ParseSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parseSourceTotal",
			Help: "Queries by parsing source (rules_only, rules_with_ai_fallback, rules_fallback)",
		},
		[]string{"source"},
	)
	QueriesByLanguageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queriesByLanguageTotal",
			Help: "Queries by detected language",
		},
		[]string{"language"},
	)
	AICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiCallsTotal",
			Help: "Total number of AI parsing fallback calls",
		},
		[]string{"status"},
	)
	AICallDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aiCallDurationSeconds",
			Help:    "AI parsing fallback latency in seconds",
			Buckets: []float64{.25, .5, 1, 2, 3, 5, 10},
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream weather API calls",
		},
		[]string{"api", "status"},
	)
	UpstreamCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamCallDurationSeconds",
			Help:    "Upstream weather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api"},
	)
	UpstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts against upstream weather APIs",
		},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of response cache hits by type tag",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of response cache misses by type tag",
		},
		[]string{"cacheType"},
	)
	RoutingFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routingFallbacksTotal",
			Help: "Total number of fallback-chain advances after a primary API failure",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		QueriesTotal, ParseSourceTotal, QueriesByLanguageTotal,
		AICallsTotal, AICallDuration,
		UpstreamCallsTotal, UpstreamCallDuration, UpstreamRetriesTotal,
		CacheHitsTotal, CacheMissesTotal,
		RoutingFallbacksTotal, RateLimitDeniedTotal,
	)
}

// RegisterCacheGauges exposes response cache size and hit rate as gauges.
// Call from main after the cache is constructed.
func RegisterCacheGauges(metrics func() models.CacheMetrics) {
	cacheGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "cacheSize",
					Help: "Entries currently held by the response cache",
				},
				func() float64 { return float64(metrics().Size) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "cacheHitRate",
					Help: "Response cache hit rate since process start",
				},
				func() float64 { return metrics().HitRate },
			),
		)
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
