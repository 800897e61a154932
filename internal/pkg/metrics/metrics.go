package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A single struct makes them easy to pass around and fake in tests.
type Metrics struct {
	// HTTP layer
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsActive  prometheus.Gauge

	// Business layer
	LinksCreatedTotal prometheus.Counter
	RedirectsTotal    prometheus.Counter
	ExpiredHitsTotal  prometheus.Counter
	QuotaDeniedTotal  prometheus.Counter

	// Click pipeline
	ClicksIngestedTotal  prometheus.Counter
	ClicksDroppedTotal   prometheus.Counter
	ClicksPersistedTotal prometheus.Counter
	ClicksFailedTotal    prometheus.Counter
	ClickQueueDepth      prometheus.Gauge

	// Infrastructure
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheErrors      *prometheus.CounterVec
	DBQueryDuration  *prometheus.HistogramVec
	DBErrors         *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by endpoint, method and status code",
			},
			[]string{"endpoint", "method", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latency in seconds",
				// tuned for a redirect service: most requests should land
				// in the single-digit-millisecond buckets
				Buckets: []float64{
					0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
				},
			},
			[]string{"endpoint", "method"},
		),

		HTTPRequestsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_active",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		LinksCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "links_created_total",
				Help: "Total number of short links created",
			},
		),

		RedirectsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "redirects_total",
				Help: "Total number of redirects served",
			},
		),

		ExpiredHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "expired_hits_total",
				Help: "Total number of hits on expired or inactive links",
			},
		),

		QuotaDeniedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quota_denied_total",
				Help: "Total number of link creations denied by the plan quota",
			},
		),

		ClicksIngestedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clicks_ingested_total",
				Help: "Total number of click events accepted into the pipeline queue",
			},
		),

		ClicksDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clicks_dropped_total",
				Help: "Total number of click events dropped because the queue was full or persistence gave up",
			},
		),

		ClicksPersistedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clicks_persisted_total",
				Help: "Total number of click records written to storage",
			},
		),

		ClicksFailedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "clicks_failed_total",
				Help: "Total number of click persistence attempts that failed",
			},
		),

		ClickQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "click_queue_depth",
				Help: "Number of click events currently waiting in the pipeline queue",
			},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits by operation",
			},
			[]string{"operation"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses by operation",
			},
			[]string{"operation"},
		),

		CacheErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_errors_total",
				Help: "Total number of cache errors by operation",
			},
			[]string{"operation"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "db_query_duration_seconds",
				Help: "Database query duration in seconds by operation",
				Buckets: []float64{
					0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0,
				},
			},
			[]string{"operation"},
		),

		DBErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_errors_total",
				Help: "Total number of database errors by operation",
			},
			[]string{"operation"},
		),
	}
}
