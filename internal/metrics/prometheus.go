package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics using a private Prometheus registry
type PrometheusMetrics struct {
	decisionsTotal    *prometheus.CounterVec
	cacheHitsTotal    prometheus.Counter
	cacheMissesTotal  prometheus.Counter
	cacheFallbacks    prometheus.Counter
	timeoutsTotal     prometheus.Counter
	catalogReloads    *prometheus.CounterVec
	activeEvaluations prometheus.Gauge
	decisionDuration  prometheus.Histogram
	batchSize         prometheus.Histogram

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a Prometheus metrics instance
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Total number of decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	cacheHitsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of decision cache hits",
		},
	)

	cacheMissesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of decision cache misses",
		},
	)

	cacheFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "fallbacks_total",
			Help:      "Total number of remote cache failures served by the local fallback",
		},
	)

	timeoutsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluation_timeouts_total",
			Help:      "Total number of evaluations denied at the deadline",
		},
	)

	catalogReloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "reloads_total",
			Help:      "Total number of catalog snapshot replacements by version",
		},
		[]string{"version"},
	)

	activeEvaluations := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_evaluations",
			Help:      "Number of evaluations currently in flight",
		},
	)

	// Decision latency: sub-millisecond expected on cache hits
	decisionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_microseconds",
			Help:      "Decision latency in microseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000, 100000},
		},
	)

	batchSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch evaluation",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		},
	)

	registry.MustRegister(
		decisionsTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheFallbacks,
		timeoutsTotal,
		catalogReloads,
		activeEvaluations,
		decisionDuration,
		batchSize,
	)

	return &PrometheusMetrics{
		decisionsTotal:    decisionsTotal,
		cacheHitsTotal:    cacheHitsTotal,
		cacheMissesTotal:  cacheMissesTotal,
		cacheFallbacks:    cacheFallbacks,
		timeoutsTotal:     timeoutsTotal,
		catalogReloads:    catalogReloads,
		activeEvaluations: activeEvaluations,
		decisionDuration:  decisionDuration,
		batchSize:         batchSize,
		registry:          registry,
	}
}

// RecordDecision records one finished evaluation
func (m *PrometheusMetrics) RecordDecision(outcome, reason string, duration time.Duration) {
	m.decisionsTotal.WithLabelValues(outcome, reason).Inc()
	m.decisionDuration.Observe(float64(duration.Microseconds()))
}

func (m *PrometheusMetrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

func (m *PrometheusMetrics) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}

func (m *PrometheusMetrics) RecordCacheFallback() {
	m.cacheFallbacks.Inc()
}

func (m *PrometheusMetrics) RecordTimeout() {
	m.timeoutsTotal.Inc()
}

func (m *PrometheusMetrics) RecordBatch(size int) {
	m.batchSize.Observe(float64(size))
}

func (m *PrometheusMetrics) RecordCatalogReload(version string) {
	m.catalogReloads.WithLabelValues(version).Inc()
}

func (m *PrometheusMetrics) IncActiveEvaluations() {
	m.activeEvaluations.Inc()
}

func (m *PrometheusMetrics) DecActiveEvaluations() {
	m.activeEvaluations.Dec()
}

// HTTPHandler returns the Prometheus scrape handler for this registry
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
