// Package metrics provides observability for the decision engine
package metrics

import (
	"net/http"
	"time"
)

// Metrics records decision engine observability signals
type Metrics interface {
	// Decision metrics
	RecordDecision(outcome, reason string, duration time.Duration)
	RecordCacheHit()
	RecordCacheMiss()
	RecordCacheFallback()
	RecordTimeout()
	RecordBatch(size int)
	RecordCatalogReload(version string)
	IncActiveEvaluations()
	DecActiveEvaluations()

	// HTTP handler for Prometheus scraping
	HTTPHandler() http.Handler
}

// NoOpMetrics is a no-op implementation for tests and disabled monitoring
type NoOpMetrics struct{}

// NewNoOpMetrics creates a no-op metrics instance
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordDecision(outcome, reason string, duration time.Duration) {}
func (n *NoOpMetrics) RecordCacheHit()                                               {}
func (n *NoOpMetrics) RecordCacheMiss()                                              {}
func (n *NoOpMetrics) RecordCacheFallback()                                          {}
func (n *NoOpMetrics) RecordTimeout()                                                {}
func (n *NoOpMetrics) RecordBatch(size int)                                          {}
func (n *NoOpMetrics) RecordCatalogReload(version string)                            {}
func (n *NoOpMetrics) IncActiveEvaluations()                                         {}
func (n *NoOpMetrics) DecActiveEvaluations()                                         {}

// HTTPHandler returns a no-op handler
func (n *NoOpMetrics) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("# NoOp metrics - monitoring disabled\n"))
	})
}
