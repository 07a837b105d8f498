package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_ExposesDecisionCounters(t *testing.T) {
	m := NewPrometheusMetrics("pdp_test")

	m.RecordDecision("PERMIT", "POLICY_SATISFIED", 50*time.Microsecond)
	m.RecordDecision("DENY", "MISSING_PERMISSION", 80*time.Microsecond)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheFallback()
	m.RecordTimeout()
	m.RecordBatch(7)
	m.RecordCatalogReload("v2")
	m.IncActiveEvaluations()
	m.DecActiveEvaluations()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.HTTPHandler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "pdp_test_decisions_total")
	assert.Contains(t, body, `outcome="PERMIT"`)
	assert.Contains(t, body, `reason="MISSING_PERMISSION"`)
	assert.Contains(t, body, "pdp_test_cache_hits_total 1")
	assert.Contains(t, body, "pdp_test_cache_fallbacks_total 1")
	assert.Contains(t, body, "pdp_test_evaluation_timeouts_total 1")
	assert.Contains(t, body, "pdp_test_batch_size")
}

func TestPrometheusMetrics_IndependentRegistries(t *testing.T) {
	// Two instances with the same namespace must not collide
	a := NewPrometheusMetrics("pdp_dup")
	b := NewPrometheusMetrics("pdp_dup")

	a.RecordCacheHit()
	b.RecordCacheHit()
	b.RecordCacheHit()

	rec := httptest.NewRecorder()
	b.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "pdp_dup_cache_hits_total 2")
}

func TestNoOpMetrics_Handler(t *testing.T) {
	m := NewNoOpMetrics()

	m.RecordDecision("PERMIT", "POLICY_SATISFIED", time.Microsecond)
	m.RecordBatch(1)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "#"))
}
