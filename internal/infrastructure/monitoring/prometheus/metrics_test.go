package prometheus

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "coveriq"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNewMetricsCollectorRequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRegisterCounterAndScrape(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("test_events_total", "test events", "kind")
	vec.WithLabelValues("alpha").Inc()
	vec.WithLabelValues("alpha").Add(2)

	body := scrape(t, c)
	assert.Contains(t, body, `coveriq_test_events_total{kind="alpha"} 3`)
}

func TestDuplicateRegistrationReturnsSameInstrument(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("dups_total", "dup test", "l")
	second := c.RegisterCounter("dups_total", "dup test", "l")

	first.WithLabelValues("x").Inc()
	second.WithLabelValues("x").Inc()

	body := scrape(t, c)
	assert.Contains(t, body, `coveriq_dups_total{l="x"} 2`)
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("queue_depth", "depth", "queue").WithLabelValues("extractions")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Add(3)
	g.Sub(1)

	body := scrape(t, c)
	assert.Contains(t, body, `coveriq_queue_depth{queue="extractions"} 7`)
}

func TestRegisterHistogramDefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("op_duration_seconds", "op duration", nil, "op")
	h.WithLabelValues("tree_build").Observe(0.02)

	body := scrape(t, c)
	assert.Contains(t, body, `coveriq_op_duration_seconds_count{op="tree_build"} 1`)
}

func TestNewAppMetricsRegistersEverything(t *testing.T) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	require.NotNil(t, m)

	RecordHTTPRequest(m, http.MethodGet, "/api/v1/portfolios", 200, 12*time.Millisecond)
	RecordLLMCall(m, "openai", "gpt-4o", true, time.Second, 1200, 300)
	RecordDBQuery(m, "portfolio", "find_by_id", 2*time.Millisecond, nil)
	RecordDBQuery(m, "portfolio", "find_by_id", 2*time.Millisecond, errors.New("boom"))
	RecordCacheAccess(m, "portfolio_summary", true)
	RecordCacheAccess(m, "portfolio_summary", false)

	body := scrape(t, c)
	assert.Contains(t, body, `coveriq_http_requests_total{method="GET",path="/api/v1/portfolios",status_code="200"} 1`)
	assert.Contains(t, body, `coveriq_llm_tokens_total{direction="input",model="gpt-4o",provider="openai"} 1200`)
	assert.Contains(t, body, `coveriq_cache_hits_total{cache="portfolio_summary"} 1`)
	assert.Contains(t, body, `coveriq_cache_misses_total{cache="portfolio_summary"} 1`)
	assert.Contains(t, body, `coveriq_errors_total{code="db_query",component="portfolio"} 1`)
}

func TestRecordHelpersTolerateNilMetrics(t *testing.T) {
	RecordHTTPRequest(nil, "GET", "/", 200, 0)
	RecordLLMCall(nil, "p", "m", false, 0, 0, 0)
	RecordDBQuery(nil, "r", "o", 0, nil)
	RecordCacheAccess(nil, "c", true)
}

func TestTimerObservesDuration(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("timed_seconds", "timed", nil).WithLabelValues()
	timer := NewTimer(h)
	time.Sleep(time.Millisecond)
	timer.ObserveDuration()

	body := scrape(t, c)
	assert.Contains(t, body, "coveriq_timed_seconds_count 1")
}

func TestTimerNilHistogram(t *testing.T) {
	NewTimer(nil).ObserveDuration()
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "coveriq_"), "expected namespaced metrics in scrape output")
	return body
}
