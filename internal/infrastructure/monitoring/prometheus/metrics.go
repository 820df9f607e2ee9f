package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics groups every instrument the platform records.  Construct once
// per process with NewAppMetrics and inject into the layers that record.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Contract ingestion
	ContractUploadsTotal   CounterVec
	ContractUploadBytes    HistogramVec
	ContractStorageLatency HistogramVec

	// Extraction pipeline
	ExtractionJobsTotal   CounterVec
	ExtractionJobDuration HistogramVec
	ExtractionQueueDepth  GaugeVec
	LLMRequestsTotal      CounterVec
	LLMRequestDuration    HistogramVec
	LLMTokensUsed         CounterVec

	// Member import
	ImportRunsTotal   CounterVec
	ImportRowsTotal   CounterVec
	ImportRunDuration HistogramVec

	// Portfolio analytics
	SummaryComputeDuration HistogramVec
	TreeBuildDuration      HistogramVec
	TreeFactRows           HistogramVec

	// Infrastructure
	DBQueryDuration  HistogramVec
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	QueuePublishes   CounterVec
	QueueConsumes    CounterVec

	// Health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Bucket presets.
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultJobDurationBuckets  = []float64{1, 5, 10, 30, 60, 120, 300, 600}
	DefaultLLMDurationBuckets  = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultSizeBuckets         = []float64{1e3, 1e4, 1e5, 1e6, 1e7, 5e7}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultRowCountBuckets     = []float64{1, 10, 50, 100, 500, 1000, 5000, 20000}
)

// NewAppMetrics registers every instrument against the collector and returns
// the populated struct.  Registering twice against the same collector is safe;
// the collector deduplicates by name.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "In-flight HTTP requests", "method")

	m.ContractUploadsTotal = collector.RegisterCounter("contract_uploads_total", "Contract upload count", "file_type", "status")
	m.ContractUploadBytes = collector.RegisterHistogram("contract_upload_bytes", "Uploaded contract size", DefaultSizeBuckets, "file_type")
	m.ContractStorageLatency = collector.RegisterHistogram("contract_storage_duration_seconds", "Object storage operation latency", DefaultHTTPDurationBuckets, "operation")

	m.ExtractionJobsTotal = collector.RegisterCounter("extraction_jobs_total", "Extraction jobs by terminal status", "provider", "status")
	m.ExtractionJobDuration = collector.RegisterHistogram("extraction_job_duration_seconds", "End-to-end extraction job duration", DefaultJobDurationBuckets, "provider")
	m.ExtractionQueueDepth = collector.RegisterGauge("extraction_queue_depth", "Pending extraction jobs", "topic")
	m.LLMRequestsTotal = collector.RegisterCounter("llm_requests_total", "LLM API calls", "provider", "model", "status")
	m.LLMRequestDuration = collector.RegisterHistogram("llm_request_duration_seconds", "LLM API call duration", DefaultLLMDurationBuckets, "provider", "model")
	m.LLMTokensUsed = collector.RegisterCounter("llm_tokens_total", "LLM tokens used", "provider", "model", "direction")

	m.ImportRunsTotal = collector.RegisterCounter("member_import_runs_total", "Member workbook import runs", "status")
	m.ImportRowsTotal = collector.RegisterCounter("member_import_rows_total", "Rows processed during import", "sheet", "outcome")
	m.ImportRunDuration = collector.RegisterHistogram("member_import_duration_seconds", "Member workbook import duration", DefaultJobDurationBuckets, "status")

	m.SummaryComputeDuration = collector.RegisterHistogram("portfolio_summary_duration_seconds", "Portfolio summary computation duration", DefaultDBDurationBuckets, "trigger")
	m.TreeBuildDuration = collector.RegisterHistogram("gwp_tree_build_duration_seconds", "GWP tree build duration", DefaultDBDurationBuckets, "scope")
	m.TreeFactRows = collector.RegisterHistogram("gwp_tree_fact_rows", "Fact rows per tree build", DefaultRowCountBuckets, "scope")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "repo", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.QueuePublishes = collector.RegisterCounter("mq_publishes_total", "Messages published", "topic", "status")
	m.QueueConsumes = collector.RegisterCounter("mq_consumes_total", "Messages consumed", "topic", "status")

	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Component health (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// RecordHTTPRequest records the standard per-request instruments.
func RecordHTTPRequest(m *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordExtractionJob records one extraction job reaching a terminal status.
func RecordExtractionJob(m *AppMetrics, provider, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ExtractionJobsTotal.WithLabelValues(provider, status).Inc()
	m.ExtractionJobDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordLLMCall records one model API call with token usage.
func RecordLLMCall(m *AppMetrics, provider, model string, success bool, duration time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.LLMRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
}

// RecordDBQuery records query latency and counts the error when present.
func RecordDBQuery(m *AppMetrics, repo, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(repo, operation).Observe(duration.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(repo, "db_query").Inc()
	}
}

// RecordCacheAccess counts a hit or miss for the named cache.
func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}
