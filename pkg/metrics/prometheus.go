// Package metrics provides Prometheus metrics for the devrank service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every devrank collector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring engine
	scoresComputed    *prometheus.CounterVec
	scoringLatency    prometheus.Histogram
	invalidInputs     *prometheus.CounterVec
	degenerateMedians *prometheus.CounterVec

	// Evaluation pipeline
	evaluationsProcessed prometheus.Counter
	evaluationsDuplicate prometheus.Counter
	evaluationErrors     *prometheus.CounterVec

	// GitHub collector
	githubRequests       *prometheus.CounterVec
	githubRequestLatency prometheus.Histogram
	githubRetries        prometheus.Counter
	githubRateLimited    prometheus.Counter
	collectorCache       *prometheus.CounterVec

	// Store
	storeSaves         prometheus.Counter
	storeErrors        prometheus.Counter
	storeRecords       prometheus.Gauge
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Notifications
	notificationsPublished prometheus.Counter
	notificationErrors     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // exposed via GetRegistry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "devrank",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.scoresComputed = m.counterVec("scores_computed_total", "Scores computed by mode and grade", "mode", "grade")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Engine computation latency in milliseconds", m.histogramBuckets)
	m.invalidInputs = m.counterVec("invalid_inputs_total", "Scoring requests rejected by field", "field")
	m.degenerateMedians = m.counterVec("degenerate_medians_total", "Medians <= 0 replaced by 1, by metric", "metric")

	m.evaluationsProcessed = m.counter("evaluations_processed_total", "Evaluations that produced a stored score")
	m.evaluationsDuplicate = m.counter("evaluations_duplicate_total", "Evaluation submissions rejected as duplicates")
	m.evaluationErrors = m.counterVec("evaluation_errors_total", "Evaluation failures by pipeline stage", "stage")

	m.githubRequests = m.counterVec("github_requests_total", "GitHub API requests by status class", "status")
	m.githubRequestLatency = m.histogram("github_request_latency_milliseconds", "GitHub API request latency in milliseconds", m.histogramBuckets)
	m.githubRetries = m.counter("github_retries_total", "GitHub API attempts that were retried")
	m.githubRateLimited = m.counter("github_rate_limited_total", "GitHub API responses signalling an exhausted rate limit")
	m.collectorCache = m.counterVec("collector_cache_total", "Collector profile cache lookups by result", "result")

	m.storeSaves = m.counter("store_saves_total", "Score records written")
	m.storeErrors = m.counter("store_errors_total", "Store write failures")
	m.storeRecords = m.gauge("store_records", "Developers tracked by the store")
	m.storeUpdateLatency = m.histogram("store_update_latency_milliseconds", "Store write latency in milliseconds", m.histogramBuckets)
	m.storeQueryLatency = m.histogram("store_query_latency_milliseconds", "Store read latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current evaluation queue backlog")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum evaluation queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Enqueue latency in milliseconds", m.histogramBuckets)

	m.workerCount = m.gauge("worker_count", "Evaluation workers running")
	m.workerMessagesPerSecond = m.gauge("worker_messages_per_second", "Jobs completed per second across the pool")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "End-to-end job latency in milliseconds",
		[]float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000})
	m.workerErrorRate = m.counter("worker_errors_total", "Jobs that failed in a worker")

	m.notificationsPublished = m.counter("notifications_published_total", "Score events published")
	m.notificationErrors = m.counter("notification_errors_total", "Score events that failed to publish")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that resulted in errors", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Scoring.

// RecordScoreComputed counts a produced score.
func RecordScoreComputed(mode, grade string) {
	globalManager.scoresComputed.WithLabelValues(mode, grade).Inc()
}

// RecordScoringLatency records engine latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordInvalidInput counts a rejected metric field.
func RecordInvalidInput(field string) {
	globalManager.invalidInputs.WithLabelValues(field).Inc()
}

// RecordDegenerateMedian counts a median replaced by 1.
func RecordDegenerateMedian(metric string) {
	globalManager.degenerateMedians.WithLabelValues(metric).Inc()
}

// Evaluations.

// RecordEvaluationProcessed increments the completed evaluations counter.
func RecordEvaluationProcessed() {
	globalManager.evaluationsProcessed.Inc()
}

// RecordEvaluationDuplicate increments the duplicate submissions counter.
func RecordEvaluationDuplicate() {
	globalManager.evaluationsDuplicate.Inc()
}

// RecordEvaluationError counts a failure at the given pipeline stage.
func RecordEvaluationError(stage string) {
	globalManager.evaluationErrors.WithLabelValues(stage).Inc()
}

// GitHub.

// RecordGitHubRequest counts a GitHub request by status class ("2xx", "4xx", "error", ...).
func RecordGitHubRequest(status string, latencyMs float64) {
	globalManager.githubRequests.WithLabelValues(status).Inc()
	globalManager.githubRequestLatency.Observe(latencyMs)
}

// RecordGitHubRetry counts a retried attempt.
func RecordGitHubRetry() {
	globalManager.githubRetries.Inc()
}

// RecordGitHubRateLimited counts a rate-limit response.
func RecordGitHubRateLimited() {
	globalManager.githubRateLimited.Inc()
}

// RecordCollectorCache counts a cache lookup; result is "hit" or "miss".
func RecordCollectorCache(result string) {
	globalManager.collectorCache.WithLabelValues(result).Inc()
}

// Store.

// RecordStoreSave counts a written record.
func RecordStoreSave() {
	globalManager.storeSaves.Inc()
}

// RecordStoreError counts a failed write.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// UpdateStoreRecords sets the number of tracked developers.
func UpdateStoreRecords(count int) {
	globalManager.storeRecords.Set(float64(count))
}

// RecordStoreUpdateLatency records store write latency.
func RecordStoreUpdateLatency(latencyMs float64) {
	globalManager.storeUpdateLatency.Observe(latencyMs)
}

// RecordStoreQueryLatency records store read latency.
func RecordStoreQueryLatency(latencyMs float64) {
	globalManager.storeQueryLatency.Observe(latencyMs)
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond sets the pool throughput.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records end-to-end job latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Notifications.

// RecordNotificationPublished counts a published score event.
func RecordNotificationPublished() {
	globalManager.notificationsPublished.Inc()
}

// RecordNotificationError counts a failed publish.
func RecordNotificationError() {
	globalManager.notificationErrors.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
