// Package metrics provides Prometheus metrics for the asamblea statistics service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the asamblea service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Participation metrics
	interventionsRecorded  *prometheus.CounterVec
	interventionsRemoved   *prometheus.CounterVec
	interventionsDuplicate prometheus.Counter
	attendanceUpdates      *prometheus.CounterVec
	assembliesTotal        prometheus.Gauge
	peopleImported         prometheus.Counter
	importRowsRejected     prometheus.Counter
	exportsTotal           *prometheus.CounterVec

	// Snapshot refresh metrics
	snapshotRefreshDuration prometheus.Histogram
	snapshotRefreshes       prometheus.Counter
	snapshotStale           prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository metrics
	repositoryLatency *prometheus.HistogramVec
	repositoryRecords *prometheus.GaugeVec

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "asamblea",
		subsystem:        "participation",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.interventionsRecorded = auto.NewCounterVec(
		m.counterOpts("interventions_recorded_total", "Interventions recorded by gender and type"),
		[]string{"gender", "type"},
	)
	m.interventionsRemoved = auto.NewCounterVec(
		m.counterOpts("interventions_removed_total", "Interventions removed by gender and type"),
		[]string{"gender", "type"},
	)
	m.interventionsDuplicate = auto.NewCounter(
		m.counterOpts("interventions_duplicate_total", "Increment submissions dropped as retries"),
	)
	m.attendanceUpdates = auto.NewCounterVec(
		m.counterOpts("attendance_updates_total", "Attendance upserts and deletions"),
		[]string{"action"},
	)
	m.assembliesTotal = auto.NewGauge(
		m.gaugeOpts("assemblies_total", "Number of assemblies known to the store"),
	)
	m.peopleImported = auto.NewCounter(
		m.counterOpts("people_imported_total", "People created or updated from CSV imports"),
	)
	m.importRowsRejected = auto.NewCounter(
		m.counterOpts("import_rows_rejected_total", "CSV import rows rejected as invalid"),
	)
	m.exportsTotal = auto.NewCounterVec(
		m.counterOpts("exports_total", "Reports and exports generated by kind"),
		[]string{"kind"},
	)

	m.snapshotRefreshDuration = auto.NewHistogram(
		m.histogramOpts("snapshot_refresh_duration_milliseconds", "Time to refetch an assembly snapshot"),
	)
	m.snapshotRefreshes = auto.NewCounter(
		m.counterOpts("snapshot_refreshes_total", "Snapshot refetches applied to the cache"),
	)
	m.snapshotStale = auto.NewCounter(
		m.counterOpts("snapshot_stale_total", "Snapshot refetches discarded because a newer one landed first"),
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryLatency = auto.NewHistogramVec(
		m.histogramOpts("repository_latency_milliseconds", "Store operation latency in milliseconds"),
		[]string{"store", "operation"},
	)
	m.repositoryRecords = auto.NewGaugeVec(
		m.gaugeOpts("repository_records", "Records held by the store by kind"),
		[]string{"store", "kind"},
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Commands waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Command queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_percent", "Command queue fill level"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Commands enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Commands dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Commands rejected by a full or closed queue"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time from enqueue to apply"),
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured command workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently applying a command"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time to apply one command"),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Commands that failed to apply"))

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds"),
	)
}

// Participation Metrics Functions.

// RecordInterventionRecorded counts one recorded intervention.
func RecordInterventionRecorded(gender, typ string) {
	globalManager.interventionsRecorded.WithLabelValues(gender, typ).Inc()
}

// RecordInterventionRemoved counts one removed intervention.
func RecordInterventionRemoved(gender, typ string) {
	globalManager.interventionsRemoved.WithLabelValues(gender, typ).Inc()
}

// RecordInterventionDuplicate counts a retried increment that was dropped.
func RecordInterventionDuplicate() {
	globalManager.interventionsDuplicate.Inc()
}

// RecordAttendanceUpdate counts an attendance change; action is "upsert" or "delete".
func RecordAttendanceUpdate(action string) {
	globalManager.attendanceUpdates.WithLabelValues(action).Inc()
}

// UpdateAssembliesTotal sets the number of assemblies.
func UpdateAssembliesTotal(count int) {
	globalManager.assembliesTotal.Set(float64(count))
}

// RecordPeopleImported adds to the imported people counter.
func RecordPeopleImported(n int) {
	globalManager.peopleImported.Add(float64(n))
}

// RecordImportRowsRejected adds to the rejected import rows counter.
func RecordImportRowsRejected(n int) {
	globalManager.importRowsRejected.Add(float64(n))
}

// RecordExport counts a generated report or export.
func RecordExport(kind string) {
	globalManager.exportsTotal.WithLabelValues(kind).Inc()
}

// Snapshot Metrics Functions.

// RecordSnapshotRefreshDuration records how long a refetch took.
func RecordSnapshotRefreshDuration(ms float64) {
	globalManager.snapshotRefreshDuration.Observe(ms)
}

// RecordSnapshotRefresh counts an applied refetch.
func RecordSnapshotRefresh() {
	globalManager.snapshotRefreshes.Inc()
}

// RecordSnapshotStale counts a refetch discarded as stale.
func RecordSnapshotStale() {
	globalManager.snapshotStale.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// RecordRepositoryLatency records the latency of one store operation.
func RecordRepositoryLatency(store, operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(store, operation).Observe(latencyMs)
}

// UpdateRepositoryRecords sets how many records of kind a store holds.
func UpdateRepositoryRecords(store, kind string, count int) {
	globalManager.repositoryRecords.WithLabelValues(store, kind).Set(float64(count))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization percentage.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records time spent waiting in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
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
