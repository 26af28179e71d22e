// Package metrics provides Prometheus metrics for the run density service.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds; analyses run far longer than requests.
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Analysis metrics
	runsSubmitted    prometheus.Counter
	runsDuplicate    prometheus.Counter
	runsCompleted    *prometheus.CounterVec
	runDuration      prometheus.Histogram
	runsStored       prometheus.Gauge
	daysAnalysed     *prometheus.CounterVec
	dayDuration      prometheus.Histogram
	segmentsAnalysed prometheus.Counter
	runnersSimulated prometheus.Counter
	overlapsDetected *prometheus.CounterVec
	segmentPeakZones *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rundensity",
		subsystem:        "engine",
		histogramBuckets: defaultBuckets,
		customLabels:     make(map[string]string),
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
		Buckets: m.histogramBuckets,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.runsSubmitted = m.counter("runs_submitted_total", "Total number of analysis runs accepted")
	m.runsDuplicate = m.counter("runs_duplicate_total", "Total number of submissions answered with an existing run")
	m.runsCompleted = m.counterVec("runs_completed_total", "Total number of analysis runs finished by status", "status")
	m.runDuration = m.histogram("run_duration_milliseconds", "Histogram of whole-run analysis time in milliseconds")
	m.runsStored = m.gauge("runs_stored", "Number of runs currently retained in the run store")
	m.daysAnalysed = m.counterVec("days_analysed_total", "Total number of days analysed by outcome", "outcome")
	m.dayDuration = m.histogram("day_duration_milliseconds", "Histogram of single-day analysis time in milliseconds")
	m.segmentsAnalysed = m.counter("segments_analysed_total", "Total number of segments binned")
	m.runnersSimulated = m.counter("runners_simulated_total", "Total number of runner trajectories evaluated")
	m.overlapsDetected = m.counterVec("overlaps_total", "Declared overlap pairs evaluated, by whether an occurrence was found", "found")
	m.segmentPeakZones = m.counterVec("segment_peak_zone_total", "Segment peaks by congestion zone", "zone")

	m.queueSize = m.gauge("queue_size", "Current size of the job queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the job queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Current queue utilization ratio (0.0 to 1.0)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently analysing a run")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Histogram of worker job latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of jobs that failed")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component and type",
		"component", "error_type")
}

// RecordRunSubmitted increments the accepted runs counter.
func RecordRunSubmitted() {
	globalManager.runsSubmitted.Inc()
}

// RecordRunDuplicate increments the duplicate submissions counter.
func RecordRunDuplicate() {
	globalManager.runsDuplicate.Inc()
}

// RecordRunCompleted records a finished run and its duration.
func RecordRunCompleted(status string, durationMs float64) {
	globalManager.runsCompleted.WithLabelValues(status).Inc()
	globalManager.runDuration.Observe(durationMs)
}

// UpdateRunsStored sets the number of retained runs.
func UpdateRunsStored(count int) {
	globalManager.runsStored.Set(float64(count))
}

// RecordDayAnalysed records one day's outcome and duration.
func RecordDayAnalysed(outcome string, durationMs float64) {
	globalManager.daysAnalysed.WithLabelValues(outcome).Inc()
	globalManager.dayDuration.Observe(durationMs)
}

// RecordSegmentsAnalysed adds to the segments counter.
func RecordSegmentsAnalysed(count int) {
	globalManager.segmentsAnalysed.Add(float64(count))
}

// RecordRunnersSimulated adds to the runner trajectories counter.
func RecordRunnersSimulated(count int) {
	globalManager.runnersSimulated.Add(float64(count))
}

// RecordOverlap counts an evaluated overlap pair.
func RecordOverlap(found bool) {
	globalManager.overlapsDetected.WithLabelValues(strconv.FormatBool(found)).Inc()
}

// RecordSegmentPeakZone counts a segment peak classified into zone.
func RecordSegmentPeakZone(zone string) {
	globalManager.segmentPeakZones.WithLabelValues(zone).Inc()
}

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
	globalManager.workerErrorRate.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
