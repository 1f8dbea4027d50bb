// Package metrics provides Prometheus metrics for the tally service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tally service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Core business metrics
	assignmentsCreated *prometheus.CounterVec
	assignmentsDeleted prometheus.Counter
	rejected           *prometheus.CounterVec
	scoreQueryDuration *prometheus.HistogramVec

	// Dataset size
	totalPersons     prometheus.Gauge
	totalActions     *prometheus.GaugeVec
	totalAssignments prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tally",
		subsystem:        "service",
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

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.assignmentsCreated = auto.NewCounterVec(
		m.counterOpts("assignments_created_total", "Assignments created, by item type"),
		[]string{"item_type"},
	)
	m.assignmentsDeleted = auto.NewCounter(
		m.counterOpts("assignments_deleted_total", "Assignments deleted"),
	)
	m.rejected = auto.NewCounterVec(
		m.counterOpts("operations_rejected_total", "Operations that failed, by error kind"),
		[]string{"kind"},
	)
	m.scoreQueryDuration = auto.NewHistogramVec(
		m.histogramOpts("score_query_duration_milliseconds", "Score aggregation latency in milliseconds"),
		[]string{"query"},
	)

	m.totalPersons = auto.NewGauge(m.gaugeOpts("persons", "Number of people"))
	m.totalActions = auto.NewGaugeVec(m.gaugeOpts("actions", "Number of actions, by kind"), []string{"kind"})
	m.totalAssignments = auto.NewGauge(m.gaugeOpts("assignments", "Number of assignments"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use, in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordAssignmentsCreated adds n created assignments of itemType.
func RecordAssignmentsCreated(itemType string, n int) {
	globalManager.assignmentsCreated.WithLabelValues(itemType).Add(float64(n))
}

// RecordAssignmentDeleted increments the deleted assignments counter.
func RecordAssignmentDeleted() {
	globalManager.assignmentsDeleted.Inc()
}

// RecordRejected counts a failed operation by error kind.
func RecordRejected(kind string) {
	globalManager.rejected.WithLabelValues(kind).Inc()
}

// RecordScoreQueryDuration records how long a score query took.
func RecordScoreQueryDuration(query string, durationMs float64) {
	globalManager.scoreQueryDuration.WithLabelValues(query).Observe(durationMs)
}

// UpdateTotalPersons sets the number of people.
func UpdateTotalPersons(count int) {
	globalManager.totalPersons.Set(float64(count))
}

// UpdateTotalActions sets the number of actions of kind.
func UpdateTotalActions(kind string, count int) {
	globalManager.totalActions.WithLabelValues(kind).Set(float64(count))
}

// UpdateTotalAssignments sets the number of assignments.
func UpdateTotalAssignments(count int) {
	globalManager.totalAssignments.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
