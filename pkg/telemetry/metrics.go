package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the operation tracking core.
type Metrics struct {
	config MetricsConfig

	// Operation lifecycle metrics
	operationsCreated   *prometheus.CounterVec
	operationsStarted   *prometheus.CounterVec
	operationsCompleted *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	activeOperations    prometheus.Gauge

	// Log and restore point metrics
	logEntries    *prometheus.CounterVec
	restorePoints *prometheus.CounterVec

	// Retry metrics
	retriesCreated *prometheus.CounterVec

	// Notification bus metrics
	notificationsDelivered prometheus.Counter
	subscriberPanics       prometheus.Counter

	// HTTP metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		operationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_created_total",
				Help:      "Total number of operations created",
			},
			[]string{"type"},
		),
		operationsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_started_total",
				Help:      "Total number of operations started",
			},
			[]string{"type"},
		),
		operationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_finished_total",
				Help:      "Total number of operations reaching a terminal status",
			},
			[]string{"type", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations from start to terminal status",
				Buckets:   buckets,
			},
			[]string{"type", "status"},
		),
		activeOperations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_operations",
				Help:      "Number of operations currently pending or running",
			},
		),
		logEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_log_entries_total",
				Help:      "Total number of operation log entries appended",
			},
			[]string{"level"},
		),
		restorePoints: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restore_points_total",
				Help:      "Total number of restore points captured",
			},
			[]string{"type"},
		),
		retriesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_created_total",
				Help:      "Total number of retry operations derived from failed ones",
			},
			[]string{"type"},
		),
		notificationsDelivered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_delivered_total",
				Help:      "Total number of snapshot notifications delivered to subscribers",
			},
		),
		subscriberPanics: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriber_panics_total",
				Help:      "Total number of subscriber callbacks that panicked during delivery",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests handled",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP request handling in seconds",
				Buckets:   buckets,
			},
			[]string{"method", "route"},
		),
	}

	collectors := []prometheus.Collector{
		m.operationsCreated,
		m.operationsStarted,
		m.operationsCompleted,
		m.operationDuration,
		m.activeOperations,
		m.logEntries,
		m.restorePoints,
		m.retriesCreated,
		m.notificationsDelivered,
		m.subscriberPanics,
		m.httpRequests,
		m.httpDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordOperationCreated increments the created counter for an operation type.
func (m *Metrics) RecordOperationCreated(opType string) {
	if !m.config.Enabled {
		return
	}
	m.operationsCreated.WithLabelValues(opType).Inc()
	m.activeOperations.Inc()
}

// RecordOperationStarted increments the started counter for an operation type.
func (m *Metrics) RecordOperationStarted(opType string) {
	if !m.config.Enabled {
		return
	}
	m.operationsStarted.WithLabelValues(opType).Inc()
}

// RecordOperationFinished records a terminal transition and its duration.
func (m *Metrics) RecordOperationFinished(opType, status string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}
	m.operationsCompleted.WithLabelValues(opType, status).Inc()
	m.operationDuration.WithLabelValues(opType, status).Observe(duration.Seconds())
	m.activeOperations.Dec()
}

// RecordLogEntry increments the log entry counter for a level.
func (m *Metrics) RecordLogEntry(level string) {
	if !m.config.Enabled {
		return
	}
	m.logEntries.WithLabelValues(level).Inc()
}

// RecordRestorePoint increments the restore point counter for a type.
func (m *Metrics) RecordRestorePoint(rpType string) {
	if !m.config.Enabled {
		return
	}
	m.restorePoints.WithLabelValues(rpType).Inc()
}

// RecordRetryCreated increments the retry counter for the new operation type.
func (m *Metrics) RecordRetryCreated(opType string) {
	if !m.config.Enabled {
		return
	}
	m.retriesCreated.WithLabelValues(opType).Inc()
}

// RecordNotification counts one delivered subscriber notification.
func (m *Metrics) RecordNotification() {
	if !m.config.Enabled {
		return
	}
	m.notificationsDelivered.Inc()
}

// RecordSubscriberPanic counts one recovered subscriber panic.
func (m *Metrics) RecordSubscriberPanic() {
	if !m.config.Enabled {
		return
	}
	m.subscriberPanics.Inc()
}

// RecordHTTPRequest records one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
