package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Chunker metrics
	ChunksProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_chunks_produced_total",
			Help: "Total number of chunks produced, by entity kind",
		},
		[]string{"entity"},
	)

	// Throttler metrics
	ThrottlerInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cdf_throttler_in_flight",
			Help: "Number of tasks currently in flight in a task throttler",
		},
		[]string{"throttler"},
	)

	ThrottlerWindowStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_throttler_window_starts_total",
			Help: "Total number of task starts admitted by a task throttler's window budget",
		},
		[]string{"throttler"},
	)

	// Sanitizer metrics
	SanitizerItemsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_sanitizer_items_dropped_total",
			Help: "Total number of items dropped by sanitation or dedup, by entity and reason",
		},
		[]string{"entity", "reason"},
	)

	// Classifier/cleaner metrics
	ClassifiedErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_classified_errors_total",
			Help: "Total number of classified CogniteErrors, by type and resource",
		},
		[]string{"type", "resource"},
	)

	CleanerIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cdf_cleaner_iterations",
			Help:    "Number of clean/retry iterations a batch needed before success or exhaustion",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	CleanerItemsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_cleaner_items_skipped_total",
			Help: "Total number of items moved to CogniteError.Skipped by the cleaner, by resource",
		},
		[]string{"resource"},
	)

	// Write façade operation metrics
	FacadeOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cdf_facade_operation_duration_seconds",
			Help:    "Duration of a write façade operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	FacadeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_facade_operations_total",
			Help: "Total number of write façade operations, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Upload queue metrics
	QueueBufferedItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cdf_queue_buffered_items",
			Help: "Number of items currently buffered in an upload queue's in-memory pending list",
		},
		[]string{"queue"},
	)

	QueueBufferFileBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cdf_queue_buffer_file_bytes",
			Help: "Size in bytes of an upload queue's on-disk overflow buffer file",
		},
		[]string{"queue"},
	)

	QueueFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cdf_queue_flushes_total",
			Help: "Total number of upload queue flushes, by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	// Failover coordinator metrics
	CoordinatorActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cdf_coordinator_active",
			Help: "Whether this replica currently believes it is the active extractor (1) or a standby (0)",
		},
	)

	CoordinatorStepDowns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cdf_coordinator_step_downs_total",
			Help: "Total number of times this replica stepped down after detecting multiple active extractors",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChunksProduced,
		ThrottlerInFlight,
		ThrottlerWindowStarts,
		SanitizerItemsDropped,
		ClassifiedErrorsTotal,
		CleanerIterations,
		CleanerItemsSkipped,
		FacadeOperationDuration,
		FacadeOperationsTotal,
		QueueBufferedItems,
		QueueBufferFileBytes,
		QueueFlushesTotal,
		CoordinatorActive,
		CoordinatorStepDowns,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
