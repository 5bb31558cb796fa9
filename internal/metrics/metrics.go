// Package metrics provides Prometheus metrics for the harvester pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the harvester.
type Metrics struct {
	// Sink metrics
	RowsAppended *prometheus.CounterVec

	// Work unit metrics
	UnitsProcessed prometheus.Counter
	UnitsDropped   prometheus.Counter

	// Blame sub-step metrics
	FilesSkipped prometheus.Counter
	FileErrors   prometheus.Counter

	// Timing metrics
	UnitDuration  prometheus.Histogram
	BlameDuration prometheus.Histogram

	// Pipeline metrics
	BacklogDepth  prometheus.Gauge
	QueueDepth    prometheus.Gauge
	ActiveWorkers prometheus.Gauge
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "git_harvester"
	}

	m := &Metrics{
		RowsAppended: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_appended_total",
				Help:      "Total number of rows appended to the sink",
			},
			[]string{"table"},
		),
		UnitsProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "work_units_processed_total",
				Help:      "Total number of revisions fully analyzed",
			},
		),
		UnitsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "work_units_dropped_total",
				Help:      "Total number of revisions dropped after a workspace failure",
			},
		),
		FilesSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_skipped_total",
				Help:      "Total number of files skipped by the size ceiling",
			},
		),
		FileErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_errors_total",
				Help:      "Total number of per-file hash or blame errors",
			},
		),
		UnitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "work_unit_duration_seconds",
				Help:      "Time to analyze one revision",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
			},
		),
		BlameDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "blame_duration_seconds",
				Help:      "Time to blame one file",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
		),
		BacklogDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backlog_depth",
				Help:      "Current number of pending work units",
			},
		),
		QueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "result_queue_depth",
				Help:      "Total rows waiting in the result channels",
			},
		),
		ActiveWorkers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workers",
				Help:      "Number of extraction workers currently running",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// IncRowsAppended increments the appended-row counter for a table.
func (m *Metrics) IncRowsAppended(table string) {
	m.RowsAppended.WithLabelValues(table).Inc()
}
