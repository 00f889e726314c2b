// Package observability registers the service's Prometheus metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rowsImportedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_dashboard",
		Subsystem: "ingest",
		Name:      "rows_imported_total",
		Help:      "Rows committed to the primary store across all imports.",
	})
	rowsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_dashboard",
		Subsystem: "ingest",
		Name:      "rows_skipped_total",
		Help:      "Rows dropped for missing required fields.",
	})
	rowsInvalidTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_dashboard",
		Subsystem: "ingest",
		Name:      "row_diagnostics_total",
		Help:      "Per-row diagnostics collected during imports.",
	})
	importDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activity_dashboard",
		Subsystem: "ingest",
		Name:      "import_duration_seconds",
		Help:      "Wall time of a full ingestion run.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	lastImportGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activity_dashboard",
		Subsystem: "ingest",
		Name:      "last_import_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed import.",
	})
	indexSyncErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_dashboard",
		Subsystem: "index",
		Name:      "sync_errors_total",
		Help:      "Failed upsert/remove calls against the search index.",
	})
	indexQueryErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activity_dashboard",
		Subsystem: "index",
		Name:      "query_errors_total",
		Help:      "Failed select/facet calls against the search index.",
	})
)

func init() {
	prometheus.MustRegister(
		rowsImportedTotal,
		rowsSkippedTotal,
		rowsInvalidTotal,
		importDurationSeconds,
		lastImportGauge,
		indexSyncErrorsTotal,
		indexQueryErrorsTotal,
	)
}

// RecordImport updates the ingest counters after a completed run.
func RecordImport(imported, skipped, invalid int, elapsed time.Duration) {
	rowsImportedTotal.Add(float64(imported))
	rowsSkippedTotal.Add(float64(skipped))
	rowsInvalidTotal.Add(float64(invalid))
	importDurationSeconds.Observe(elapsed.Seconds())
	lastImportGauge.Set(float64(time.Now().Unix()))
}

// RecordIndexSyncError counts a failed index upsert or remove.
func RecordIndexSyncError() {
	indexSyncErrorsTotal.Inc()
}

// RecordIndexQueryError counts a failed index read.
func RecordIndexQueryError() {
	indexQueryErrorsTotal.Inc()
}
