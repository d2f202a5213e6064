package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	EventStreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_event_stream_subscribers",
			Help: "Number of connected indexer event stream clients",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_db_rows_affected",
			Help:    "Rows affected by write operations",
			Buckets: []float64{1, 10, 100, 1000, 10000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Indexer metrics
var (
	IndexerSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_indexer_sessions_total",
			Help: "Indexing sessions by terminal outcome",
		},
		[]string{"outcome"}, // "completed", "cancelled", "error"
	)

	IndexerPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_curator_indexer_phase",
			Help: "Current indexer phase (1 for the active phase, 0 otherwise)",
		},
		[]string{"phase"},
	)

	IndexerCandidatesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_indexer_candidates",
			Help: "Candidates found by the scan of the current session",
		},
	)

	IndexerFilesIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_indexer_files_indexed_total",
			Help: "Asset records produced by the indexer",
		},
		[]string{"media_type"},
	)

	IndexerFilesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_indexer_files_dropped_total",
			Help: "Candidates dropped because they could not be stat'ed",
		},
	)

	IndexerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_curator_indexer_batch_duration_seconds",
			Help:    "Time spent processing one batch, excluding the throttle delay",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_indexer_last_run_duration_seconds",
			Help: "Duration of the last finished indexing session in seconds",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_indexer_last_run_timestamp",
			Help: "Unix timestamp of the last finished indexing session",
		},
	)
)

// Scanner and fingerprint metrics
var (
	ScannerDirectoriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_scanner_directories_total",
			Help: "Directories enumerated by the scanner",
		},
	)

	ScannerSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_scanner_skipped_total",
			Help: "Entries skipped by the scanner",
		},
		[]string{"reason"}, // "hidden", "excluded", "unreadable", "ignored"
	)

	ScannerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_curator_scanner_duration_seconds",
			Help:    "Duration of the scan phase",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	FingerprintDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_curator_fingerprint_duration_seconds",
			Help:    "Time to compute a partial content fingerprint",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	FingerprintFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_fingerprint_fallbacks_total",
			Help: "Fingerprints computed from path and size because the content could not be read",
		},
	)
)

// Catalog metrics
var (
	CatalogAssetsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_curator_catalog_assets",
			Help: "Asset records in the catalog",
		},
		[]string{"media_type", "status"},
	)

	CatalogWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_catalog_writes_total",
			Help: "Asset records written to the catalog",
		},
		[]string{"status"}, // "success", "error"
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_operation_errors_total",
			Help: "Filesystem operations that returned an error",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_retry_attempts_total",
			Help: "Retries performed after NFS stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_curator_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_curator_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_curator_memory_pressure",
			Help: "1 while indexing batches are held back by memory pressure",
		},
	)

	MemoryPressureEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_curator_memory_pressure_events_total",
			Help: "Times memory usage crossed the critical watermark",
		},
	)
)

// App info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_curator_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)
