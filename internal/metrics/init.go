package metrics

// Phases mirrors the indexer phase names so the phase gauge can be
// pre-populated without importing the indexer package.
var Phases = []string{"idle", "scanning", "indexing", "paused", "completed", "cancelled", "error"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, phase := range Phases {
		IndexerPhase.WithLabelValues(phase)
	}
	IndexerPhase.WithLabelValues("idle").Set(1)

	for _, outcome := range []string{"completed", "cancelled", "error"} {
		IndexerSessionsTotal.WithLabelValues(outcome)
	}

	for _, mt := range []string{"photo", "video"} {
		IndexerFilesIndexed.WithLabelValues(mt)
		for _, status := range []string{"online", "offline"} {
			CatalogAssetsTotal.WithLabelValues(mt, status)
		}
	}

	for _, reason := range []string{"hidden", "excluded", "unreadable", "ignored"} {
		ScannerSkippedTotal.WithLabelValues(reason)
	}

	for _, status := range []string{"success", "error"} {
		CatalogWritesTotal.WithLabelValues(status)
	}

	volumes := []string{"media", "cache", "database", "unknown"}
	fsOps := []string{"stat", "read", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "upsert_asset", "mark_missing",
		"list_assets", "get_asset", "count_assets", "get_metadata", "set_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}
}

// SetPhase marks phase as the single active indexer phase.
func SetPhase(phase string) {
	for _, p := range Phases {
		if p == phase {
			IndexerPhase.WithLabelValues(p).Set(1)
		} else {
			IndexerPhase.WithLabelValues(p).Set(0)
		}
	}
}
