// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// Invalid values are logged and replaced by their defaults.
//
//   - LISTEN_PORT: HTTP server port (default: 8080)
//   - MEDIA_ROOT: Where media volumes are mounted; labels filesystem metrics (default: /media)
//   - DATABASE_DIR: Directory holding catalog.db (default: /database)
//   - CACHE_DIR: Default cache directory for start commands (default: /cache)
//   - MEDIA_TYPES_FILE: Optional YAML file replacing the built-in extension tables
//   - INDEX_EXCLUDE: Comma separated doublestar globs, relative to the scanned directory
//   - INDEX_BATCH_SIZE: Candidates per batch (default: 5)
//   - INDEX_BATCH_DELAY: Delay between batches as Go duration (default: 50ms)
//   - INDEX_PAUSE_POLL: Paused-state poll interval as Go duration (default: 500ms)
//   - INDEX_WORKERS: In-batch concurrency (default: 2 per CPU, at most 16)
//   - METRICS_ENABLED: Expose /metrics (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - SHUTDOWN_TIMEOUT: Graceful shutdown budget as Go duration (default: 30s)
//   - MEMORY_LIMIT, MEMORY_RATIO: Container memory sizing, applied by the memory package
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
package startup
