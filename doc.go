// Package main provides the entry point for the media-curator indexing service.
//
// The service hosts one indexing controller. Clients start, pause, resume and
// cancel indexing sessions over HTTP, follow progress on a Server-Sent Events
// stream, and page through the resulting asset catalog.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Sizes GOMEMLIMIT from MEMORY_LIMIT, reads environment
//     variables and validates directories
//  2. Metrics: Registers the filesystem observer and pre-populates label sets
//  3. Media Types: Loads the built-in or MEDIA_TYPES_FILE extension tables
//  4. Database Initialization: Opens the SQLite catalog in WAL mode
//  5. Component Initialization:
//     - Indexing Controller: owns all session state and emits protocol events
//     - Event Hub: fans controller events out to the catalog sink and SSE clients
//     - Catalog Sink: persists completed and cancelled session results
//     - Metrics Collector: refreshes catalog gauges every minute
//     - Memory Monitor: holds indexing batches back under memory pressure
//  6. HTTP Server Setup: Configures routes and middleware, starts the server
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # Graceful Shutdown
//
//  1. Stop the metrics collector
//  2. Cancel the active session and wait for the controller to exit
//  3. Wait for the catalog sink to write the final results
//  4. Shut down the HTTP server (SHUTDOWN_TIMEOUT, default 30s)
//  5. Close the database
//
// # HTTP API
//
//   - POST /api/index/start, /pause, /resume, /cancel, /commands
//   - GET  /api/index/status, /api/index/events
//   - GET  /api/assets, /api/assets/{id}
//   - GET  /health, /healthz, /livez, /readyz, /version, /metrics
//
// See [media-curator/internal/startup] for the environment variables.
package main
