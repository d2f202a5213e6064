/*
Package metrics declares the Prometheus metrics exported by the media curator.

Metrics are registered with promauto at package init and grouped by subsystem:

  - HTTP: request counts, latency, in-flight requests, event stream subscribers
  - Database: query counts/latency, transaction duration, rows affected
  - Indexer: sessions by outcome, active phase, files indexed/dropped, batch latency
  - Scanner/fingerprint: directories enumerated, skip reasons, fallback fingerprints
  - Catalog: asset counts by media type and status (refreshed by Collector)
  - Filesystem: per-volume operation latency and NFS retry behaviour

Call InitializeMetrics once at startup so every label combination is exported
from the first scrape. The filesystem package reports through the Observer
returned by NewFilesystemObserver, which avoids an import cycle.
*/
package metrics
