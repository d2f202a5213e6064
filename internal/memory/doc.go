// Package memory sizes the Go runtime for a container and holds back indexing
// batches under memory pressure.
//
// [ConfigureFromEnv] derives GOMEMLIMIT from the container limit:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes, usually from the Kubernetes
//     Downward API.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap (default 0.85).
//
// A [Monitor] samples heap usage against that limit. Once usage reaches the
// critical watermark it reports [Monitor.Critical] until usage drops below the
// high watermark; the batch processor waits before each batch while that
// holds.
package memory
