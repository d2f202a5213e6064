/*
Package filesystem wraps the filesystem calls the indexer makes (stat, open,
readdir) with retry logic for NFS stale file handle errors.

Removable and network volumes are the common case for a media library, and an
ESTALE from a briefly disconnected share would otherwise drop a whole subtree
from a scan. Only ESTALE (errno 116) is retried, with exponential backoff
capped at MaxBackoff; every other error is returned on the first attempt so
permission errors and vanished files stay cheap.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())

# Metrics

Operations report through an Observer installed with SetObserver; the metrics
package provides the Prometheus implementation. Paths are labelled with a volume
name via VolumeResolver (longest-prefix match) to keep label cardinality low.
*/
package filesystem
