// Package database is the SQLite asset catalog.
//
// Asset records are keyed by their deterministic id, so re-indexing a volume
// upserts rather than duplicates. A re-index refreshes the filesystem fields
// of a record and leaves user annotations alone. Records that a completed
// session did not see are marked offline rather than deleted.
//
// Writes go through BeginBatch / UpsertAsset / MarkMissing / EndBatch.
// Reads are paginated with ListAssets. The database uses WAL mode for
// concurrent reads during indexing.
package database
