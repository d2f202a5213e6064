package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Metadata keys written by the catalog sink.
const (
	MetaLastIndexRun = "last_index_run"
	MetaScanDigest   = "scan_digest"
)

// GetMetadata retrieves a metadata value by key. It returns ErrNotFound if
// the key has never been set.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_metadata", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value sql.NullString
	err = d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value.String, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetLastIndexRun returns when the catalog last stored a finished session.
// Returns zero time if it never has.
func (d *Database) GetLastIndexRun(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, MetaLastIndexRun)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastIndexRun stores the time of the last stored session.
func (d *Database) SetLastIndexRun(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return d.SetMetadata(ctx, MetaLastIndexRun, "")
	}
	return d.SetMetadata(ctx, MetaLastIndexRun, t.UTC().Format(time.RFC3339))
}

// ScanDigestKey returns the metadata key holding the scan digest of a
// scanned directory on a volume.
func ScanDigestKey(volumeUUID, dirPath string) string {
	return MetaScanDigest + ":" + volumeUUID + ":" + dirPath
}
