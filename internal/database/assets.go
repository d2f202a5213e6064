package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"
	"media-curator/internal/metrics"
)

const assetColumns = `id, volume_uuid, relative_path, file_name, file_size, partial_hash, media_type,
	created_at, modified_at, rating, flagged, rejected, tags, notes, color_label,
	thumbnail_paths, waveform_path, proxy_path, full_res_preview_path,
	indexed_at, status, needs_thumbnail, needs_metadata`

// UpsertAsset inserts rec or refreshes the filesystem fields of an existing
// record with the same id. Annotations (rating, flags, tags, notes, color
// label) and cache artifacts made by downstream consumers are kept. When the
// partial hash changes the record is flagged for new thumbnails and metadata.
// The record is marked online and seen now.
func (d *Database) UpsertAsset(tx *sql.Tx, rec *asset.Record) error {
	tags, err := json.Marshal(nonNil(rec.Tags))
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}
	thumbs, err := json.Marshal(nonNil(rec.ThumbnailPaths))
	if err != nil {
		return fmt.Errorf("encoding thumbnail paths: %w", err)
	}

	query := `
	INSERT INTO assets (` + assetColumns + `, seen_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		volume_uuid = excluded.volume_uuid,
		relative_path = excluded.relative_path,
		file_name = excluded.file_name,
		file_size = excluded.file_size,
		media_type = excluded.media_type,
		created_at = excluded.created_at,
		modified_at = excluded.modified_at,
		indexed_at = excluded.indexed_at,
		status = 'online',
		seen_at = excluded.seen_at,
		needs_thumbnail = CASE
			WHEN assets.partial_hash != excluded.partial_hash THEN 1
			ELSE assets.needs_thumbnail
		END,
		needs_metadata = CASE
			WHEN assets.partial_hash != excluded.partial_hash THEN 1
			ELSE assets.needs_metadata
		END,
		partial_hash = excluded.partial_hash
	`

	// The transaction controls the operation's lifecycle.
	result, err := tx.ExecContext(context.Background(), query,
		rec.ID,
		rec.VolumeUUID,
		rec.RelativePath,
		rec.FileName,
		rec.FileSize,
		rec.PartialHash,
		string(rec.MediaType),
		rec.CreatedAt.UnixNano(),
		rec.ModifiedAt.UnixNano(),
		rec.Rating,
		rec.Flagged,
		rec.Rejected,
		string(tags),
		rec.Notes,
		rec.ColorLabel,
		string(thumbs),
		rec.WaveformPath,
		rec.ProxyPath,
		rec.FullResPreviewPath,
		rec.IndexedAt.UnixNano(),
		string(rec.Status),
		rec.NeedsThumbnail,
		rec.NeedsMetadata,
		time.Now().UnixNano(),
	)
	if err == nil {
		if rows, _ := result.RowsAffected(); rows > 0 {
			metrics.DBRowsAffected.WithLabelValues("upsert_asset").Observe(float64(rows))
		}
	}
	return err
}

// MarkMissing sets status offline for online records of volumeUUID that were
// last seen before cutoff. When pathPrefix is non-empty only records at or
// below that relative path are considered. Must be called within a
// transaction.
func (d *Database) MarkMissing(tx *sql.Tx, volumeUUID, pathPrefix string, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("mark_missing", start, err) }()

	pathPrefix = strings.Trim(pathPrefix, "/")
	if pathPrefix == "." {
		pathPrefix = ""
	}

	var result sql.Result
	result, err = tx.ExecContext(context.Background(), `
		UPDATE assets SET status = 'offline'
		WHERE volume_uuid = ?
		  AND status = 'online'
		  AND seen_at < ?
		  AND (? = '' OR relative_path = ? OR substr(relative_path, 1, length(?) + 1) = ? || '/')
	`, volumeUUID, cutoff.UnixNano(), pathPrefix, pathPrefix, pathPrefix, pathPrefix)
	if err != nil {
		return 0, err
	}

	var rows int64
	rows, err = result.RowsAffected()
	if err == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("mark_missing").Observe(float64(rows))
	}
	return rows, err
}

// GetAsset returns the record with the given id, or ErrNotFound.
func (d *Database) GetAsset(ctx context.Context, id string) (*asset.Record, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)

	var rec asset.Record
	rec, err = scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountAssets returns the number of records matching the filters of opts.
// Paging and sorting fields are ignored.
func (d *Database) CountAssets(ctx context.Context, opts ListOptions) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_assets", start, err) }()

	where, args := opts.where()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err = d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`+where, args...).Scan(&n)
	return n, err
}

// ListAssets returns one page of records matching opts.
func (d *Database) ListAssets(ctx context.Context, opts ListOptions) (*AssetPage, error) {
	opts.normalize()

	total, err := d.CountAssets(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	start := time.Now()
	defer func() { recordQuery("list_assets", start, err) }()

	sortColumn := "file_name COLLATE NOCASE"
	switch opts.SortBy {
	case SortByModified:
		sortColumn = "modified_at"
	case SortBySize:
		sortColumn = "file_size"
	case SortByIndexed:
		sortColumn = "indexed_at"
	}

	sortDir := "ASC"
	if opts.SortOrder == SortDesc {
		sortDir = "DESC"
	}

	totalPages := int(math.Ceil(float64(total) / float64(opts.PageSize)))
	if totalPages < 1 {
		totalPages = 1
	}
	offset := (opts.Page - 1) * opts.PageSize

	where, args := opts.where()
	query := `SELECT ` + assetColumns + ` FROM assets` + where +
		fmt.Sprintf(` ORDER BY %s %s, id ASC LIMIT ? OFFSET ?`, sortColumn, sortDir)
	args = append(args, opts.PageSize, offset)

	d.mu.RLock()
	defer d.mu.RUnlock()

	qctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(qctx, query, args...)
	if err != nil {
		logging.Error("ListAssets select query failed: %v", err)
		return nil, fmt.Errorf("select query failed: %w", err)
	}
	defer rows.Close()

	items := make([]asset.Record, 0, opts.PageSize)
	for rows.Next() {
		var rec asset.Record
		rec, err = scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		items = append(items, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &AssetPage{
		Items:      items,
		TotalItems: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: totalPages,
	}, nil
}

// CatalogStats counts records by media type and status.
func (d *Database) CatalogStats() (metrics.CatalogStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT media_type, status, COUNT(*) FROM assets GROUP BY media_type, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := metrics.CatalogStats{}
	for rows.Next() {
		var mediaType, status string
		var n int
		if err := rows.Scan(&mediaType, &status, &n); err != nil {
			return nil, err
		}
		if stats[mediaType] == nil {
			stats[mediaType] = map[string]int{}
		}
		stats[mediaType][status] = n
	}
	return stats, rows.Err()
}

func (o ListOptions) where() (string, []any) {
	var clauses []string
	var args []any
	if o.MediaType != "" {
		clauses = append(clauses, "media_type = ?")
		args = append(args, o.MediaType)
	}
	if o.VolumeUUID != "" {
		clauses = append(clauses, "volume_uuid = ?")
		args = append(args, o.VolumeUUID)
	}
	if o.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, o.Status)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (asset.Record, error) {
	var (
		rec                          asset.Record
		mediaType, status            string
		createdAt, modified, indexed int64
		tags, thumbs                 string
		colorLabel, waveform, proxy  sql.NullString
		fullRes                      sql.NullString
	)

	err := row.Scan(
		&rec.ID, &rec.VolumeUUID, &rec.RelativePath, &rec.FileName, &rec.FileSize,
		&rec.PartialHash, &mediaType, &createdAt, &modified,
		&rec.Rating, &rec.Flagged, &rec.Rejected, &tags, &rec.Notes, &colorLabel,
		&thumbs, &waveform, &proxy, &fullRes,
		&indexed, &status, &rec.NeedsThumbnail, &rec.NeedsMetadata,
	)
	if err != nil {
		return asset.Record{}, err
	}

	rec.MediaType = mediatypes.Kind(mediaType)
	rec.Status = asset.Status(status)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	rec.ModifiedAt = time.Unix(0, modified).UTC()
	rec.IndexedAt = time.Unix(0, indexed).UTC()
	rec.ColorLabel = nullable(colorLabel)
	rec.WaveformPath = nullable(waveform)
	rec.ProxyPath = nullable(proxy)
	rec.FullResPreviewPath = nullable(fullRes)

	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return asset.Record{}, fmt.Errorf("decoding tags of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(thumbs), &rec.ThumbnailPaths); err != nil {
		return asset.Record{}, fmt.Errorf("decoding thumbnail paths of %s: %w", rec.ID, err)
	}
	rec.Tags = nonNil(rec.Tags)
	rec.ThumbnailPaths = nonNil(rec.ThumbnailPaths)
	return rec, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
