// Package catalog persists the results of indexing sessions.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/database"
	"media-curator/internal/indexer"
	"media-curator/internal/logging"
	"media-curator/internal/metrics"
)

// DefaultWriteBatchSize is the number of records upserted per transaction.
const DefaultWriteBatchSize = 500

// Store is the subset of the catalog database used by Sink.
type Store interface {
	BeginBatch() (*sql.Tx, error)
	EndBatch(tx *sql.Tx, err error) error
	UpsertAsset(tx *sql.Tx, rec *asset.Record) error
	MarkMissing(tx *sql.Tx, volumeUUID, pathPrefix string, cutoff time.Time) (int64, error)
	GetMetadata(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error
	SetLastIndexRun(ctx context.Context, t time.Time) error
}

// Sink writes terminal session events into a Store.
//
// A Completed event upserts every record and marks records of the scanned
// subtree that were not seen as offline. A Cancelled event upserts the
// partial results only; nothing is marked offline because the walk was
// incomplete.
type Sink struct {
	store     Store
	batchSize int
	now       func() time.Time
}

// New creates a Sink writing to store.
func New(store Store) *Sink {
	return &Sink{
		store:     store,
		batchSize: DefaultWriteBatchSize,
		now:       time.Now,
	}
}

// Run handles events until the channel is closed or ctx is done.
func (s *Sink) Run(ctx context.Context, events <-chan indexer.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.Handle(ctx, ev); err != nil {
				logging.Error("Failed to store %s session results: %v", ev.Type(), err)
			}
		}
	}
}

// Handle stores the results carried by ev. Non-terminal events are ignored.
func (s *Sink) Handle(ctx context.Context, ev indexer.Event) error {
	switch ev := ev.(type) {
	case indexer.Completed:
		return s.write(ctx, ev.Results, ev.Run, true)
	case indexer.Cancelled:
		if len(ev.Results) == 0 {
			return nil
		}
		return s.write(ctx, ev.Results, ev.Run, false)
	default:
		return nil
	}
}

func (s *Sink) write(ctx context.Context, records []asset.Record, run indexer.RunInfo, complete bool) (err error) {
	start := s.now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.CatalogWritesTotal.WithLabelValues(status).Inc()
	}()

	cutoff := time.Now()

	for i := 0; i < len(records); i += s.batchSize {
		end := min(i+s.batchSize, len(records))
		if err := s.upsertBatch(records[i:end]); err != nil {
			return fmt.Errorf("upserting records %d-%d: %w", i, end, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if complete && run.VolumeUUID != "" {
		prefix := ""
		if run.DirPath != "" {
			prefix = asset.RelativePath(run.MountPoint, run.DirPath)
		}
		offline, err := s.markMissing(run.VolumeUUID, prefix, cutoff)
		if err != nil {
			return fmt.Errorf("marking missing records: %w", err)
		}
		if offline > 0 {
			logging.Info("Marked %d records offline on volume %s", offline, run.VolumeUUID)
		}
		s.storeDigest(ctx, run)
	}

	if err := s.store.SetLastIndexRun(ctx, s.now()); err != nil {
		return fmt.Errorf("storing last index run: %w", err)
	}

	logging.Info("Stored %d records from session %s in %v (complete: %v)",
		len(records), run.ID, s.now().Sub(start), complete)
	return nil
}

func (s *Sink) upsertBatch(records []asset.Record) error {
	tx, err := s.store.BeginBatch()
	if err != nil {
		return err
	}
	for i := range records {
		if err := s.store.UpsertAsset(tx, &records[i]); err != nil {
			return s.store.EndBatch(tx, fmt.Errorf("%s: %w", records[i].RelativePath, err))
		}
	}
	return s.store.EndBatch(tx, nil)
}

func (s *Sink) markMissing(volumeUUID, prefix string, cutoff time.Time) (int64, error) {
	tx, err := s.store.BeginBatch()
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkMissing(tx, volumeUUID, prefix, cutoff)
	return n, s.store.EndBatch(tx, err)
}

// storeDigest records the scan digest and logs whether the tree changed since
// the previous completed session.
func (s *Sink) storeDigest(ctx context.Context, run indexer.RunInfo) {
	if run.ScanDigest == "" {
		return
	}
	key := database.ScanDigestKey(run.VolumeUUID, run.DirPath)

	previous, err := s.store.GetMetadata(ctx, key)
	switch {
	case errors.Is(err, database.ErrNotFound):
		logging.Debug("First completed session for %s", run.DirPath)
	case err != nil:
		logging.Warn("Failed to read previous scan digest: %v", err)
	case previous == run.ScanDigest:
		logging.Info("No files added or removed under %s since the previous session", run.DirPath)
	default:
		logging.Info("File set under %s changed since the previous session", run.DirPath)
	}

	if err := s.store.SetMetadata(ctx, key, run.ScanDigest); err != nil {
		logging.Warn("Failed to store scan digest: %v", err)
	}
}
