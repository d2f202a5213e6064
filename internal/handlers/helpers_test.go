package handlers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/database"
	"media-curator/internal/indexer"
	"media-curator/internal/mediatypes"
)

type fakeController struct {
	mu      sync.Mutex
	sent    []indexer.Command
	sendErr error
	status  indexer.Session
}

func (f *fakeController) Send(cmd indexer.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeController) Status() indexer.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeController) commands() []indexer.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]indexer.Command(nil), f.sent...)
}

// failingCatalog returns err from every call.
type failingCatalog struct {
	err error
}

func (f failingCatalog) ListAssets(context.Context, database.ListOptions) (*database.AssetPage, error) {
	return nil, f.err
}

func (f failingCatalog) GetAsset(context.Context, string) (*asset.Record, error) {
	return nil, f.err
}

func (f failingCatalog) Ping(context.Context) error {
	return f.err
}

var errDatabaseDown = errors.New("database is locked")

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRecord(volume, rel string, kind mediatypes.Kind) asset.Record {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return asset.Record{
		ID:             asset.ID(volume, rel),
		VolumeUUID:     volume,
		RelativePath:   rel,
		FileName:       filepath.Base(rel),
		FileSize:       1024,
		PartialHash:    "hash-" + rel,
		MediaType:      kind,
		CreatedAt:      now,
		ModifiedAt:     now,
		Tags:           []string{},
		ThumbnailPaths: []string{},
		IndexedAt:      now,
		Status:         asset.StatusOnline,
		NeedsThumbnail: true,
		NeedsMetadata:  true,
	}
}

func seed(t *testing.T, db *database.Database, recs ...asset.Record) {
	t.Helper()
	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch: %v", err)
	}
	for i := range recs {
		if err := db.UpsertAsset(tx, &recs[i]); err != nil {
			_ = db.EndBatch(tx, err)
			t.Fatalf("UpsertAsset: %v", err)
		}
	}
	if err := db.EndBatch(tx, nil); err != nil {
		t.Fatalf("EndBatch: %v", err)
	}
}

func newTestHandlers(t *testing.T, catalog Catalog) (*Handlers, *fakeController, *indexer.Hub) {
	t.Helper()
	ctrl := &fakeController{status: indexer.Session{Phase: indexer.PhaseIdle}}
	hub := indexer.NewHub()
	return New(catalog, ctrl, hub), ctrl, hub
}
