package handlers

import (
	"context"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/database"
	"media-curator/internal/indexer"
)

// Catalog is the read side of the asset database.
type Catalog interface {
	ListAssets(ctx context.Context, opts database.ListOptions) (*database.AssetPage, error)
	GetAsset(ctx context.Context, id string) (*asset.Record, error)
	Ping(ctx context.Context) error
}

// Controller accepts indexing commands and reports the current session.
type Controller interface {
	Send(cmd indexer.Command) error
	Status() indexer.Session
}

// EventSource hands out subscriptions to the controller's event stream.
type EventSource interface {
	Subscribe(buffer int) (<-chan indexer.Event, func())
}

type Handlers struct {
	catalog    Catalog
	controller Controller
	events     EventSource
	startTime  time.Time

	// defaultCacheDir fills the cacheDir of start requests that omit it.
	defaultCacheDir string

	// heartbeat is the interval between SSE keepalive comments.
	heartbeat time.Duration
}

func New(catalog Catalog, ctrl Controller, events EventSource) *Handlers {
	return &Handlers{
		catalog:    catalog,
		controller: ctrl,
		events:     events,
		startTime:  time.Now(),
		heartbeat:  15 * time.Second,
	}
}

// SetDefaultCacheDir sets the cache directory used for start requests that
// do not name one. An empty dir disables the fallback.
func (h *Handlers) SetDefaultCacheDir(dir string) {
	h.defaultCacheDir = dir
}
