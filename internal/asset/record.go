// Package asset defines the Asset Record emitted by the indexer and the
// derivation of its stable identifier.
package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-curator/internal/mediatypes"
)

// IDLength is the number of hex characters kept from the identifier digest.
const IDLength = 36

// Status is the lifecycle state of a record in the catalog.
type Status string

const (
	// StatusOnline marks a record whose file was seen by the last run.
	StatusOnline Status = "online"
	// StatusOffline marks a record whose file was missing from a later completed run.
	StatusOffline Status = "offline"
)

// Volume identifies the volume a scan runs against.
type Volume struct {
	UUID       string
	MountPoint string
}

// Record is the unit of indexer output. The JSON shape is consumed by the
// catalog and the UI as-is.
type Record struct {
	ID           string          `json:"id"`
	VolumeUUID   string          `json:"volumeUuid"`
	RelativePath string          `json:"relativePath"`
	FileName     string          `json:"fileName"`
	FileSize     int64           `json:"fileSize"`
	PartialHash  string          `json:"partialHash"`
	MediaType    mediatypes.Kind `json:"mediaType"`
	CreatedAt    time.Time       `json:"createdAt"`
	ModifiedAt   time.Time       `json:"modifiedAt"`

	Rating     int      `json:"rating"`
	Flagged    bool     `json:"flagged"`
	Rejected   bool     `json:"rejected"`
	Tags       []string `json:"tags"`
	Notes      string   `json:"notes"`
	ColorLabel *string  `json:"colorLabel"`

	ThumbnailPaths     []string `json:"thumbnailPaths"`
	WaveformPath       *string  `json:"waveformPath"`
	ProxyPath          *string  `json:"proxyPath"`
	FullResPreviewPath *string  `json:"fullResPreviewPath"`

	IndexedAt      time.Time `json:"indexedAt"`
	Status         Status    `json:"status"`
	NeedsThumbnail bool      `json:"needsThumbnail"`
	NeedsMetadata  bool      `json:"needsMetadata"`
}

// ID derives the record identifier from the volume and the path relative to
// the volume root. It is the first IDLength hex characters of
// sha256(volumeUUID + ":" + relativePath).
func ID(volumeUUID, relativePath string) string {
	sum := sha256.Sum256([]byte(volumeUUID + ":" + relativePath))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// RelativePath returns path relative to mountPoint using forward slashes.
// Paths that are not under mountPoint are returned as a cleaned absolute path
// without the leading separator, so they still identify the file uniquely.
func RelativePath(mountPoint, path string) string {
	if mountPoint != "" {
		if rel, err := filepath.Rel(mountPoint, path); err == nil &&
			rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return strings.TrimPrefix(filepath.ToSlash(abs), "/")
}

// New builds a record for a freshly indexed file with neutral annotations and
// empty cache artifacts.
func New(vol Volume, path string, kind mediatypes.Kind, info os.FileInfo, partialHash string, indexedAt time.Time) Record {
	rel := RelativePath(vol.MountPoint, path)

	return Record{
		ID:           ID(vol.UUID, rel),
		VolumeUUID:   vol.UUID,
		RelativePath: rel,
		FileName:     info.Name(),
		FileSize:     info.Size(),
		PartialHash:  partialHash,
		MediaType:    kind,
		CreatedAt:    CreatedTime(path, info),
		ModifiedAt:   info.ModTime(),

		Tags:           []string{},
		ThumbnailPaths: []string{},

		IndexedAt:      indexedAt,
		Status:         StatusOnline,
		NeedsThumbnail: true,
		NeedsMetadata:  true,
	}
}
