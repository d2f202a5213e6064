package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"media-curator/internal/asset"
	"media-curator/internal/database"
	"media-curator/internal/logging"
	"media-curator/internal/mediatypes"

	"github.com/gorilla/mux"
)

// ListAssets returns one page of catalog records.
//
// Query parameters: page, pageSize, mediaType, volume, status, sort
// (name|modified|size|indexed) and order (asc|desc).
func (h *Handlers) ListAssets(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := r.URL.Query()

	opts := database.ListOptions{
		MediaType:  q.Get("mediaType"),
		VolumeUUID: q.Get("volume"),
		Status:     q.Get("status"),
		SortBy:     database.SortField(q.Get("sort")),
		SortOrder:  database.SortOrder(q.Get("order")),
		Page:       1,
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		opts.Page = page
	}
	if pageSize, err := strconv.Atoi(q.Get("pageSize")); err == nil && pageSize > 0 {
		opts.PageSize = pageSize
	}

	switch opts.SortBy {
	case "", database.SortByName, database.SortByModified, database.SortBySize, database.SortByIndexed:
	default:
		writeJSONError(w, "invalid sort field", http.StatusBadRequest)
		return
	}
	switch opts.SortOrder {
	case "", database.SortAsc, database.SortDesc:
	default:
		writeJSONError(w, "invalid sort order", http.StatusBadRequest)
		return
	}

	page, err := h.catalog.ListAssets(r.Context(), opts)
	if err != nil {
		logging.Error("ListAssets database error: %v", err)
		writeJSONError(w, "failed to list assets", http.StatusInternalServerError)
		return
	}

	logging.Debug("ListAssets completed in %v, %d of %d items", time.Since(start), len(page.Items), page.TotalItems)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, page)
}

// assetDetail is a catalog record plus the MIME type derived from its
// extension.
type assetDetail struct {
	*asset.Record
	MimeType string `json:"mimeType"`
}

// GetAsset returns a single record by its identifier.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := h.catalog.GetAsset(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("GetAsset %s: %v", id, err)
		writeJSONError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, assetDetail{
		Record:   rec,
		MimeType: mediatypes.MimeType(filepath.Ext(rec.FileName)),
	})
}
