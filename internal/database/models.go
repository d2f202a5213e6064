package database

import "media-curator/internal/asset"

type SortField string
type SortOrder string

const (
	SortByName     SortField = "name"
	SortByModified SortField = "modified"
	SortBySize     SortField = "size"
	SortByIndexed  SortField = "indexed"
	SortAsc        SortOrder = "asc"
	SortDesc       SortOrder = "desc"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

// ListOptions filters and pages ListAssets. Empty filters match everything.
type ListOptions struct {
	Page       int
	PageSize   int
	MediaType  string
	VolumeUUID string
	Status     string
	SortBy     SortField
	SortOrder  SortOrder
}

func (o *ListOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = defaultPageSize
	}
	if o.PageSize > maxPageSize {
		o.PageSize = maxPageSize
	}
}

// AssetPage is one page of ListAssets.
type AssetPage struct {
	Items      []asset.Record `json:"items"`
	TotalItems int            `json:"totalItems"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
