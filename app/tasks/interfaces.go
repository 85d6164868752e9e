package tasks

import (
	"context"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/portal"
	"github.com/lysyi3m/opendata-harvest/app/upload"
)

// ListFetcher pages through the portal search results.
// Implemented by *portal.Client.
type ListFetcher interface {
	PerPage() int
	FetchListPage(ctx context.Context, keyword string, page int) (*portal.ListPage, error)
}

// DetailFetcher reads one dataset detail page.
// Implemented by *portal.Client.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, item dataset.ListItem) (*dataset.Detail, error)
}

// PayloadFetcher retrieves the data file of an accepted dataset.
// Implemented by *portal.Client.
type PayloadFetcher interface {
	FetchPayload(ctx context.Context, item dataset.FilteredItem) (*portal.Payload, error)
}

// FileServer receives uploaded files.
// Implemented by *upload.Client.
type FileServer interface {
	Send(ctx context.Context, req upload.Request) (*upload.Receipt, error)
}

var (
	_ ListFetcher    = (*portal.Client)(nil)
	_ DetailFetcher  = (*portal.Client)(nil)
	_ PayloadFetcher = (*portal.Client)(nil)
	_ FileServer     = (*upload.Client)(nil)
)
