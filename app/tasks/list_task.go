package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

type ListTask struct {
	Task
	fetcher    ListFetcher
	Keyword    string
	MaxPages   int
	OutputPath string

	Items []dataset.ListItem
	pages int
}

func NewListTask(fetcher ListFetcher, keyword string, maxPages int, outputPath string, runID string) *ListTask {
	return &ListTask{
		Task:       NewTask(TaskTypeList, runID),
		fetcher:    fetcher,
		Keyword:    keyword,
		MaxPages:   maxPages,
		OutputPath: outputPath,
	}
}

// Execute walks the result pages from page 1. Whatever was collected is written to
// OutputPath even when a page fetch fails.
func (t *ListTask) Execute(ctx context.Context) error {
	t.Items = nil
	t.pages = 0

	fetchErr := t.collect(ctx)

	if err := artifact.Save(t.OutputPath, t.Items); err != nil {
		if fetchErr != nil {
			slog.Error("Listing aborted", "error", fetchErr)
		}
		return fmt.Errorf("failed to save list: %w", err)
	}

	slog.Info("Task completed",
		"type", t.Type,
		"keyword", t.Keyword,
		"pages", t.pages,
		"items", len(t.Items),
		"output", t.OutputPath,
		"duration", t.GetDuration())

	return fetchErr
}

func (t *ListTask) collect(ctx context.Context) error {
	seen := make(map[dataset.ID]struct{})
	perPage := t.fetcher.PerPage()
	totalPages := 0

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := t.fetcher.FetchListPage(ctx, t.Keyword, page)
		if err != nil {
			return fmt.Errorf("failed to fetch list page %d: %w", page, err)
		}
		t.pages++

		if page == 1 {
			totalPages = result.TotalPages
			slog.Info("Listing started", "keyword", t.Keyword, "total_pages", totalPages, "max_pages", t.MaxPages)
		}

		for _, invalid := range result.Invalid {
			slog.Warn("Skipping list entry", "page", page, "error", invalid)
		}

		if len(result.Items) == 0 {
			slog.Warn("No items on page, stopping", "page", page)
			return nil
		}

		items := result.Items
		if perPage > 0 && len(items) > perPage {
			slog.Warn("Page returned more items than requested", "page", page, "items", len(items), "per_page", perPage)
			items = items[:perPage]
		}

		for _, item := range items {
			if item.ID == "" {
				continue
			}
			if _, ok := seen[item.ID]; ok {
				slog.Warn("Duplicate item in listing", "data_id", item.ID, "page", page)
				continue
			}
			seen[item.ID] = struct{}{}

			item.Page = page
			item.Position = len(t.Items) + 1
			t.Items = append(t.Items, item)
		}

		slog.Debug("List page processed", "page", page, "items", len(items), "collected", len(t.Items))

		if t.MaxPages > 0 && page >= t.MaxPages {
			return nil
		}
		if page >= totalPages {
			return nil
		}

		if err := t.pause(ctx); err != nil {
			return err
		}
	}
}

func (t *ListTask) Summary() Summary {
	return Summary{
		Type:      t.Type,
		RunID:     t.RunID,
		Total:     len(t.Items),
		Succeeded: len(t.Items),
		Duration:  t.GetDuration(),
		Output:    t.OutputPath,
	}
}
