package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/filter"
	"github.com/lysyi3m/opendata-harvest/app/portal"
)

type DetailTask struct {
	Task
	fetcher      DetailFetcher
	filterer     *filter.Filterer
	InputPath    string
	OutputPath   string
	RejectedPath string
	Limit        int

	Accepted []dataset.FilteredItem
	Rejected []dataset.FilteredItem
	failed   int
}

func NewDetailTask(fetcher DetailFetcher, filterer *filter.Filterer, inputPath, outputPath, rejectedPath string, limit int, runID string) *DetailTask {
	return &DetailTask{
		Task:         NewTask(TaskTypeDetail, runID),
		fetcher:      fetcher,
		filterer:     filterer,
		InputPath:    inputPath,
		OutputPath:   outputPath,
		RejectedPath: rejectedPath,
		Limit:        limit,
	}
}

// Execute enriches the first Limit listed items with their detail pages and keeps those the
// filter chain accepts. A failed detail fetch skips that item only; an unreachable portal
// ends the stage after saving what was accepted so far.
func (t *DetailTask) Execute(ctx context.Context) error {
	items, err := artifact.Load[dataset.ListItem](t.InputPath)
	if err != nil {
		return fmt.Errorf("failed to load list: %w", err)
	}

	if t.Limit > 0 && len(items) > t.Limit {
		items = items[:t.Limit]
	}

	t.Accepted, t.Rejected, t.failed = nil, nil, 0

	stageErr := t.process(ctx, items)

	if err := t.save(); err != nil {
		if stageErr != nil {
			slog.Error("Detail collection aborted", "error", stageErr)
		}
		return err
	}

	slog.Info("Task completed",
		"type", t.Type,
		"processed", len(items),
		"accepted", len(t.Accepted),
		"rejected", len(t.Rejected),
		"failed", t.failed,
		"output", t.OutputPath,
		"duration", t.GetDuration())

	return stageErr
}

func (t *DetailTask) process(ctx context.Context, items []dataset.ListItem) error {
	seen := make(map[dataset.ID]struct{}, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, ok := seen[item.ID]; ok || item.ID == "" {
			slog.Warn("Skipping duplicate or unidentified list item", "data_id", item.ID, "position", item.Position)
			continue
		}
		seen[item.ID] = struct{}{}

		if i > 0 {
			if err := t.pause(ctx); err != nil {
				return err
			}
		}

		detail, err := t.fetcher.FetchDetail(ctx, item)
		if err != nil {
			if portal.IsUnreachable(err) {
				return fmt.Errorf("portal unreachable while fetching detail of %s: %w", item.ID, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Failed to collect detail", "data_id", item.ID, "title", item.Title, "error", err)
			t.failed++
			continue
		}

		filtered := dataset.NewFilteredItem(item, *detail, time.Now().UTC())
		filtered.Accepted, filtered.RejectReason = t.filterer.Evaluate(filtered)

		if filtered.Accepted {
			slog.Debug("Item accepted", "data_id", item.ID, "title", item.Title, "formats", filtered.Formats)
			t.Accepted = append(t.Accepted, filtered)
		} else {
			slog.Debug("Item rejected", "data_id", item.ID, "title", item.Title, "reason", filtered.RejectReason)
			t.Rejected = append(t.Rejected, filtered)
		}
	}

	return nil
}

func (t *DetailTask) save() error {
	if err := artifact.Save(t.OutputPath, t.Accepted); err != nil {
		return fmt.Errorf("failed to save filtered items: %w", err)
	}
	if t.RejectedPath != "" {
		if err := artifact.Save(t.RejectedPath, t.Rejected); err != nil {
			return fmt.Errorf("failed to save rejected items: %w", err)
		}
	}
	return nil
}

func (t *DetailTask) Summary() Summary {
	return Summary{
		Type:      t.Type,
		RunID:     t.RunID,
		Total:     len(t.Accepted) + len(t.Rejected) + t.failed,
		Succeeded: len(t.Accepted),
		Failed:    t.failed,
		Skipped:   len(t.Rejected),
		Duration:  t.GetDuration(),
		Output:    t.OutputPath,
	}
}
