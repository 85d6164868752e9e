package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/portal"
	"github.com/lysyi3m/opendata-harvest/app/storage"
)

type DownloadTask struct {
	Task
	fetcher     PayloadFetcher
	store       *storage.Store
	InputPath   string
	ResultsPath string
	FailedPath  string
	Limit       int
	IDs         *dataset.IDSet
	Resume      bool

	Records []dataset.DownloadResult
	resumed int
	bytes   int64
}

func NewDownloadTask(fetcher PayloadFetcher, store *storage.Store, inputPath, resultsPath, failedPath string, limit int, ids *dataset.IDSet, resume bool, runID string) *DownloadTask {
	return &DownloadTask{
		Task:        NewTask(TaskTypeDownload, runID),
		fetcher:     fetcher,
		store:       store,
		InputPath:   inputPath,
		ResultsPath: resultsPath,
		FailedPath:  failedPath,
		Limit:       limit,
		IDs:         ids,
		Resume:      resume,
	}
}

// Execute downloads the selected accepted items. Per-item failures become failed records;
// only an unreachable portal stops the loop early. Results are merged by ID into
// ResultsPath and FailedPath is rewritten from the merged results.
func (t *DownloadTask) Execute(ctx context.Context) error {
	items, err := artifact.Load[dataset.FilteredItem](t.InputPath)
	if err != nil {
		return fmt.Errorf("failed to load filtered items: %w", err)
	}

	var accepted []dataset.FilteredItem
	for _, item := range items {
		if item.Accepted {
			accepted = append(accepted, item)
		}
	}

	if !t.IDs.Empty() {
		for _, id := range dataset.Missing(accepted, t.IDs) {
			slog.Warn("Requested ID not in filtered items", "data_id", id)
		}
	}
	selected := dataset.Select(accepted, t.IDs, t.Limit)

	results, err := artifact.LoadResults[dataset.DownloadResult](t.ResultsPath)
	if err != nil {
		return fmt.Errorf("failed to load previous download results: %w", err)
	}

	slog.Info("Download started", "selected", len(selected), "available", len(accepted), "ids", t.IDs.Len(), "limit", t.Limit)

	t.Records, t.resumed, t.bytes = nil, 0, 0
	stageErr := t.process(ctx, selected, results)

	results.Merge(t.RunID, t.Records, time.Now().UTC())
	if err := results.Save(t.ResultsPath); err != nil {
		return fmt.Errorf("failed to save download results: %w", err)
	}
	failedIDs := results.WithStatus(dataset.StatusFailed)
	if err := artifact.WriteIDs(t.FailedPath, failedIDs); err != nil {
		return fmt.Errorf("failed to save failed downloads: %w", err)
	}

	slog.Info("Task completed",
		"type", t.Type,
		"processed", len(t.Records),
		"succeeded", t.count(dataset.StatusSucceeded),
		"failed", t.count(dataset.StatusFailed),
		"resumed", t.resumed,
		"failed_total", len(failedIDs),
		"output", t.ResultsPath,
		"duration", t.GetDuration())

	return stageErr
}

func (t *DownloadTask) process(ctx context.Context, items []dataset.FilteredItem, previous *artifact.Results[dataset.DownloadResult]) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if t.Resume {
			if prev, ok := previous.Find(item.ID); ok && prev.Status == dataset.StatusSucceeded && t.store.HasPayload(item.ID) {
				slog.Debug("Already downloaded, skipping", "data_id", item.ID)
				t.resumed++
				continue
			}
		}

		if i > 0 {
			if err := t.pause(ctx); err != nil {
				return err
			}
		}

		record, err := t.downloadItem(ctx, item)
		if err != nil {
			if portal.IsUnreachable(err) {
				return fmt.Errorf("portal unreachable while downloading %s: %w", item.ID, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Download failed", "data_id", item.ID, "title", item.Title, "error", err)
			record = dataset.DownloadResult{
				ID:        item.ID,
				Title:     item.Title,
				DirPath:   t.store.ItemDir(item.ID),
				Status:    dataset.StatusFailed,
				Reason:    err.Error(),
				Timestamp: time.Now().UTC(),
				RunID:     t.RunID,
			}
			if err := t.store.MarkFailed(item.ID, record.Reason); err != nil {
				slog.Warn("Failed to mark stale payload", "data_id", item.ID, "error", err)
			}
		}

		t.Records = append(t.Records, record)
	}
	return nil
}

func (t *DownloadTask) downloadItem(ctx context.Context, item dataset.FilteredItem) (dataset.DownloadResult, error) {
	payload, err := t.fetcher.FetchPayload(ctx, item)
	if err != nil {
		return dataset.DownloadResult{}, err
	}

	data := payload.Data
	convertedFrom := ""
	if payload.Extension == "csv" {
		data, convertedFrom = storage.NormalizeCSV(data)
		if convertedFrom != "" {
			slog.Debug("CSV converted to UTF-8", "data_id", item.ID, "from", convertedFrom)
		}
	}

	path, err := t.store.WritePayload(item.ID, payload.Extension, data)
	if err != nil {
		return dataset.DownloadResult{}, err
	}

	now := time.Now().UTC()
	size := int64(len(data))

	metadata := dataset.Metadata{
		FilteredItem: item,
		DownloadInfo: dataset.DownloadInfo{
			Timestamp:             now,
			FilePath:              path,
			FileSize:              size,
			FileExt:               payload.Extension,
			ContentType:           payload.ContentType,
			SourceURL:             payload.SourceURL,
			OriginalFilename:      payload.OriginalFilename,
			EncodingConvertedFrom: convertedFrom,
			AtchFileID:            payload.AtchFileID,
			FileDetailSn:          payload.FileDetailSn,
			Status:                dataset.StatusSucceeded,
		},
	}
	if err := t.store.WriteMetadata(item.ID, metadata); err != nil {
		return dataset.DownloadResult{}, err
	}

	t.bytes += size

	slog.Info("Downloaded", "data_id", item.ID, "title", item.Title, "path", path, "size", size)

	return dataset.DownloadResult{
		ID:        item.ID,
		Title:     item.Title,
		DirPath:   t.store.ItemDir(item.ID),
		FilePath:  path,
		Extension: payload.Extension,
		Size:      size,
		Status:    dataset.StatusSucceeded,
		Timestamp: now,
		RunID:     t.RunID,
	}, nil
}

func (t *DownloadTask) count(status dataset.Status) int {
	n := 0
	for _, r := range t.Records {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (t *DownloadTask) Summary() Summary {
	return Summary{
		Type:      t.Type,
		RunID:     t.RunID,
		Total:     len(t.Records) + t.resumed,
		Succeeded: t.count(dataset.StatusSucceeded),
		Failed:    t.count(dataset.StatusFailed),
		Skipped:   t.resumed,
		Bytes:     t.bytes,
		Duration:  t.GetDuration(),
		Output:    t.ResultsPath,
	}
}
