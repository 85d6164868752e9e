package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/portal"
	"github.com/lysyi3m/opendata-harvest/app/storage"
	"github.com/lysyi3m/opendata-harvest/app/upload"
)

type UploadOptions struct {
	ResultsPath    string
	Limit          int
	IDs            *dataset.IDSet
	RetryFailed    bool
	Force          bool // upload again even when the latest upload succeeded
	CustomFilename string
	ExcludeExt     []string
}

type UploadTask struct {
	Task
	server FileServer
	source upload.Source
	UploadOptions

	Records  []dataset.UploadResult
	uploaded int
	bytes    int64
}

func NewUploadTask(server FileServer, source upload.Source, opts UploadOptions, runID string) *UploadTask {
	return &UploadTask{
		Task:          NewTask(TaskTypeUpload, runID),
		server:        server,
		source:        source,
		UploadOptions: opts,
	}
}

// Execute sends every selected candidate of the source to the file server. The ID set and
// the limit apply the same way whichever source is configured. Candidates whose latest
// upload succeeded are left out before the limit is applied unless Force is set.
func (t *UploadTask) Execute(ctx context.Context) error {
	results, err := artifact.LoadResults[dataset.UploadResult](t.ResultsPath)
	if err != nil {
		return fmt.Errorf("failed to load previous upload results: %w", err)
	}

	ids := t.IDs
	if t.RetryFailed {
		ids = retryIDs(results.WithStatus(dataset.StatusFailed), t.IDs)
		if ids.Empty() {
			slog.Info("No failed uploads to retry", "results", t.ResultsPath)
			return nil
		}
	}

	candidates, err := t.source.Candidates()
	if err != nil {
		return fmt.Errorf("failed to enumerate %s candidates: %w", t.source.Kind(), err)
	}

	for _, id := range dataset.Missing(candidates, ids) {
		slog.Warn("Requested ID not available for upload", "data_id", id, "source", t.source.Kind())
	}

	t.Records, t.uploaded, t.bytes = nil, 0, 0
	if !t.Force {
		candidates = t.pending(candidates, results, ids)
	}
	selected := dataset.Select(candidates, ids, t.Limit)

	slog.Info("Upload started", "source", t.source.Kind(), "selected", len(selected), "available", len(candidates), "already_uploaded", t.uploaded, "retry_failed", t.RetryFailed)

	stageErr := t.process(ctx, selected)

	results.Merge(t.RunID, t.Records, time.Now().UTC())
	if err := results.Save(t.ResultsPath); err != nil {
		return fmt.Errorf("failed to save upload results: %w", err)
	}

	slog.Info("Task completed",
		"type", t.Type,
		"source", t.source.Kind(),
		"processed", len(t.Records),
		"succeeded", t.count(dataset.StatusSucceeded),
		"failed", t.count(dataset.StatusFailed),
		"skipped", t.count(dataset.StatusSkipped),
		"already_uploaded", t.uploaded,
		"output", t.ResultsPath,
		"duration", t.GetDuration())

	return stageErr
}

// pending drops the candidates whose latest upload record succeeded and counts them.
func (t *UploadTask) pending(candidates []upload.Candidate, previous *artifact.Results[dataset.UploadResult], ids *dataset.IDSet) []upload.Candidate {
	var out []upload.Candidate
	for _, c := range candidates {
		if prev, ok := previous.Find(c.ID); ok && prev.Status == dataset.StatusSucceeded {
			if ids.Empty() || ids.Contains(c.ID) {
				slog.Debug("Already uploaded, skipping", "data_id", c.ID, "remote_url", prev.RemoteURL)
				t.uploaded++
			}
			continue
		}
		out = append(out, c)
	}
	return out
}

func (t *UploadTask) process(ctx context.Context, candidates []upload.Candidate) error {
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		if i > 0 {
			if err := t.pause(ctx); err != nil {
				return err
			}
		}

		record, err := t.uploadItem(ctx, candidate)
		if err != nil {
			if portal.IsUnreachable(err) {
				return fmt.Errorf("file server unreachable while uploading %s: %w", candidate.ID, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("Upload failed", "data_id", candidate.ID, "title", candidate.Title, "error", err)
			record = t.record(candidate, dataset.StatusFailed)
			record.Reason = err.Error()
		}

		t.Records = append(t.Records, record)
	}
	return nil
}

func (t *UploadTask) uploadItem(ctx context.Context, candidate upload.Candidate) (dataset.UploadResult, error) {
	path, err := storage.FindPayload(candidate.Dir)
	if err != nil {
		return dataset.UploadResult{}, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if t.excluded(ext) {
		slog.Info("Upload skipped by extension", "data_id", candidate.ID, "path", path)
		record := t.record(candidate, dataset.StatusSkipped)
		record.Reason = fmt.Sprintf("extension %s excluded from upload", ext)
		return record, nil
	}

	metadata, err := storage.ReadMetadata(candidate.Dir)
	if err != nil {
		return dataset.UploadResult{}, err
	}
	if candidate.Title == "" {
		candidate.Title = metadata.Title
	}

	if declared := strings.ToLower(metadata.DownloadInfo.FileExt); declared != "" && "."+declared != ext {
		slog.Warn("Payload extension differs from metadata", "data_id", candidate.ID, "metadata", declared, "payload", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return dataset.UploadResult{}, &artifact.PersistenceError{Path: path, Op: "read", Err: err}
	}

	filename := upload.Filename(t.CustomFilename, metadata, candidate.ID, ext)

	receipt, err := t.server.Send(ctx, upload.Request{
		Filename:        filename,
		Data:            data,
		Description:     upload.Description(metadata),
		AutoDescription: upload.NewAutoDescription(candidate.ID, metadata, strings.TrimPrefix(ext, "."), time.Now()),
	})
	if err != nil {
		return dataset.UploadResult{}, err
	}

	t.bytes += int64(len(data))

	record := t.record(candidate, dataset.StatusSucceeded)
	record.Filename = filename
	record.RemoteURL = receipt.Location
	if record.RemoteURL == "" {
		record.RemoteURL = receipt.FileInfo.Filename
	}

	slog.Info("Uploaded", "data_id", candidate.ID, "filename", filename, "location", record.RemoteURL)

	return record, nil
}

func (t *UploadTask) record(candidate upload.Candidate, status dataset.Status) dataset.UploadResult {
	return dataset.UploadResult{
		ID:        candidate.ID,
		Title:     candidate.Title,
		Source:    t.source.Kind(),
		Status:    status,
		Timestamp: time.Now().UTC(),
		RunID:     t.RunID,
	}
}

func (t *UploadTask) excluded(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, e := range t.ExcludeExt {
		if strings.EqualFold(strings.TrimPrefix(e, "."), ext) {
			return true
		}
	}
	return false
}

func (t *UploadTask) count(status dataset.Status) int {
	n := 0
	for _, r := range t.Records {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (t *UploadTask) Summary() Summary {
	return Summary{
		Type:      t.Type,
		RunID:     t.RunID,
		Total:     len(t.Records) + t.uploaded,
		Succeeded: t.count(dataset.StatusSucceeded),
		Failed:    t.count(dataset.StatusFailed),
		Skipped:   t.count(dataset.StatusSkipped) + t.uploaded,
		Bytes:     t.bytes,
		Duration:  t.GetDuration(),
		Output:    t.ResultsPath,
	}
}

// retryIDs narrows the previously failed IDs to the explicitly requested ones, if any.
func retryIDs(failed []dataset.ID, requested *dataset.IDSet) *dataset.IDSet {
	ids := dataset.NewIDSet()
	for _, id := range failed {
		if requested.Empty() || requested.Contains(id) {
			ids.Add(id)
		}
	}
	return ids
}
