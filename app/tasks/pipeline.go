package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lysyi3m/opendata-harvest/app/cfg"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/filter"
	"github.com/lysyi3m/opendata-harvest/app/portal"
	"github.com/lysyi3m/opendata-harvest/app/storage"
	"github.com/lysyi3m/opendata-harvest/app/upload"
)

// Portal is everything the first three stages need from the portal.
type Portal interface {
	ListFetcher
	DetailFetcher
	PayloadFetcher
}

var _ Portal = (*portal.Client)(nil)

// Pipeline runs the stages selected by --mode in order, sharing one run ID. Each stage reads
// the artifact the previous one wrote, so any stage can also run on its own.
type Pipeline struct {
	cfg      *cfg.Cfg
	portal   Portal
	server   FileServer
	filterer *filter.Filterer
	store    *storage.Store
	out      io.Writer
	runID    string

	Summaries []Summary
}

func NewPipeline(c *cfg.Cfg, out io.Writer) (*Pipeline, error) {
	p := &Pipeline{
		cfg:   c,
		store: storage.NewStore(c.DownloadDir),
		out:   out,
		runID: NewRunID(),
	}

	if c.RunsStage(cfg.ModeList) || c.RunsStage(cfg.ModeDetail) || c.RunsStage(cfg.ModeDownload) {
		client, err := portal.NewClient(portal.ClientOptions{
			BaseURL:      c.BaseURL,
			UserAgent:    c.UserAgent,
			Timeout:      c.RequestTimeout,
			DebugHTMLDir: c.DebugHTMLDir,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create portal client: %w", err)
		}
		p.portal = client
	}

	if c.RunsStage(cfg.ModeDetail) {
		rules, err := filter.LoadRules(c.Filters)
		if err != nil {
			return nil, fmt.Errorf("failed to load filter rules: %w", err)
		}
		p.filterer = rules.Filterer()
	}

	if c.RunsStage(cfg.ModeUpload) {
		client, err := upload.NewClient(upload.ClientOptions{
			URL:     c.UploadURL,
			Token:   c.UploadToken,
			Timeout: c.UploadTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create upload client: %w", err)
		}
		p.server = client
	}

	return p, nil
}

func (p *Pipeline) RunID() string {
	return p.runID
}

// Run executes the configured stages. In mode all it stops early, without error, once a
// stage leaves nothing for the next one.
func (p *Pipeline) Run(ctx context.Context) error {
	c := p.cfg
	chained := c.Mode == cfg.ModeAll

	slog.Info("Pipeline started", "mode", c.Mode, "run_id", p.runID, "version", c.Version)

	if c.RunsStage(cfg.ModeList) {
		task := NewListTask(p.portal, c.Keyword, c.Pages, c.ListFile, p.runID)
		task.Delay = c.RequestDelay
		if err := p.execute(ctx, task); err != nil {
			return err
		}
		if chained && len(task.Items) == 0 {
			slog.Warn("Nothing listed, stopping pipeline", "keyword", c.Keyword)
			return nil
		}
	}

	if c.RunsStage(cfg.ModeDetail) {
		task := NewDetailTask(p.portal, p.filterer, c.ListFile, c.FilteredFile, c.RejectedFile, c.NumProcess, p.runID)
		task.Delay = c.RequestDelay
		if err := p.execute(ctx, task); err != nil {
			return err
		}
		if chained && len(task.Accepted) == 0 {
			slog.Warn("No item passed the filters, stopping pipeline")
			return nil
		}
	}

	if c.RunsStage(cfg.ModeDownload) {
		task := NewDownloadTask(p.portal, p.store, c.FilteredFile, c.ResultsFile, c.FailedFile, c.NumProcess, c.DataIDs, c.Resume, p.runID)
		task.Delay = c.RequestDelay
		if err := p.execute(ctx, task); err != nil {
			return err
		}
		if chained && task.count(dataset.StatusSucceeded) == 0 && task.resumed == 0 {
			slog.Warn("Nothing downloaded, stopping pipeline")
			return nil
		}
	}

	if c.RunsStage(cfg.ModeUpload) {
		kind := c.UploadSource
		if c.Mode == cfg.ModeQuickUpload {
			kind = dataset.SourceDirectory
		}
		source, err := upload.NewSource(kind, c.ResultsFile, p.store)
		if err != nil {
			return err
		}

		task := NewUploadTask(p.server, source, UploadOptions{
			ResultsPath:    c.UploadResultsFile,
			Limit:          c.NumProcess,
			IDs:            c.DataIDs,
			RetryFailed:    c.RetryFailed,
			Force:          c.ForceUpload,
			CustomFilename: c.CustomFilename,
			ExcludeExt:     c.UploadExcludeExt,
		}, p.runID)
		if err := p.execute(ctx, task); err != nil {
			return err
		}
	}

	slog.Info("Pipeline completed", "mode", c.Mode, "run_id", p.runID, "stages", len(p.Summaries))

	return nil
}

// execute runs one stage and prints its summary whether or not it failed.
func (p *Pipeline) execute(ctx context.Context, task TaskInterface) error {
	slog.Debug("Stage starting", "type", task.GetType(), "task_id", task.GetID())

	task.Start()
	err := task.Execute(ctx)

	summary := task.Summary()
	p.Summaries = append(p.Summaries, summary)
	if p.out != nil {
		RenderSummaries(p.out, summary)
	}

	if err != nil {
		return fmt.Errorf("%s stage failed: %w", task.GetType(), err)
	}
	return nil
}
