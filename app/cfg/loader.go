package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	Mode string `long:"mode" env:"HARVEST_MODE" default:"all" choice:"list" choice:"detail" choice:"download" choice:"upload" choice:"quick_upload" choice:"all" description:"Pipeline stage(s) to run"`

	// Portal
	BaseURL        string        `long:"base-url" env:"PORTAL_BASE_URL" default:"https://www.data.go.kr" description:"Open-data portal base URL"`
	Keyword        string        `short:"k" long:"keyword" env:"KEYWORD" default:"전라북도" description:"Search keyword"`
	Pages          int           `short:"p" long:"pages" env:"PAGES" default:"1" description:"Number of result pages to list (0 = all)"`
	RequestTimeout time.Duration `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30s" description:"Timeout for portal requests"`
	RequestDelay   time.Duration `long:"request-delay" env:"REQUEST_DELAY" default:"1s" description:"Pause between consecutive requests"`
	UserAgent      string        `long:"user-agent" env:"USER_AGENT" description:"User agent string for portal requests"`
	DebugHTMLDir   string        `long:"debug-html-dir" env:"DEBUG_HTML_DIR" description:"Save every fetched listing and detail page into this directory (debug_html with --debug)"`

	// Selection
	NumProcess  int      `short:"n" long:"num-process" env:"NUM_PROCESS" default:"2" description:"Number of items to process per stage (0 = all)"`
	DataIDs     []string `long:"data-ids" env:"DATA_IDS" env-delim:"," description:"Restrict download/upload to these dataset IDs (comma or space separated, repeatable)"`
	DataIDsFile string   `long:"data-ids-file" env:"DATA_IDS_FILE" description:"Read more dataset IDs from a file, one per line (e.g. failed_downloads.txt)"`
	Resume      bool     `long:"resume" env:"RESUME" description:"Skip items already downloaded successfully"`
	RetryFailed bool     `long:"retry-failed" env:"RETRY_FAILED" description:"Upload only the items that failed in the previous upload run"`
	ForceUpload bool     `long:"force-upload" env:"FORCE_UPLOAD" description:"Upload items again even if their latest upload succeeded"`

	// Artifacts
	ListFile          string `long:"list-file" env:"LIST_FILE" default:"data_list.json" description:"Listing output"`
	FilteredFile      string `long:"filtered-file" env:"FILTERED_FILE" default:"data_filtered.json" description:"Accepted detail records"`
	RejectedFile      string `long:"rejected-file" env:"REJECTED_FILE" default:"data_rejected.json" description:"Rejected detail records with reasons"`
	ResultsFile       string `long:"results-file" env:"RESULTS_FILE" default:"download_results.json" description:"Download results"`
	FailedFile        string `long:"failed-file" env:"FAILED_FILE" default:"failed_downloads.txt" description:"IDs whose latest download failed"`
	UploadResultsFile string `long:"upload-results-file" env:"UPLOAD_RESULTS_FILE" default:"upload_results.json" description:"Upload results"`
	DownloadDir       string `long:"download-dir" env:"DOWNLOAD_DIR" default:"downloaded_data" description:"Directory holding one folder per downloaded dataset"`
	Filters           string `long:"filters" env:"FILTERS_FILE" description:"YAML filter rules (built-in rules when empty)"`

	// Upload
	UploadURL        string        `long:"upload-url" env:"UPLOAD_URL" default:"http://localhost:11311/api/upload" description:"File server upload endpoint"`
	UploadToken      string        `long:"upload-token" env:"UPLOAD_TOKEN" description:"Bearer token for the file server (optional)"`
	UploadTimeout    time.Duration `long:"upload-timeout" env:"UPLOAD_TIMEOUT" default:"60s" description:"Timeout for one upload"`
	UploadSource     string        `long:"upload-source" env:"UPLOAD_SOURCE" default:"directory" choice:"directory" choice:"download_results" description:"Where upload candidates come from"`
	UploadExcludeExt []string      `long:"upload-exclude-ext" env:"UPLOAD_EXCLUDE_EXT" env-delim:"," default:"zip" description:"File extensions never uploaded"`
	CustomFilename   string        `long:"custom-filename" env:"CUSTOM_FILENAME" description:"Base name used for every uploaded file"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Seoul)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// DefaultDebugHTMLDir receives fetched pages when --debug is on and no directory is given.
const DefaultDebugHTMLDir = "debug_html"

// ErrHelp is returned when the user asked for usage; the parser has already printed it.
var ErrHelp = errors.New("help requested")

func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses flags and environment. Positional arguments are treated as extra data IDs.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Usage = "[OPTIONS] [DATA_ID...]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Mode:              Mode(raw.Mode),
		BaseURL:           raw.BaseURL,
		Keyword:           strings.TrimSpace(raw.Keyword),
		Pages:             raw.Pages,
		RequestTimeout:    raw.RequestTimeout,
		RequestDelay:      raw.RequestDelay,
		UserAgent:         raw.UserAgent,
		DebugHTMLDir:      raw.DebugHTMLDir,
		NumProcess:        raw.NumProcess,
		DataIDs:           dataset.ParseIDs(append(raw.DataIDs, rest...)),
		Resume:            raw.Resume,
		RetryFailed:       raw.RetryFailed,
		ForceUpload:       raw.ForceUpload,
		ListFile:          raw.ListFile,
		FilteredFile:      raw.FilteredFile,
		RejectedFile:      raw.RejectedFile,
		ResultsFile:       raw.ResultsFile,
		FailedFile:        raw.FailedFile,
		UploadResultsFile: raw.UploadResultsFile,
		DownloadDir:       raw.DownloadDir,
		Filters:           raw.Filters,
		UploadURL:         raw.UploadURL,
		UploadToken:       raw.UploadToken,
		UploadTimeout:     raw.UploadTimeout,
		UploadSource:      dataset.UploadSourceKind(raw.UploadSource),
		UploadExcludeExt:  normalizeExtensions(raw.UploadExcludeExt),
		CustomFilename:    strings.TrimSpace(raw.CustomFilename),
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if raw.DataIDsFile != "" {
		ids, err := artifact.ReadIDs(raw.DataIDsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read --data-ids-file: %w", err)
		}
		for _, id := range ids {
			cfg.DataIDs.Add(id)
		}
	}

	if cfg.Debug && cfg.DebugHTMLDir == "" {
		cfg.DebugHTMLDir = DefaultDebugHTMLDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func (c *Cfg) Validate() error {
	if c.Pages < 0 {
		return fmt.Errorf("--pages must not be negative, got %d", c.Pages)
	}
	if c.NumProcess < 0 {
		return fmt.Errorf("--num-process must not be negative, got %d", c.NumProcess)
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("--request-delay must not be negative, got %s", c.RequestDelay)
	}
	if c.RunsStage(ModeList) && c.Keyword == "" {
		return errors.New("--keyword is required for listing")
	}
	if c.RunsStage(ModeUpload) && c.UploadURL == "" {
		return errors.New("--upload-url is required for upload")
	}
	if c.DownloadDir == "" {
		return errors.New("--download-dir must not be empty")
	}
	return nil
}

// RunsStage reports whether the configured mode includes the given stage. quick_upload
// counts as the upload stage.
func (c *Cfg) RunsStage(stage Mode) bool {
	switch c.Mode {
	case ModeAll:
		return stage != ModeQuickUpload
	case ModeQuickUpload:
		return stage == ModeUpload || stage == ModeQuickUpload
	default:
		return c.Mode == stage
	}
}

func normalizeExtensions(values []string) []string {
	var exts []string
	for _, value := range values {
		for _, ext := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if ext != "" {
				exts = append(exts, ext)
			}
		}
	}
	return exts
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
