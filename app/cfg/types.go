package cfg

import (
	"time"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

type Mode string

const (
	ModeList        Mode = "list"
	ModeDetail      Mode = "detail"
	ModeDownload    Mode = "download"
	ModeUpload      Mode = "upload"
	ModeQuickUpload Mode = "quick_upload"
	ModeAll         Mode = "all"
)

type Cfg struct {
	Mode Mode

	// Portal
	BaseURL        string
	Keyword        string
	Pages          int
	RequestTimeout time.Duration
	RequestDelay   time.Duration
	UserAgent      string
	DebugHTMLDir   string

	// Selection
	NumProcess  int
	DataIDs     *dataset.IDSet
	Resume      bool
	RetryFailed bool
	ForceUpload bool

	// Artifacts
	ListFile          string
	FilteredFile      string
	RejectedFile      string
	ResultsFile       string
	FailedFile        string
	UploadResultsFile string
	DownloadDir       string
	Filters           string

	// Upload
	UploadURL        string
	UploadToken      string
	UploadTimeout    time.Duration
	UploadSource     dataset.UploadSourceKind
	UploadExcludeExt []string
	CustomFilename   string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
