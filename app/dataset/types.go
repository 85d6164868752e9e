package dataset

import (
	"time"
)

// ID is the portal-assigned dataset identifier (publicDataPk).
type ID string

func (id ID) String() string {
	return string(id)
}

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Identified is implemented by every record that carries a dataset ID.
type Identified interface {
	ItemID() ID
}

// Listing stage types

type ListItem struct {
	ID                ID       `json:"data_id"`
	Title             string   `json:"title"`
	Provider          string   `json:"provider,omitempty"`
	DetailURL         string   `json:"detail_url,omitempty"`
	FormatTypes       []string `json:"format_types,omitempty"`
	HasDownloadButton bool     `json:"has_download_btn"`
	Page              int      `json:"page"`
	Position          int      `json:"position"` // 1-based index across the whole listing run
}

func (i ListItem) ItemID() ID {
	return i.ID
}

// Detail stage types

type Detail struct {
	FileDataName     string   `json:"file_data_name,omitempty"`
	Category         string   `json:"category,omitempty"`
	Provider         string   `json:"provider,omitempty"`
	Department       string   `json:"department,omitempty"`
	ContactPhone     string   `json:"contact_phone,omitempty"`
	CollectionMethod string   `json:"collection_method,omitempty"`
	UpdateCycle      string   `json:"update_cycle,omitempty"`
	NextUpdateDate   string   `json:"next_update_date,omitempty"`
	Extension        string   `json:"extension,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	RegisterDate     string   `json:"register_date,omitempty"`
	UpdateDate       string   `json:"update_date,omitempty"`
	ProvisionType    string   `json:"provision_type,omitempty"`
	Description      string   `json:"description,omitempty"`
	Note             string   `json:"note,omitempty"`
	License          string   `json:"license,omitempty"`

	HasDownloadButton bool     `json:"has_download_btn"`
	DownloadBtnText   string   `json:"download_btn_text,omitempty"`
	FileID            string   `json:"file_id,omitempty"`
	FileDetailID      string   `json:"file_detail_id,omitempty"`
	DownloadParams    []string `json:"download_params,omitempty"`
}

// FilteredItem is a ListItem enriched with its detail page and the filter outcome.
// The embedded ListItem is flattened into the same JSON object.
type FilteredItem struct {
	ListItem

	FileDataName     string   `json:"file_data_name,omitempty"`
	Category         string   `json:"category,omitempty"`
	Department       string   `json:"department,omitempty"`
	ContactPhone     string   `json:"contact_phone,omitempty"`
	CollectionMethod string   `json:"collection_method,omitempty"`
	UpdateCycle      string   `json:"update_cycle,omitempty"`
	NextUpdateDate   string   `json:"next_update_date,omitempty"`
	Extension        string   `json:"extension,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	RegisterDate     string   `json:"register_date,omitempty"`
	UpdateDate       string   `json:"update_date,omitempty"`
	ProvisionType    string   `json:"provision_type,omitempty"`
	Description      string   `json:"description,omitempty"`
	Note             string   `json:"note,omitempty"`
	License          string   `json:"license,omitempty"`

	DownloadBtnText string   `json:"download_btn_text,omitempty"`
	FileID          string   `json:"file_id,omitempty"`
	FileDetailID    string   `json:"file_detail_id,omitempty"`
	DownloadParams  []string `json:"download_params,omitempty"`

	Formats      []string  `json:"formats,omitempty"`
	Accepted     bool      `json:"accepted"`
	RejectReason string    `json:"reject_reason,omitempty"`
	DetailedAt   time.Time `json:"detailed_at"`
}

// NewFilteredItem merges a listing record with its parsed detail page. Detail values win
// over listing values; the effective format set comes from the detail page extension when
// present, otherwise from the listing format tags.
func NewFilteredItem(item ListItem, detail Detail, detailedAt time.Time) FilteredItem {
	fi := FilteredItem{
		ListItem:         item,
		FileDataName:     detail.FileDataName,
		Category:         detail.Category,
		Department:       detail.Department,
		ContactPhone:     detail.ContactPhone,
		CollectionMethod: detail.CollectionMethod,
		UpdateCycle:      detail.UpdateCycle,
		NextUpdateDate:   detail.NextUpdateDate,
		Extension:        detail.Extension,
		Keywords:         detail.Keywords,
		RegisterDate:     detail.RegisterDate,
		UpdateDate:       detail.UpdateDate,
		ProvisionType:    detail.ProvisionType,
		Description:      detail.Description,
		Note:             detail.Note,
		License:          detail.License,
		DownloadBtnText:  detail.DownloadBtnText,
		FileID:           detail.FileID,
		FileDetailID:     detail.FileDetailID,
		DownloadParams:   detail.DownloadParams,
		DetailedAt:       detailedAt,
	}

	if detail.Provider != "" {
		fi.Provider = detail.Provider
	}
	// The detail page is authoritative for the download affordance.
	fi.HasDownloadButton = detail.HasDownloadButton

	if detail.Extension != "" {
		fi.Formats = SplitFormats(detail.Extension)
	} else {
		fi.Formats = append([]string(nil), item.FormatTypes...)
	}

	return fi
}

// Download stage types

type DownloadResult struct {
	ID        ID        `json:"data_id"`
	Title     string    `json:"title"`
	DirPath   string    `json:"dir_path,omitempty"`
	FilePath  string    `json:"file_path,omitempty"`
	Extension string    `json:"file_ext,omitempty"`
	Size      int64     `json:"file_size"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
}

func (r DownloadResult) ItemID() ID {
	return r.ID
}

func (r DownloadResult) RecordStatus() Status {
	return r.Status
}

// DownloadInfo is stored next to the payload inside metadata.json.
type DownloadInfo struct {
	Timestamp             time.Time `json:"download_timestamp"`
	FilePath              string    `json:"file_path"`
	FileSize              int64     `json:"file_size"`
	FileExt               string    `json:"file_ext"`
	ContentType           string    `json:"content_type,omitempty"`
	SourceURL             string    `json:"source_url,omitempty"`
	OriginalFilename      string    `json:"original_filename,omitempty"`
	EncodingConvertedFrom string    `json:"encoding_converted_from,omitempty"`
	AtchFileID            string    `json:"atch_file_id,omitempty"`
	FileDetailSn          string    `json:"file_detail_sn,omitempty"`

	// Status is the outcome of the latest download attempt. A failed re-download keeps
	// the earlier payload on disk but marks it here.
	Status Status `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Metadata is the sidecar record written as metadata.json in every item directory.
type Metadata struct {
	FilteredItem
	DownloadInfo DownloadInfo `json:"download_info"`
}

// Upload stage types

type UploadSourceKind string

const (
	SourceDownloadResults UploadSourceKind = "download_results"
	SourceDirectory       UploadSourceKind = "directory"
)

type UploadResult struct {
	ID        ID               `json:"data_id"`
	Title     string           `json:"title"`
	Source    UploadSourceKind `json:"source"`
	Filename  string           `json:"filename,omitempty"`
	RemoteURL string           `json:"remote_url,omitempty"`
	Status    Status           `json:"status"`
	Reason    string           `json:"reason,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	RunID     string           `json:"run_id"`
}

func (r UploadResult) ItemID() ID {
	return r.ID
}

func (r UploadResult) RecordStatus() Status {
	return r.Status
}
