package api

import (
	"time"

	"github.com/lysyi3m/opendata-harvest/app/database"
)

type Handler struct {
	receipts  database.ReceiptRepository
	uploadDir string
	baseURL   string
	maxSize   int64
}

type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// UploadResponse is the body of every POST /api/upload answer.
type UploadResponse struct {
	Success   bool      `json:"success"`
	Timestamp string    `json:"timestamp"`
	ID        string    `json:"id,omitempty"`
	Location  string    `json:"location,omitempty"`
	FileInfo  *FileInfo `json:"file_info,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type ReceiptResponse struct {
	ID          string    `json:"id"`
	DataID      string    `json:"data_id,omitempty"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location"`
	CreatedAt   time.Time `json:"created_at"`
}
