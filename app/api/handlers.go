package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lysyi3m/opendata-harvest/app/database"
)

func NewHandler(receipts database.ReceiptRepository, uploadDir, baseURL string, maxSize int64) *Handler {
	return &Handler{
		receipts:  receipts,
		uploadDir: uploadDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		maxSize:   maxSize,
	}
}

// Upload stores the multipart "file" field under a fresh ID and records a receipt.
func (h *Handler) Upload(c *gin.Context) {
	if h.maxSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.uploadError(c, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		h.uploadError(c, http.StatusBadRequest, "file field is required")
		return
	}

	filename := filepath.Base(file.Filename)
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		h.uploadError(c, http.StatusBadRequest, "file has no name")
		return
	}

	id := uuid.NewString()
	dir := filepath.Join(h.uploadDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("Failed to create upload directory", "dir", dir, "error", err)
		h.uploadError(c, http.StatusInternalServerError, "failed to store file")
		return
	}

	path := filepath.Join(dir, filename)
	if err := c.SaveUploadedFile(file, path); err != nil {
		slog.Error("Failed to save upload", "path", path, "error", err)
		os.RemoveAll(dir)
		h.uploadError(c, http.StatusInternalServerError, "failed to store file")
		return
	}

	contentType := "application/octet-stream"
	if detected, err := mimetype.DetectFile(path); err == nil {
		contentType = detected.String()
	}

	autoDescription := c.PostForm("auto_description")
	now := time.Now()

	receipt := database.Receipt{
		ID:              id,
		Filename:        filename,
		StoredPath:      path,
		Size:            file.Size,
		ContentType:     contentType,
		DataID:          dataIDOf(autoDescription),
		Description:     c.PostForm("description"),
		AutoDescription: autoDescription,
		CreatedAt:       now,
	}

	if err := h.receipts.CreateReceipt(c.Request.Context(), receipt); err != nil {
		slog.Error("Database error", "operation", "create_receipt", "id", id, "error", err)
		os.RemoveAll(dir)
		h.uploadError(c, http.StatusInternalServerError, "failed to record upload")
		return
	}

	slog.Info("File received",
		"id", id,
		"data_id", receipt.DataID,
		"filename", filename,
		"size", file.Size,
		"type", contentType)

	c.JSON(http.StatusOK, UploadResponse{
		Success:   true,
		Timestamp: now.Format(time.DateTime),
		ID:        id,
		Location:  h.location(id),
		FileInfo: &FileInfo{
			Filename: filename,
			Size:     file.Size,
			Type:     contentType,
		},
		Message: "File uploaded successfully",
	})
}

func (h *Handler) ListUploads(c *gin.Context) {
	limit := 100
	if value := c.Query("limit"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	receipts, err := h.receipts.ListReceipts(c.Request.Context(), c.Query("data_id"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_receipts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	uploads := make([]ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		uploads = append(uploads, ReceiptResponse{
			ID:          r.ID,
			DataID:      r.DataID,
			Filename:    r.Filename,
			Size:        r.Size,
			ContentType: r.ContentType,
			Description: r.Description,
			Location:    h.location(r.ID),
			CreatedAt:   r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"uploads": uploads,
		"total":   len(uploads),
	})
}

func (h *Handler) GetFile(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	receipt, err := h.receipts.GetReceipt(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_receipt", "id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if receipt == nil {
		c.Status(http.StatusNotFound)
		return
	}

	if _, err := os.Stat(receipt.StoredPath); err != nil {
		slog.Error("Stored file missing", "id", id, "path", receipt.StoredPath, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", receipt.ContentType)
	c.FileAttachment(receipt.StoredPath, receipt.Filename)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.receipts.GetReceiptCount(c.Request.Context()); err == nil {
		health["uploads"] = count
	} else {
		health["status"] = "degraded"
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) uploadError(c *gin.Context, status int, message string) {
	c.JSON(status, UploadResponse{
		Success:   false,
		Timestamp: time.Now().Format(time.DateTime),
		Error:     message,
	})
}

func (h *Handler) location(id string) string {
	return h.baseURL + "/files/" + id
}

// dataIDOf pulls data_id out of the auto_description document. Malformed documents are kept
// as-is but yield no ID.
func dataIDOf(autoDescription string) string {
	if autoDescription == "" {
		return ""
	}
	var doc struct {
		DataID string `json:"data_id"`
	}
	if err := json.Unmarshal([]byte(autoDescription), &doc); err != nil {
		slog.Warn("auto_description is not valid JSON", "error", err)
		return ""
	}
	return doc.DataID
}
