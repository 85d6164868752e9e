package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/portal"
)

const DefaultTimeout = 60 * time.Second

type ClientOptions struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Client posts files to the receiving file server as multipart forms.
type Client struct {
	http *resty.Client
	url  string
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("upload URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}

	return &Client{http: client, url: opts.URL}, nil
}

// Request is one file upload.
type Request struct {
	Filename        string
	Data            []byte
	Description     string
	AutoDescription AutoDescription
}

type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Type     string `json:"type"`
}

// Receipt is the file server's answer to an upload.
type Receipt struct {
	Success   bool     `json:"success"`
	Timestamp string   `json:"timestamp"`
	ID        string   `json:"id,omitempty"`
	Location  string   `json:"location,omitempty"`
	FileInfo  FileInfo `json:"file_info"`
	Message   string   `json:"message"`
	Error     string   `json:"error,omitempty"`
}

// Send uploads one file. Transport failures and non-2xx answers come back as
// *portal.TransportError so callers can tell an unreachable server from a refused file.
func (c *Client) Send(ctx context.Context, req Request) (*Receipt, error) {
	autoDescription, err := json.Marshal(req.AutoDescription)
	if err != nil {
		return nil, fmt.Errorf("failed to encode auto_description: %w", err)
	}

	contentType := ContentType(req.Data)

	var receipt Receipt
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("file", req.Filename, contentType, bytes.NewReader(req.Data)).
		SetMultipartFormData(map[string]string{
			"description":      req.Description,
			"auto_description": string(autoDescription),
		}).
		SetResult(&receipt).
		SetError(&receipt).
		Post(c.url)
	if err != nil {
		return nil, &portal.TransportError{Op: "upload file", URL: c.url, Err: err}
	}

	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusCreated {
		return nil, &portal.TransportError{
			Op:         "upload file",
			URL:        c.url,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(receiptMessage(&receipt, resp.String())),
		}
	}

	if !receipt.Success {
		return nil, fmt.Errorf("file server rejected %s: %s", req.Filename, receiptMessage(&receipt, resp.String()))
	}

	return &receipt, nil
}

// ContentType sniffs the MIME type of the payload.
func ContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

func receiptMessage(receipt *Receipt, body string) string {
	switch {
	case receipt.Error != "":
		return receipt.Error
	case receipt.Message != "":
		return receipt.Message
	case len(body) > 200:
		return body[:200]
	default:
		return body
	}
}

// AutoDescription is the metadata document sent alongside each file.
type AutoDescription struct {
	Title           string   `json:"title"`
	DataID          string   `json:"data_id"`
	Provider        string   `json:"provider"`
	FileDataName    string   `json:"file_data_name"`
	Category        string   `json:"category"`
	Extension       string   `json:"extension"`
	FileFormat      string   `json:"file_format"`
	UpdateCycle     string   `json:"update_cycle"`
	RegisterDate    string   `json:"register_date"`
	UpdateDate      string   `json:"update_date"`
	Keywords        []string `json:"keywords"`
	Description     string   `json:"description"`
	ProvisionType   string   `json:"provision_type"`
	License         string   `json:"license"`
	Department      string   `json:"department"`
	ContactPhone    string   `json:"contact_phone"`
	SourceURL       string   `json:"source_url,omitempty"`
	UploadTimestamp string   `json:"upload_timestamp"`
}

func NewAutoDescription(id dataset.ID, metadata *dataset.Metadata, fileExt string, at time.Time) AutoDescription {
	d := AutoDescription{
		DataID:          id.String(),
		FileFormat:      fileExt,
		Keywords:        []string{},
		UploadTimestamp: at.Format(time.DateTime),
	}
	if metadata == nil {
		return d
	}

	d.Title = metadata.Title
	d.Provider = metadata.Provider
	d.FileDataName = metadata.FileDataName
	d.Category = metadata.Category
	d.Extension = metadata.Extension
	d.UpdateCycle = metadata.UpdateCycle
	d.RegisterDate = metadata.RegisterDate
	d.UpdateDate = metadata.UpdateDate
	if metadata.Keywords != nil {
		d.Keywords = metadata.Keywords
	}
	d.Description = metadata.Description
	d.ProvisionType = metadata.ProvisionType
	d.License = metadata.License
	d.Department = metadata.Department
	d.ContactPhone = metadata.ContactPhone
	d.SourceURL = metadata.DownloadInfo.SourceURL
	return d
}

// Description is the free-text field: the dataset description, else its title.
func Description(metadata *dataset.Metadata) string {
	if metadata == nil {
		return ""
	}
	if metadata.Description != "" {
		return metadata.Description
	}
	return metadata.Title
}
