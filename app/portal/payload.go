package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-shiori/go-readability"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

const htmlMessageLimit = 200

var (
	// ErrEmptyPayload is returned when the portal answers with a zero-length body.
	ErrEmptyPayload = errors.New("empty payload")

	filenameRe = regexp.MustCompile(`filename=["']?([^"';]+)["']?`)
)

// HTMLResponseError is returned when the portal serves a web page where a file was expected,
// typically a login wall or an error page. Message is the readable text of that page.
type HTMLResponseError struct {
	URL     string
	Message string
}

func (e *HTMLResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTML page returned instead of a file: %s", e.URL)
	}
	return fmt.Sprintf("HTML page returned instead of a file: %s: %s", e.URL, e.Message)
}

// Payload is a retrieved dataset file.
type Payload struct {
	Data             []byte
	Extension        string
	OriginalFilename string
	ContentType      string
	SourceURL        string
	AtchFileID       string
	FileDetailSn     string
}

// Locator identifies a file on the portal's download endpoint.
type Locator struct {
	AtchFileID   string
	FileDetailSn string
}

type fileInfoResponse struct {
	FileDataRegistVO *struct {
		AtchFileID   string      `json:"atchFileId"`
		FileDetailSn json.Number `json:"fileDetailSn"`
	} `json:"fileDataRegistVO"`
	AtchFileID   string      `json:"atchFileId"`
	FileDetailSn json.Number `json:"fileDetailSn"`
}

// FetchPayload downloads the data file of an accepted dataset. Alternate locators are tried
// in turn when the portal refuses one; an unreachable host ends the attempt at once.
func (c *Client) FetchPayload(ctx context.Context, item dataset.FilteredItem) (*Payload, error) {
	referer := item.DetailURL
	if referer == "" {
		referer = c.DetailURL(item.ID.String())
	}

	loc, err := c.ResolveLocator(ctx, item)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, sn := range AlternateSerials(loc.FileDetailSn) {
		params := map[string]string{"atchFileId": loc.AtchFileID, "fileDetailSn": sn}

		payload, err := c.download(ctx, fileDownloadPath, params, referer, item)
		if err == nil {
			payload.AtchFileID = loc.AtchFileID
			payload.FileDetailSn = sn
			return payload, nil
		}
		if IsUnreachable(err) || ctx.Err() != nil {
			return nil, err
		}

		slog.Debug("Download attempt failed", "data_id", item.ID, "atch_file_id", loc.AtchFileID, "file_detail_sn", sn, "error", err)
		lastErr = err
	}

	params := map[string]string{"publicDataPk": item.ID.String(), "file_detail_sn": "1"}
	payload, err := c.download(ctx, fileInfoPath, params, referer, item)
	if err == nil {
		payload.AtchFileID = loc.AtchFileID
		payload.FileDetailSn = "1"
		return payload, nil
	}
	if IsUnreachable(err) || ctx.Err() != nil {
		return nil, err
	}

	slog.Debug("Last resort download failed", "data_id", item.ID, "error", err)
	if lastErr == nil {
		lastErr = err
	}
	return nil, fmt.Errorf("all download locators failed: %w", lastErr)
}

// ResolveLocator asks the file info endpoint for the attachment id. When that yields nothing
// it falls back to the id carried by the detail page download button, and finally to an id
// synthesised from the dataset id. Only an unreachable host is returned as an error.
func (c *Client) ResolveLocator(ctx context.Context, item dataset.FilteredItem) (Locator, error) {
	params := map[string]string{"publicDataPk": item.ID.String(), "fileDetailSn": "1"}
	headers := map[string]string{"Accept": "application/json, text/plain, */*"}
	if item.DetailURL != "" {
		headers["Referer"] = item.DetailURL
	}

	resp, err := c.get(ctx, "fetch file info", fileInfoPath, params, headers)
	switch {
	case err != nil && (IsUnreachable(err) || ctx.Err() != nil):
		return Locator{}, err
	case err != nil:
		slog.Debug("File info request failed", "data_id", item.ID, "error", err)
	case strings.Contains(resp.Header().Get("Content-Type"), "json"):
		if loc, ok := parseFileInfo(resp.Body()); ok {
			return loc, nil
		}
	}

	if loc, ok := LocatorFromFileDetailID(item.FileDetailID); ok {
		return loc, nil
	}

	return SynthesizeLocator(item.ID), nil
}

func parseFileInfo(body []byte) (Locator, bool) {
	var info fileInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return Locator{}, false
	}

	if vo := info.FileDataRegistVO; vo != nil && vo.AtchFileID != "" {
		return Locator{AtchFileID: vo.AtchFileID, FileDetailSn: serialOrDefault(vo.FileDetailSn)}, true
	}
	if info.AtchFileID != "" {
		return Locator{AtchFileID: info.AtchFileID, FileDetailSn: serialOrDefault(info.FileDetailSn)}, true
	}
	return Locator{}, false
}

func serialOrDefault(n json.Number) string {
	if n.String() == "" {
		return "1"
	}
	return n.String()
}

// LocatorFromFileDetailID reads ids shaped like "uddi:<atchFileId>_<sn>[.ext]".
func LocatorFromFileDetailID(fileDetailID string) (Locator, bool) {
	clean := strings.TrimPrefix(strings.TrimSpace(fileDetailID), "uddi:")
	if clean == "" {
		return Locator{}, false
	}

	parts := strings.Split(clean, "_")
	if len(parts) < 2 {
		return Locator{AtchFileID: clean, FileDetailSn: "1"}, true
	}

	sn, _, _ := strings.Cut(parts[1], ".")
	if sn == "" {
		sn = "1"
	}
	return Locator{AtchFileID: parts[0], FileDetailSn: sn}, true
}

// SynthesizeLocator builds FILE_<id zero padded to 15 digits>. Longer IDs are kept whole.
func SynthesizeLocator(id dataset.ID) Locator {
	s := id.String()
	if len(s) < 15 {
		s = strings.Repeat("0", 15-len(s)) + s
	}
	return Locator{AtchFileID: "FILE_" + s, FileDetailSn: "1"}
}

// AlternateSerials returns the file detail serials to try: the resolved one first, then 0, 2
// and 3, then 1 when it was not the first.
func AlternateSerials(first string) []string {
	if first == "" {
		first = "1"
	}
	serials := []string{first}
	for _, sn := range []string{"0", "2", "3"} {
		if sn != first {
			serials = append(serials, sn)
		}
	}
	if first != "1" {
		serials = append(serials, "1")
	}
	return serials
}

func (c *Client) download(ctx context.Context, endpoint string, params map[string]string, referer string, item dataset.FilteredItem) (*Payload, error) {
	headers := map[string]string{
		"Referer": referer,
		"Accept":  "*/*",
	}

	resp, err := c.get(ctx, "download file", endpoint, params, headers)
	if err != nil {
		return nil, err
	}

	data := resp.Body()
	sourceURL := resp.Request.URL
	contentType := resp.Header().Get("Content-Type")

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", sourceURL, ErrEmptyPayload)
	}

	detected := mimetype.Detect(data)
	if isHTML(contentType, detected) {
		return nil, &HTMLResponseError{URL: sourceURL, Message: readableText(data, sourceURL)}
	}

	filename := dispositionFilename(resp.Header().Get("Content-Disposition"))

	if contentType == "" {
		contentType = detected.String()
	}

	return &Payload{
		Data:             data,
		Extension:        ResolveExtension(filename, item.Formats, detected),
		OriginalFilename: filename,
		ContentType:      contentType,
		SourceURL:        sourceURL,
	}, nil
}

func isHTML(contentType string, detected *mimetype.MIME) bool {
	if strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml") {
		return true
	}
	return detected.Is("text/html")
}

// readableText returns a short plain-text summary of an HTML page for failure reasons.
func readableText(data []byte, pageURL string) string {
	u, _ := url.Parse(pageURL)

	text := ""
	if article, err := readability.FromReader(bytes.NewReader(data), u); err == nil {
		text = article.TextContent
	}
	text = cleanText(text)

	runes := []rune(text)
	if len(runes) > htmlMessageLimit {
		text = string(runes[:htmlMessageLimit])
	}
	return text
}

// dispositionFilename extracts the server supplied filename, decoding RFC 2231 and
// percent-encoded names.
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}

	name := ""
	if _, params, err := mime.ParseMediaType(header); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if m := filenameRe.FindStringSubmatch(header); m != nil {
			name = strings.TrimSpace(m[1])
		}
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	return name
}

// ResolveExtension picks the stored file extension: the server supplied filename first, then
// the dataset's declared formats, then the sniffed content type.
func ResolveExtension(filename string, formats []string, detected *mimetype.MIME) string {
	if ext := strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")); ext != "" {
		return ext
	}
	if ext, ok := dataset.ExtensionFor(formats); ok {
		return ext
	}
	if detected != nil {
		if ext := strings.TrimPrefix(detected.Extension(), "."); ext != "" {
			return ext
		}
	}
	return "bin"
}
