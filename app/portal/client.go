package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL   = "https://www.data.go.kr"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	DefaultPerPage   = 10

	listPath         = "/tcs/dss/selectDataSetList.do"
	fileInfoPath     = "/tcs/dss/selectFileDataDownload.do"
	fileDownloadPath = "/cmm/cmm/fileDownload.do"
)

type ClientOptions struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	PerPage   int

	// DebugHTMLDir, when set, receives a copy of every fetched listing and detail page.
	DebugHTMLDir string
}

// Client talks to the open-data portal. It is not safe for concurrent use; stages call it
// sequentially.
type Client struct {
	http    *resty.Client
	baseURL string
	perPage int
	dump    *htmlDump
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	var dump *htmlDump
	if opts.DebugHTMLDir != "" {
		dump, err = newHTMLDump(opts.DebugHTMLDir)
		if err != nil {
			return nil, err
		}
	}

	return &Client{
		http:    client,
		baseURL: baseURL,
		perPage: perPage,
		dump:    dump,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) PerPage() int {
	return c.perPage
}

// get performs a GET and converts failures into TransportError. Non-200 answers are errors.
func (c *Client) get(ctx context.Context, op, path string, params map[string]string, headers map[string]string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, &TransportError{Op: op, URL: c.absolute(path), Err: err}
	}

	if resp.StatusCode() != http.StatusOK {
		return resp, &TransportError{Op: op, URL: resp.Request.URL, StatusCode: resp.StatusCode()}
	}

	return resp, nil
}

func (c *Client) absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// DetailURL returns the detail page address of a dataset.
func (c *Client) DetailURL(id string) string {
	return fmt.Sprintf("%s/data/%s/fileData.do", c.baseURL, id)
}
