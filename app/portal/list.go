package portal

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

var (
	updatePageRe = regexp.MustCompile(`updatePage\((\d+)\)`)
	totalCountRe = regexp.MustCompile(`총\s*([0-9,]+)\s*건`)
	datasetIDRe  = regexp.MustCompile(`/data/(\d+)/fileData`)
)

// ListPage is one parsed page of search results.
type ListPage struct {
	Page       int
	TotalPages int
	Items      []dataset.ListItem

	// Invalid holds entries that were present on the page but could not be turned into an
	// item, such as a result without a dataset link.
	Invalid []*ParseError
}

// FetchListPage requests one page of FILE dataset search results for keyword.
func (c *Client) FetchListPage(ctx context.Context, keyword string, page int) (*ListPage, error) {
	params := map[string]string{
		"dType":       "FILE",
		"keyword":     keyword,
		"operator":    "AND",
		"perPage":     strconv.Itoa(c.perPage),
		"currentPage": strconv.Itoa(page),
	}

	resp, err := c.get(ctx, "fetch list page", listPath, params, nil)
	if err != nil {
		return nil, err
	}

	c.dump.write(fmt.Sprintf("list_%d.html", page), resp.Body())

	return ParseListPage(resp.Body(), resp.Request.URL, page, c.perPage)
}

// ParseListPage extracts items and the total page count from a search result page. pageURL
// is used to resolve relative detail links.
func ParseListPage(body []byte, pageURL string, page, perPage int) (*ListPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Reason: err.Error()}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &ParseError{URL: pageURL, Reason: err.Error()}
	}

	result := &ListPage{
		Page:       page,
		TotalPages: totalPages(doc, perPage),
	}

	doc.Find("div.result-list > ul > li").Each(func(i int, s *goquery.Selection) {
		item, perr := parseListEntry(s, base)
		if perr != nil {
			perr.URL = pageURL
			result.Invalid = append(result.Invalid, perr)
			return
		}
		item.Page = page
		result.Items = append(result.Items, item)
	})

	return result, nil
}

func parseListEntry(s *goquery.Selection, base *url.URL) (dataset.ListItem, *ParseError) {
	link := s.Find("dl dt a").First()
	if link.Length() == 0 {
		return dataset.ListItem{}, &ParseError{Reason: "result entry has no title link"}
	}

	title := cleanText(link.Clone().Find("span.data-format, span.tagset").Remove().End().Text())

	href, _ := link.Attr("href")
	detailURL := ""
	if href != "" {
		if ref, err := url.Parse(href); err == nil {
			detailURL = base.ResolveReference(ref).String()
		}
	}

	match := datasetIDRe.FindStringSubmatch(detailURL)
	if match == nil {
		return dataset.ListItem{}, &ParseError{Reason: fmt.Sprintf("no dataset id in link %q (%s)", href, title)}
	}

	var formats []string
	s.Find("dl dt span.data-format, dl dt span.tagset").Each(func(_ int, f *goquery.Selection) {
		if text := cleanText(f.Text()); text != "" {
			formats = append(formats, strings.ToUpper(text))
		}
	})

	provider := cleanText(s.Find(`p:contains("제공기관") > span.data`).First().Text())

	download := s.Find(`a:contains("다운로드"), a.download-btn, a.btn-download, a[onclick*="download"]`).Length() > 0

	return dataset.ListItem{
		ID:                dataset.ID(match[1]),
		Title:             title,
		Provider:          provider,
		DetailURL:         detailURL,
		FormatTypes:       formats,
		HasDownloadButton: download,
	}, nil
}

// totalPages reads the page count from the last-page control, then from the "총 N 건"
// result count, then from the highest numbered page link.
func totalPages(doc *goquery.Document, perPage int) int {
	if onclick, ok := doc.Find("nav.pagination a.control.last").First().Attr("onclick"); ok {
		if m := updatePageRe.FindStringSubmatch(onclick); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}

	countText := doc.Find(".result-count strong").First().Text()
	if countText == "" {
		doc.Find("strong").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if totalCountRe.MatchString(s.Text()) {
				countText = s.Text()
				return false
			}
			return true
		})
	}
	if m := totalCountRe.FindStringSubmatch(countText); m != nil {
		if total, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			if perPage <= 0 {
				perPage = DefaultPerPage
			}
			return (total + perPage - 1) / perPage
		}
	}

	maxPage := 1
	doc.Find("nav.pagination a").Each(func(_ int, s *goquery.Selection) {
		onclick, _ := s.Attr("onclick")
		if m := updatePageRe.FindStringSubmatch(onclick); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	return maxPage
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
