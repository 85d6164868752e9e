package portal

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

var quotedArgRe = regexp.MustCompile(`'([^']*)'`)

// detailLabels maps detail table header labels to setters. Order matters: the first label
// contained in a header wins.
var detailLabels = []struct {
	label string
	set   func(d *dataset.Detail, value string, cell *goquery.Selection)
}{
	{"파일데이터명", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.FileDataName = v }},
	{"분류체계", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Category = v }},
	{"제공기관", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Provider = v }},
	{"관리부서명", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Department = v }},
	{"관리부서 전화번호", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.ContactPhone = v }},
	{"수집방법", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.CollectionMethod = v }},
	{"업데이트 주기", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.UpdateCycle = v }},
	{"차기 등록 예정일", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.NextUpdateDate = v }},
	{"확장자", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Extension = v }},
	{"키워드", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Keywords = splitKeywords(v) }},
	{"등록일", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.RegisterDate = v }},
	{"수정일", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.UpdateDate = v }},
	{"제공형태", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.ProvisionType = v }},
	{"설명", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Description = v }},
	{"기타 유의사항", func(d *dataset.Detail, v string, _ *goquery.Selection) { d.Note = v }},
	{"이용허락범위", func(d *dataset.Detail, v string, cell *goquery.Selection) {
		if v == "" {
			v = cleanText(cell.Find("a").First().Text())
		}
		d.License = v
	}},
}

// FetchDetail requests and parses the detail page of a listed dataset.
func (c *Client) FetchDetail(ctx context.Context, item dataset.ListItem) (*dataset.Detail, error) {
	detailURL := item.DetailURL
	if detailURL == "" {
		detailURL = c.DetailURL(item.ID.String())
	}

	headers := map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	}

	resp, err := c.get(ctx, "fetch detail page", detailURL, nil, headers)
	if err != nil {
		return nil, err
	}

	c.dump.write(fmt.Sprintf("debug_%s.html", item.ID), resp.Body())

	return ParseDetailPage(resp.Body(), detailURL)
}

// ParseDetailPage reads the metadata table and the download affordance of a detail page.
func ParseDetailPage(body []byte, pageURL string) (*dataset.Detail, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ParseError{URL: pageURL, Reason: err.Error()}
	}

	table := metadataTable(doc)
	if table == nil {
		return nil, &ParseError{URL: pageURL, Reason: "metadata table not found"}
	}

	detail := &dataset.Detail{}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		values := row.Find("td")
		row.Find("th").Each(func(i int, th *goquery.Selection) {
			if i >= values.Length() {
				return
			}
			header := cleanText(th.Text())
			cell := values.Eq(i)
			value := cleanText(cell.Text())

			for _, l := range detailLabels {
				if strings.Contains(header, l.label) {
					l.set(detail, value, cell)
					break
				}
			}
		})
	})

	parseDownloadButton(doc, detail)

	return detail, nil
}

// metadataTable picks the file metadata table. Detail pages carry two
// .dataset-table.fileDataDetail tables and the second one holds the file fields.
func metadataTable(doc *goquery.Document) *goquery.Selection {
	tables := doc.Find(".dataset-table.fileDataDetail")
	switch {
	case tables.Length() >= 2:
		return tables.Eq(1)
	case tables.Length() == 1:
		return tables.First()
	}
	return nil
}

func parseDownloadButton(doc *goquery.Document, detail *dataset.Detail) {
	var button *goquery.Selection
	doc.Find("a, button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if strings.Contains(text, "다운로드") && !strings.Contains(strings.ToLower(text), "meta") {
			button = s
			return false
		}
		return true
	})

	if button == nil {
		detail.HasDownloadButton = false
		return
	}

	detail.HasDownloadButton = true
	detail.DownloadBtnText = cleanText(button.Text())

	onclick, _ := button.Attr("onclick")
	args := quotedArgRe.FindAllStringSubmatch(onclick, -1)
	if len(args) >= 2 {
		detail.FileID = args[0][1]
		detail.FileDetailID = args[1][1]
		for _, arg := range args[2:] {
			detail.DownloadParams = append(detail.DownloadParams, arg[1])
		}
	}
}

func splitKeywords(value string) []string {
	var keywords []string
	for _, k := range strings.Split(value, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}
