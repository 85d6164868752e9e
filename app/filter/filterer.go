package filter

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Predicate is one named acceptance rule. Check returns false together with a human-readable
// reason when the item is rejected.
type Predicate interface {
	Name() string
	Check(item dataset.FilteredItem) (bool, string)
}

type Filterer struct {
	predicates []Predicate
}

func NewFilterer(predicates ...Predicate) *Filterer {
	return &Filterer{predicates: predicates}
}

func (f *Filterer) Predicates() []Predicate {
	return f.predicates
}

// Evaluate runs every predicate with logical AND and stops at the first rejection.
func (f *Filterer) Evaluate(item dataset.FilteredItem) (bool, string) {
	for _, predicate := range f.predicates {
		if ok, reason := predicate.Check(item); !ok {
			return false, fmt.Sprintf("%s: %s", predicate.Name(), reason)
		}
	}
	return true, ""
}

// Run stamps Accepted/RejectReason on every item and keeps the input order.
func (f *Filterer) Run(items []dataset.FilteredItem) []dataset.FilteredItem {
	out := make([]dataset.FilteredItem, 0, len(items))
	for _, item := range items {
		item.Accepted, item.RejectReason = f.Evaluate(item)
		out = append(out, item)
	}
	return out
}

// TitleKeywords accepts items whose title (or any other configured field) contains at least
// one keyword.
type TitleKeywords struct {
	Keywords  []string
	Fields    []string
	Normalize bool
}

func (p TitleKeywords) Name() string {
	return "title_keywords"
}

func (p TitleKeywords) Check(item dataset.FilteredItem) (bool, string) {
	fields := p.Fields
	if len(fields) == 0 {
		fields = []string{"title"}
	}

	for _, field := range fields {
		value := p.prepare(fieldValue(item, field))
		for _, keyword := range p.Keywords {
			if keyword != "" && strings.Contains(value, p.prepare(keyword)) {
				return true, ""
			}
		}
	}

	return false, fmt.Sprintf("%s does not contain any of %v", strings.Join(fields, "/"), p.Keywords)
}

func (p TitleKeywords) prepare(s string) string {
	if !p.Normalize {
		return s
	}
	return cases.Fold().String(norm.NFC.String(s))
}

// FormatAllowed accepts items whose effective format set intersects the allow-set.
type FormatAllowed struct {
	Allowed      []string
	AllowUnknown bool
}

func (p FormatAllowed) Name() string {
	return "format_allowed"
}

func (p FormatAllowed) Check(item dataset.FilteredItem) (bool, string) {
	if len(item.Formats) == 0 {
		if p.AllowUnknown {
			return true, ""
		}
		return false, "no file format reported"
	}

	for _, format := range item.Formats {
		for _, allowed := range p.Allowed {
			if strings.EqualFold(format, allowed) {
				return true, ""
			}
		}
	}

	return false, fmt.Sprintf("formats %v not in %v", item.Formats, p.Allowed)
}

// DownloadAvailable accepts items whose detail page shows a download button.
type DownloadAvailable struct{}

func (DownloadAvailable) Name() string {
	return "download_available"
}

func (DownloadAvailable) Check(item dataset.FilteredItem) (bool, string) {
	if item.HasDownloadButton {
		return true, ""
	}
	return false, "no download button on detail page"
}

func fieldValue(item dataset.FilteredItem, field string) string {
	switch field {
	case "title":
		return item.Title
	case "provider":
		return item.Provider
	case "description":
		return item.Description
	case "file_data_name":
		return item.FileDataName
	case "keywords":
		return strings.Join(item.Keywords, " ")
	case "category":
		return item.Category
	default:
		return ""
	}
}
