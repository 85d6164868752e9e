package filter

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the YAML form of the detail-stage predicate chain:
//
//	title:
//	  keywords: ["전북", "전라북도", "전북특별자치도"]
//	  fields: ["title"]
//	  normalize: true
//	formats:
//	  allow: ["CSV", "XLSX"]
//	  allow_unknown: false
//	require_download: true
type Rules struct {
	Title           TitleRule  `yaml:"title"`
	Formats         FormatRule `yaml:"formats"`
	RequireDownload *bool      `yaml:"require_download"`
}

type TitleRule struct {
	Keywords  []string `yaml:"keywords"`
	Fields    []string `yaml:"fields"`
	Normalize bool     `yaml:"normalize"`
}

type FormatRule struct {
	Allow        []string `yaml:"allow"`
	AllowUnknown bool     `yaml:"allow_unknown"`
}

var (
	DefaultTitleKeywords  = []string{"전북", "전라북도", "전북특별자치도"}
	DefaultAllowedFormats = []string{"CSV", "XLSX", "DOCX", "HWPX", "PDF", "XLS", "HWP"}
)

func DefaultRules() *Rules {
	requireDownload := true
	return &Rules{
		Title: TitleRule{
			Keywords:  append([]string(nil), DefaultTitleKeywords...),
			Fields:    []string{"title"},
			Normalize: true,
		},
		Formats: FormatRule{
			Allow: append([]string(nil), DefaultAllowedFormats...),
		},
		RequireDownload: &requireDownload,
	}
}

// LoadRules reads a rules file. An empty path yields DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	rules.setDefaults()

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}

	slog.Debug("Filter rules loaded", "path", path, "keywords", len(rules.Title.Keywords), "formats", len(rules.Formats.Allow))

	return &rules, nil
}

func (r *Rules) setDefaults() {
	if len(r.Title.Fields) == 0 {
		r.Title.Fields = []string{"title"}
	}
	if r.RequireDownload == nil {
		requireDownload := true
		r.RequireDownload = &requireDownload
	}
}

func (r *Rules) Validate() error {
	validFields := map[string]bool{
		"title":          true,
		"provider":       true,
		"description":    true,
		"file_data_name": true,
		"keywords":       true,
		"category":       true,
	}

	for i, field := range r.Title.Fields {
		if !validFields[field] {
			return fmt.Errorf("invalid title field at index %d: %s", i, field)
		}
	}

	for i, keyword := range r.Title.Keywords {
		if keyword == "" {
			return fmt.Errorf("empty title keyword at index %d", i)
		}
	}

	for i, format := range r.Formats.Allow {
		if format == "" {
			return fmt.Errorf("empty format at index %d", i)
		}
	}

	return nil
}

// Filterer builds the predicate chain. A rule section left empty contributes no predicate.
func (r *Rules) Filterer() *Filterer {
	var predicates []Predicate

	if len(r.Title.Keywords) > 0 {
		predicates = append(predicates, TitleKeywords{
			Keywords:  r.Title.Keywords,
			Fields:    r.Title.Fields,
			Normalize: r.Title.Normalize,
		})
	}

	if len(r.Formats.Allow) > 0 {
		predicates = append(predicates, FormatAllowed{
			Allowed:      r.Formats.Allow,
			AllowUnknown: r.Formats.AllowUnknown,
		})
	}

	if r.RequireDownload == nil || *r.RequireDownload {
		predicates = append(predicates, DownloadAvailable{})
	}

	return NewFilterer(predicates...)
}
