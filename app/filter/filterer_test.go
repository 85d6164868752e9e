package filter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"golang.org/x/text/unicode/norm"
)

func item(title string, formats []string, download bool) dataset.FilteredItem {
	return dataset.FilteredItem{
		ListItem: dataset.ListItem{ID: "1", Title: title, HasDownloadButton: download},
		Formats:  formats,
	}
}

func TestFilterer_NoPredicates(t *testing.T) {
	filterer := NewFilterer()

	result := filterer.Run([]dataset.FilteredItem{item("anything", nil, false)})

	if len(result) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(result))
	}
	if !result[0].Accepted {
		t.Errorf("Item should be accepted when no predicates are configured")
	}
	if result[0].RejectReason != "" {
		t.Errorf("Expected empty reject reason, got: %s", result[0].RejectReason)
	}
}

func TestFilterer_DefaultRules(t *testing.T) {
	filterer := DefaultRules().Filterer()

	items := []dataset.FilteredItem{
		item("전북특별자치도 전주시 공영주차장 현황", []string{"CSV"}, true),
		item("서울특별시 공영주차장 현황", []string{"CSV"}, true),
		item("전라북도 관광지 정보", []string{"JSON"}, true),
		item("전북 버스정류장", []string{"XLSX"}, false),
		item("전북 버스정류장", nil, true),
	}

	result := filterer.Run(items)

	if len(result) != 5 {
		t.Fatalf("Expected 5 items, got %d", len(result))
	}

	if !result[0].Accepted {
		t.Errorf("First item should be accepted, got reason: %s", result[0].RejectReason)
	}
	if result[1].Accepted || !strings.HasPrefix(result[1].RejectReason, "title_keywords") {
		t.Errorf("Second item should be rejected by title, got: %v %s", result[1].Accepted, result[1].RejectReason)
	}
	if result[2].Accepted || !strings.HasPrefix(result[2].RejectReason, "format_allowed") {
		t.Errorf("Third item should be rejected by format, got: %v %s", result[2].Accepted, result[2].RejectReason)
	}
	if result[3].Accepted || !strings.HasPrefix(result[3].RejectReason, "download_available") {
		t.Errorf("Fourth item should be rejected by download button, got: %v %s", result[3].Accepted, result[3].RejectReason)
	}
	if result[4].Accepted {
		t.Errorf("Fifth item should be rejected, format is unknown")
	}
}

func TestTitleKeywords_CaseSensitiveWithoutNormalize(t *testing.T) {
	strict := TitleKeywords{Keywords: []string{"Jeonbuk"}}
	loose := TitleKeywords{Keywords: []string{"Jeonbuk"}, Normalize: true}

	it := item("JEONBUK parking lots", nil, true)

	if ok, _ := strict.Check(it); ok {
		t.Errorf("Strict predicate should not match different case")
	}
	if ok, reason := loose.Check(it); !ok {
		t.Errorf("Normalized predicate should match, got: %s", reason)
	}
}

func TestTitleKeywords_NormalizesDecomposedHangul(t *testing.T) {
	composed := "\uc804\ubd81 \uc8fc\ucc28\uc7a5"
	decomposed := norm.NFD.String(composed)
	if decomposed == composed {
		t.Fatalf("Expected NFD form to differ from NFC input")
	}

	predicate := TitleKeywords{Keywords: []string{"\uc804\ubd81"}, Normalize: true}

	if ok, reason := predicate.Check(item(decomposed, nil, true)); !ok {
		t.Errorf("Expected NFC normalization to match decomposed title, got: %s", reason)
	}

	strict := TitleKeywords{Keywords: []string{"\uc804\ubd81"}}
	if ok, _ := strict.Check(item(decomposed, nil, true)); ok {
		t.Errorf("Expected strict comparison to miss decomposed title")
	}
}

func TestTitleKeywords_ProviderField(t *testing.T) {
	predicate := TitleKeywords{Keywords: []string{"전라북도"}, Fields: []string{"title", "provider"}}

	it := item("공영주차장 현황", nil, true)
	it.Provider = "전라북도 전주시"

	if ok, reason := predicate.Check(it); !ok {
		t.Errorf("Expected provider field to match, got: %s", reason)
	}
}

func TestFormatAllowed_AllowUnknown(t *testing.T) {
	predicate := FormatAllowed{Allowed: []string{"CSV"}, AllowUnknown: true}

	if ok, _ := predicate.Check(item("x", nil, true)); !ok {
		t.Errorf("Unknown format should pass when allowed")
	}
	if ok, _ := predicate.Check(item("x", []string{"csv"}, true)); !ok {
		t.Errorf("Format comparison should ignore case")
	}
}

type providerIs string

func (p providerIs) Name() string { return "provider_is" }

func (p providerIs) Check(it dataset.FilteredItem) (bool, string) {
	if it.Provider == string(p) {
		return true, ""
	}
	return false, "provider mismatch"
}

func TestFilterer_CustomPredicate(t *testing.T) {
	filterer := NewFilterer(DownloadAvailable{}, providerIs("전북특별자치도"))

	it := item("x", nil, true)
	it.Provider = "서울특별시"

	ok, reason := filterer.Evaluate(it)
	if ok {
		t.Fatalf("Expected rejection by custom predicate")
	}
	if reason != "provider_is: provider mismatch" {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestLoadRules(t *testing.T) {
	tempDir := t.TempDir()

	content := `
title:
  keywords: ["전북"]
  fields: ["title", "provider"]
formats:
  allow: ["CSV"]
`
	path := filepath.Join(tempDir, "filters.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(rules.Title.Fields) != 2 {
		t.Errorf("Expected 2 title fields, got %d", len(rules.Title.Fields))
	}
	if rules.RequireDownload == nil || !*rules.RequireDownload {
		t.Errorf("Expected require_download to default to true")
	}
	if n := len(rules.Filterer().Predicates()); n != 3 {
		t.Errorf("Expected 3 predicates, got %d", n)
	}
}

func TestLoadRules_InvalidField(t *testing.T) {
	tempDir := t.TempDir()

	content := `
title:
  keywords: ["전북"]
  fields: ["body"]
`
	path := filepath.Join(tempDir, "filters.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadRules(path); err == nil {
		t.Errorf("Expected error for invalid title field")
	}
}

func TestLoadRules_DisableDownloadRequirement(t *testing.T) {
	tempDir := t.TempDir()

	content := `
title:
  keywords: ["전북"]
require_download: false
`
	path := filepath.Join(tempDir, "filters.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, p := range rules.Filterer().Predicates() {
		if p.Name() == "download_available" {
			t.Errorf("download_available should be disabled")
		}
	}
}
