package dataset

import (
	"testing"
	"time"
)

func filteredItems(ids ...string) []FilteredItem {
	items := make([]FilteredItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, FilteredItem{ListItem: ListItem{ID: ID(id), Title: "item " + id}, Accepted: true})
	}
	return items
}

func TestParseIDs_SplitsWhitespaceAndCommas(t *testing.T) {
	set := ParseIDs([]string{"15104486 15001234", "15009999,15104486", " "})

	want := []string{"15104486", "15001234", "15009999"}
	got := set.Strings()
	if len(got) != len(want) {
		t.Fatalf("Expected %d ids, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected id %d to be %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSelect_LimitTakesFirstInCollectionOrder(t *testing.T) {
	items := filteredItems("1", "2", "3", "4", "5")

	selected := Select(items, NewIDSet(), 2)

	if len(selected) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(selected))
	}
	if selected[0].ID != "1" || selected[1].ID != "2" {
		t.Errorf("Expected items 1 and 2, got %s and %s", selected[0].ID, selected[1].ID)
	}
}

func TestSelect_IDsRegardlessOfPosition(t *testing.T) {
	items := filteredItems("1", "2", "3", "4", "5")

	selected := Select(items, NewIDSet("5", "2"), 0)

	if len(selected) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(selected))
	}
	// collection order is kept
	if selected[0].ID != "2" || selected[1].ID != "5" {
		t.Errorf("Expected items 2 and 5, got %s and %s", selected[0].ID, selected[1].ID)
	}
}

func TestSelect_LimitAppliesToRestrictedSubset(t *testing.T) {
	items := filteredItems("1", "2", "3", "4", "5")

	selected := Select(items, NewIDSet("4", "3", "5"), 2)

	if len(selected) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(selected))
	}
	if selected[0].ID != "3" || selected[1].ID != "4" {
		t.Errorf("Expected items 3 and 4, got %s and %s", selected[0].ID, selected[1].ID)
	}
}

func TestMissing(t *testing.T) {
	items := filteredItems("1", "2")

	missing := Missing(items, NewIDSet("2", "7"))

	if len(missing) != 1 || missing[0] != "7" {
		t.Errorf("Expected [7] to be missing, got %v", missing)
	}
}

func TestNewFilteredItem_DetailOverridesListing(t *testing.T) {
	item := ListItem{
		ID:                "15104486",
		Title:             "전북특별자치도 버스정류장 현황",
		Provider:          "listing provider",
		FormatTypes:       []string{"XLSX"},
		HasDownloadButton: false,
	}
	detail := Detail{
		Provider:          "전북특별자치도",
		Extension:         "CSV",
		HasDownloadButton: true,
		FileDetailID:      "uddi:4ef35411_1",
	}

	fi := NewFilteredItem(item, detail, time.Now())

	if fi.Provider != "전북특별자치도" {
		t.Errorf("Expected detail provider, got %s", fi.Provider)
	}
	if !fi.HasDownloadButton {
		t.Errorf("Expected detail download affordance to win")
	}
	if len(fi.Formats) != 1 || fi.Formats[0] != "CSV" {
		t.Errorf("Expected formats [CSV], got %v", fi.Formats)
	}
	if fi.ItemID() != "15104486" {
		t.Errorf("Expected ID to be preserved, got %s", fi.ItemID())
	}
}

func TestSplitFormats(t *testing.T) {
	formats := SplitFormats(" csv, .xlsx / HWP ")

	want := []string{"CSV", "XLSX", "HWP"}
	if len(formats) != len(want) {
		t.Fatalf("Expected %v, got %v", want, formats)
	}
	for i := range want {
		if formats[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, formats[i])
		}
	}

	if ext, ok := ExtensionFor([]string{"UNKNOWN", "shp"}); !ok || ext != "zip" {
		t.Errorf("Expected shp to map to zip, got %q (%v)", ext, ok)
	}
}
