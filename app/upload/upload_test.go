package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/portal"
	"github.com/lysyi3m/opendata-harvest/app/storage"
)

func TestFilename(t *testing.T) {
	metadata := &dataset.Metadata{
		FilteredItem: dataset.FilteredItem{
			ListItem:     dataset.ListItem{ID: "15000001", Title: "전라북도 공영주차장 현황 (2025)"},
			FileDataName: "전라북도_공영주차장/현황",
		},
	}

	if name := Filename("parking", metadata, "15000001", ".csv"); name != "parking.csv" {
		t.Errorf("Custom name should win, got %s", name)
	}
	if name := Filename("", metadata, "15000001", ".csv"); name != "전라북도_공영주차장현황.csv" {
		t.Errorf("Unexpected file data name based filename %s", name)
	}

	metadata.FileDataName = ""
	if name := Filename("", metadata, "15000001", ".csv"); name != "15000001_전라북도_공영주차장_현황_2025.csv" {
		t.Errorf("Unexpected title based filename %s", name)
	}

	metadata.Title = ""
	if name := Filename("", metadata, "15000001", ".csv"); name != "15000001.csv" {
		t.Errorf("Unexpected id based filename %s", name)
	}
}

func TestFilename_KeepsExistingExtension(t *testing.T) {
	metadata := &dataset.Metadata{FilteredItem: dataset.FilteredItem{FileDataName: "주차장.xlsx"}}

	if name := Filename("", metadata, "1", ".xlsx"); name != "주차장.xlsx" {
		t.Errorf("Expected name to be kept, got %s", name)
	}
}

func TestFilename_TruncatesTitle(t *testing.T) {
	title := ""
	for i := 0; i < 60; i++ {
		title += "가"
	}
	metadata := &dataset.Metadata{FilteredItem: dataset.FilteredItem{ListItem: dataset.ListItem{Title: title}}}

	name := Filename("", metadata, "7", ".pdf")
	if got := len([]rune(name)); got != len([]rune("7_"))+maxTitleLength+len(".pdf") {
		t.Errorf("Expected title to be cut to %d runes, got %q", maxTitleLength, name)
	}
}

func TestDescription(t *testing.T) {
	metadata := &dataset.Metadata{FilteredItem: dataset.FilteredItem{ListItem: dataset.ListItem{Title: "제목"}}}
	if d := Description(metadata); d != "제목" {
		t.Errorf("Expected title fallback, got %s", d)
	}
	metadata.Description = "설명"
	if d := Description(metadata); d != "설명" {
		t.Errorf("Expected description, got %s", d)
	}
}

func TestClient_Send(t *testing.T) {
	var gotAuth, gotDescription, gotFilename string
	var gotAuto AutoDescription
	var gotSize int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}
		gotDescription = r.FormValue("description")
		json.Unmarshal([]byte(r.FormValue("auto_description")), &gotAuto)

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file part: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		gotFilename = header.Filename
		gotSize = len(data)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"timestamp":"2026-01-01 00:00:00","id":"abc","location":"/files/abc","file_info":{"filename":%q,"size":%d,"type":"text/csv"},"message":"ok"}`, header.Filename, len(data))
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{URL: server.URL + "/api/upload", Token: "secret"})
	if err != nil {
		t.Fatal(err)
	}

	metadata := &dataset.Metadata{FilteredItem: dataset.FilteredItem{
		ListItem: dataset.ListItem{ID: "15000001", Title: "공영주차장"},
		Keywords: []string{"주차"},
	}}

	receipt, err := client.Send(context.Background(), Request{
		Filename:        "주차장.csv",
		Data:            []byte("a,b\n1,2\n"),
		Description:     Description(metadata),
		AutoDescription: NewAutoDescription("15000001", metadata, ".csv", time.Now()),
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer token, got %q", gotAuth)
	}
	if gotDescription != "공영주차장" {
		t.Errorf("Unexpected description %q", gotDescription)
	}
	if gotAuto.DataID != "15000001" || len(gotAuto.Keywords) != 1 {
		t.Errorf("Unexpected auto_description %+v", gotAuto)
	}
	if gotFilename != "주차장.csv" || gotSize != 8 {
		t.Errorf("Unexpected file part %s (%d bytes)", gotFilename, gotSize)
	}
	if receipt.Location != "/files/abc" || receipt.FileInfo.Size != 8 {
		t.Errorf("Unexpected receipt %+v", receipt)
	}
}

func TestClient_Send_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"success":false,"error":"file is required"}`)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{URL: server.URL})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Send(context.Background(), Request{Filename: "x.csv", Data: []byte("x")})

	var terr *portal.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 TransportError, got %v", err)
	}
	if portal.IsUnreachable(err) {
		t.Errorf("A refused upload is not an unreachable server")
	}
}

func TestClient_Send_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := NewClient(ClientOptions{URL: url})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.Send(context.Background(), Request{Filename: "x.csv", Data: []byte("x")})
	if !portal.IsUnreachable(err) {
		t.Errorf("Expected unreachable error, got %v", err)
	}
}

func TestResultsSource(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewStore(filepath.Join(dir, "downloaded_data"))
	resultsPath := filepath.Join(dir, "download_results.json")

	results := &artifact.Results[dataset.DownloadResult]{}
	results.Merge("run", []dataset.DownloadResult{
		{ID: "1", Title: "a", Status: dataset.StatusSucceeded, DirPath: "/elsewhere/1"},
		{ID: "2", Title: "b", Status: dataset.StatusFailed},
		{ID: "3", Title: "c", Status: dataset.StatusSucceeded},
	}, time.Now())
	if err := results.Save(resultsPath); err != nil {
		t.Fatal(err)
	}

	source, err := NewSource(dataset.SourceDownloadResults, resultsPath, store)
	if err != nil {
		t.Fatal(err)
	}
	candidates, err := source.Candidates()
	if err != nil {
		t.Fatal(err)
	}

	if len(candidates) != 2 {
		t.Fatalf("Expected 2 succeeded candidates, got %d", len(candidates))
	}
	if candidates[0].Dir != "/elsewhere/1" {
		t.Errorf("Expected recorded dir, got %s", candidates[0].Dir)
	}
	if candidates[1].Dir != store.ItemDir("3") {
		t.Errorf("Expected store dir, got %s", candidates[1].Dir)
	}
}

func TestDirectorySource(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	for _, id := range []dataset.ID{"20", "3"} {
		metadata := dataset.Metadata{FilteredItem: dataset.FilteredItem{ListItem: dataset.ListItem{ID: id, Title: "title " + id.String()}}}
		if err := store.WriteMetadata(id, metadata); err != nil {
			t.Fatal(err)
		}
	}

	source, err := NewSource(dataset.SourceDirectory, "", store)
	if err != nil {
		t.Fatal(err)
	}
	candidates, err := source.Candidates()
	if err != nil {
		t.Fatal(err)
	}

	if len(candidates) != 2 || candidates[0].ID != "3" || candidates[1].ID != "20" {
		t.Fatalf("Unexpected candidates %+v", candidates)
	}
	if candidates[1].Title != "title 20" {
		t.Errorf("Expected title from metadata, got %s", candidates[1].Title)
	}
}

func TestDirectorySource_SkipsFailedDownloads(t *testing.T) {
	store := storage.NewStore(t.TempDir())
	for _, id := range []dataset.ID{"1", "2"} {
		metadata := dataset.Metadata{
			FilteredItem: dataset.FilteredItem{ListItem: dataset.ListItem{ID: id}},
			DownloadInfo: dataset.DownloadInfo{FileExt: "csv", Status: dataset.StatusSucceeded},
		}
		if err := store.WriteMetadata(id, metadata); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.MarkFailed("2", "download failed"); err != nil {
		t.Fatal(err)
	}

	candidates, err := (&DirectorySource{Store: store}).Candidates()
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].ID != "1" {
		t.Errorf("Expected only item 1, got %+v", candidates)
	}
}

func TestNewSource_Unknown(t *testing.T) {
	if _, err := NewSource("ftp", "", nil); err == nil {
		t.Errorf("Expected error for unknown source")
	}
}
