package upload

import (
	"fmt"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
	"github.com/lysyi3m/opendata-harvest/app/storage"
)

// Candidate is one item offered for upload.
type Candidate struct {
	ID    dataset.ID
	Title string
	Dir   string
}

func (c Candidate) ItemID() dataset.ID {
	return c.ID
}

// Source enumerates upload candidates. The set of implementations is closed: ResultsSource
// and DirectorySource.
type Source interface {
	Kind() dataset.UploadSourceKind
	Candidates() ([]Candidate, error)
	source()
}

// ResultsSource offers the succeeded entries of a download results file.
type ResultsSource struct {
	ResultsPath string
	Store       *storage.Store
}

func (s *ResultsSource) Kind() dataset.UploadSourceKind {
	return dataset.SourceDownloadResults
}

func (s *ResultsSource) Candidates() ([]Candidate, error) {
	var results artifact.Results[dataset.DownloadResult]
	if err := artifact.ReadJSON(s.ResultsPath, &results); err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, result := range results.Items {
		if result.Status != dataset.StatusSucceeded {
			continue
		}
		dir := result.DirPath
		if dir == "" {
			dir = s.Store.ItemDir(result.ID)
		}
		candidates = append(candidates, Candidate{ID: result.ID, Title: result.Title, Dir: dir})
	}
	return candidates, nil
}

func (s *ResultsSource) source() {}

// DirectorySource offers every item folder of the download store that has metadata.json,
// except the ones whose latest download failed.
type DirectorySource struct {
	Store *storage.Store
}

func (s *DirectorySource) Kind() dataset.UploadSourceKind {
	return dataset.SourceDirectory
}

func (s *DirectorySource) Candidates() ([]Candidate, error) {
	ids, err := s.Store.Scan()
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		candidate := Candidate{ID: id, Dir: s.Store.ItemDir(id)}
		if metadata, err := s.Store.ReadMetadata(id); err == nil {
			if metadata.DownloadInfo.Status == dataset.StatusFailed {
				continue
			}
			candidate.Title = metadata.Title
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (s *DirectorySource) source() {}

func NewSource(kind dataset.UploadSourceKind, resultsPath string, store *storage.Store) (Source, error) {
	switch kind {
	case dataset.SourceDownloadResults:
		return &ResultsSource{ResultsPath: resultsPath, Store: store}, nil
	case dataset.SourceDirectory:
		return &DirectorySource{Store: store}, nil
	default:
		return nil, fmt.Errorf("unknown upload source: %s", kind)
	}
}
