package artifact

import (
	"errors"
	"time"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

// Record is a per-item stage result.
type Record interface {
	dataset.Identified
	RecordStatus() dataset.Status
}

// Results is the envelope persisted for download_results.json and upload_results.json.
type Results[T Record] struct {
	RunID     string    `json:"run_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Items     []T       `json:"items"`
}

// LoadResults reads a results envelope. A missing file yields an empty envelope.
func LoadResults[T Record](path string) (*Results[T], error) {
	var results Results[T]
	if err := ReadJSON(path, &results); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Results[T]{}, nil
		}
		return nil, err
	}
	return &results, nil
}

// Merge folds the records of a new run into the envelope. A record replaces the previous
// record for the same ID in place; records for new IDs are appended in run order. IDs the
// run did not touch keep their previous record.
func (r *Results[T]) Merge(runID string, records []T, at time.Time) {
	index := make(map[dataset.ID]int, len(r.Items))
	for i, item := range r.Items {
		index[item.ItemID()] = i
	}

	for _, record := range records {
		if i, ok := index[record.ItemID()]; ok {
			r.Items[i] = record
			continue
		}
		index[record.ItemID()] = len(r.Items)
		r.Items = append(r.Items, record)
	}

	r.RunID = runID
	r.UpdatedAt = at
	r.recount()
}

func (r *Results[T]) recount() {
	r.Total, r.Succeeded, r.Failed, r.Skipped = len(r.Items), 0, 0, 0
	for _, item := range r.Items {
		switch item.RecordStatus() {
		case dataset.StatusSucceeded:
			r.Succeeded++
		case dataset.StatusFailed:
			r.Failed++
		case dataset.StatusSkipped:
			r.Skipped++
		}
	}
}

// WithStatus returns the IDs whose latest record has the given status, in envelope order.
func (r *Results[T]) WithStatus(status dataset.Status) []dataset.ID {
	var ids []dataset.ID
	for _, item := range r.Items {
		if item.RecordStatus() == status {
			ids = append(ids, item.ItemID())
		}
	}
	return ids
}

// Find returns the latest record for id.
func (r *Results[T]) Find(id dataset.ID) (T, bool) {
	for _, item := range r.Items {
		if item.ItemID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (r *Results[T]) Save(path string) error {
	if r.Items == nil {
		r.Items = []T{}
	}
	return WriteJSON(path, r)
}
