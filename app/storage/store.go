package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lysyi3m/opendata-harvest/app/artifact"
	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

const (
	MetadataFile  = "metadata.json"
	PayloadPrefix = "data."
)

// ErrNoPayload is returned when an item directory holds no data.* file.
var ErrNoPayload = errors.New("no payload file")

// Store lays out downloaded items as <root>/<id>/data.<ext> plus <root>/<id>/metadata.json.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) ItemDir(id dataset.ID) string {
	return filepath.Join(s.root, id.String())
}

func (s *Store) PayloadPath(id dataset.ID, ext string) string {
	return filepath.Join(s.ItemDir(id), PayloadPrefix+strings.ToLower(ext))
}

// WritePayload stores data as data.<ext> and removes any data.* file left by an earlier
// download with a different extension.
func (s *Store) WritePayload(id dataset.ID, ext string, data []byte) (string, error) {
	path := s.PayloadPath(id, ext)

	if err := artifact.WriteFile(path, data); err != nil {
		return "", err
	}

	stale, err := payloads(s.ItemDir(id))
	if err != nil {
		return "", err
	}
	for _, old := range stale {
		if old == path {
			continue
		}
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", &artifact.PersistenceError{Path: old, Op: "remove", Err: err}
		}
		slog.Debug("Stale payload removed", "data_id", id, "path", old)
	}

	return path, nil
}

func (s *Store) WriteMetadata(id dataset.ID, metadata dataset.Metadata) error {
	return artifact.WriteJSON(filepath.Join(s.ItemDir(id), MetadataFile), metadata)
}

// MarkFailed records a failed download attempt in an existing metadata.json. Items that
// were never downloaded have no metadata and are left alone.
func (s *Store) MarkFailed(id dataset.ID, reason string) error {
	metadata, err := s.ReadMetadata(id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil
		}
		return err
	}
	metadata.DownloadInfo.Status = dataset.StatusFailed
	metadata.DownloadInfo.Error = reason
	return s.WriteMetadata(id, *metadata)
}

func (s *Store) ReadMetadata(id dataset.ID) (*dataset.Metadata, error) {
	return ReadMetadata(s.ItemDir(id))
}

// ReadMetadata reads metadata.json from an item directory.
func ReadMetadata(dir string) (*dataset.Metadata, error) {
	var metadata dataset.Metadata
	if err := artifact.ReadJSON(filepath.Join(dir, MetadataFile), &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (s *Store) FindPayload(id dataset.ID) (string, error) {
	return FindPayload(s.ItemDir(id))
}

// FindPayload returns the data.* file of an item directory. When several exist the newest
// one wins.
func FindPayload(dir string) (string, error) {
	paths, err := payloads(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%s: %w", dir, ErrNoPayload)
	}

	newest := paths[0]
	newestInfo, err := os.Stat(newest)
	if err != nil {
		return "", &artifact.PersistenceError{Path: newest, Op: "stat", Err: err}
	}
	for _, path := range paths[1:] {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = path, info
		}
	}
	return newest, nil
}

// HasPayload reports whether a non-empty payload exists for the item.
func (s *Store) HasPayload(id dataset.ID) bool {
	path, err := s.FindPayload(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// Scan lists the items that have a metadata.json, ordered by ID.
func (s *Store) Scan() ([]dataset.ID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &artifact.PersistenceError{Path: s.root, Op: "scan", Err: artifact.ErrNotFound}
		}
		return nil, &artifact.PersistenceError{Path: s.root, Op: "scan", Err: err}
	}

	var ids []dataset.ID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), MetadataFile)); err != nil {
			continue
		}
		ids = append(ids, dataset.ID(entry.Name()))
	}

	sort.Slice(ids, func(i, j int) bool {
		return lessID(ids[i], ids[j])
	})

	return ids, nil
}

func payloads(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, PayloadPrefix+"*"))
	if err != nil {
		return nil, &artifact.PersistenceError{Path: dir, Op: "list", Err: err}
	}
	return paths, nil
}

// lessID orders numeric identifiers numerically and everything else lexically.
func lessID(a, b dataset.ID) bool {
	as, bs := a.String(), b.String()
	if isDigits(as) && isDigits(bs) && len(as) != len(bs) {
		return len(as) < len(bs)
	}
	return as < bs
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
