package artifact

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lysyi3m/opendata-harvest/app/dataset"
)

// PersistenceError reports an artifact that could not be read or written. Stages treat it as
// fatal.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ErrNotFound is wrapped when an input artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// WriteJSON writes v as indented JSON through a temp file and a rename, so readers never see
// a half-written artifact.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Op: "encode", Err: err}
	}
	data = append(data, '\n')
	return WriteFile(path, data)
}

// ReadJSON decodes the artifact at path into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &PersistenceError{Path: path, Op: "read", Err: ErrNotFound}
		}
		return &PersistenceError{Path: path, Op: "read", Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &PersistenceError{Path: path, Op: "decode", Err: err}
	}
	return nil
}

// Save persists an ordered collection as a JSON array.
func Save[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	return WriteJSON(path, items)
}

// Load reads an ordered collection written by Save.
func Load[T any](path string) ([]T, error) {
	var items []T
	if err := ReadJSON(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// WriteIDs writes one identifier per line.
func WriteIDs(path string, ids []dataset.ID) error {
	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(string(id))
		buf.WriteByte('\n')
	}
	return WriteFile(path, buf.Bytes())
}

// ReadIDs reads a newline separated identifier list, ignoring blank lines and # comments.
func ReadIDs(path string) ([]dataset.ID, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &PersistenceError{Path: path, Op: "read", Err: ErrNotFound}
		}
		return nil, &PersistenceError{Path: path, Op: "read", Err: err}
	}

	var ids []dataset.ID
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, dataset.ID(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, &PersistenceError{Path: path, Op: "read", Err: err}
	}
	return ids, nil
}

// WriteFile writes data through a temp file in the same directory and renames it into place.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Path: path, Op: "create directory for", Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Path: path, Op: "create", Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Op: "rename", Err: err}
	}
	return nil
}
