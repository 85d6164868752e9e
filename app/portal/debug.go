package portal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type htmlDump struct {
	directory string
}

func newHTMLDump(dir string) (*htmlDump, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug HTML directory: %w", err)
	}
	return &htmlDump{directory: dir}, nil
}

// write never fails the caller; a missing debug copy is only worth a warning.
func (d *htmlDump) write(name string, body []byte) {
	if d == nil {
		return
	}
	path := filepath.Join(d.directory, name)
	if err := os.WriteFile(path, body, 0644); err != nil {
		slog.Warn("Failed to save debug HTML", "path", path, "error", err)
		return
	}
	slog.Debug("Debug HTML saved", "path", path)
}
