package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Receipt is one file accepted by the upload endpoint.
type Receipt struct {
	ID              string
	Filename        string
	StoredPath      string
	Size            int64
	ContentType     string
	DataID          string
	Description     string
	AutoDescription string
	CreatedAt       time.Time
}

// NewConnection opens (creating if needed) the sqlite database at path and migrates it.
// ":memory:" gives a private in-memory database.
func NewConnection(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; an in-memory database also vanishes per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	slog.Debug("Database migrated", "path", path, "version", version, "dirty", dirty)

	return db, nil
}
