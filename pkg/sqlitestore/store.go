// Package sqlitestore provides a SQLite-backed prefs.Store for hosts that
// want durable single-file storage without cgo.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS prefs_records (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Store persists preference records in a single SQLite database, one row
// per storage key.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating when absent) the SQLite database at path and ensures
// the records table exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlitestore: path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlitestore: ping db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Read loads the record stored under key; an absent row is ok=false, not an
// error.
func (s *Store) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, false, fmt.Errorf("sqlitestore: store is not open")
	}
	if strings.TrimSpace(key) == "" {
		return nil, false, fmt.Errorf("sqlitestore: key is required")
	}

	var data []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT data FROM prefs_records WHERE key = ?`, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: read %q: %w", key, err)
	}
	return data, true, nil
}

// Write upserts the record for key; the previous record, if any, is
// replaced.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("sqlitestore: store is not open")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("sqlitestore: key is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO prefs_records (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlitestore: write %q: %w", key, err)
	}
	return nil
}
