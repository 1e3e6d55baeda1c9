package prefs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the byte-level storage backend supplied by the host environment.
// Read reports ok=false for an absent key; absence is not an error.
type Store interface {
	Read(ctx context.Context, key string) (data []byte, ok bool, err error)
	Write(ctx context.Context, key string, data []byte) error
}

// MemoryStore is a string-keyed in-memory Store for tests and sandboxed
// runtimes without filesystem access.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string][]byte{}}
}

// Read returns a copy of the record stored under key.
func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), record...), true, nil
}

// Write stores a copy of data under key, replacing any previous record.
func (s *MemoryStore) Write(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	s.records[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

// FileStore persists one file per key under Dir. Keys containing slashes map
// to nested directories, which are created on demand.
type FileStore struct {
	Dir string
}

func (s FileStore) path(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("prefs: storage key is required")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("prefs: storage key %q must not traverse directories", key)
	}
	return filepath.Join(s.Dir, filepath.FromSlash(key)), nil
}

// Read loads the record file for key; a missing file is ok=false, not an
// error.
func (s FileStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("prefs: read %q: %w", key, err)
	}
	return data, true, nil
}

// Write replaces the record file for key.
func (s FileStore) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prefs: create %q: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("prefs: write %q: %w", key, err)
	}
	return nil
}
