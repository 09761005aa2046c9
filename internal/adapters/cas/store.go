// Package cas implements build record storage next to the cached image.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/pgo/internal/core/domain"
	"go.trai.ch/zerr"
)

// RecordSuffix is appended to the image path to name its build record.
const RecordSuffix = ".json"

// Store implements ports.BuildRecordStore with one JSON file per image.
type Store struct {
	mu sync.RWMutex
}

// NewStore creates a new BuildRecordStore.
func NewStore() *Store {
	return &Store{}
}

// RecordPath returns the path of the record describing the image at imagePath.
func RecordPath(imagePath string) string {
	return filepath.Clean(imagePath) + RecordSuffix
}

// Get retrieves the record of the image at imagePath.
func (s *Store) Get(imagePath string) (*domain.BuildRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := RecordPath(imagePath)
	//nolint:gosec // Path is derived from trusted configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(zerr.Wrap(err, "failed to read build record"), "path", path)
	}

	var record domain.BuildRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to unmarshal build record"), "path", path)
	}
	return &record, nil
}

// Put stores the record, replacing any previous one atomically.
func (s *Store) Put(record domain.BuildRecord) error {
	if record.ImagePath == "" {
		return zerr.New("build record has no image path")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal build record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := RecordPath(record.ImagePath)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory for build record"), "dir", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return zerr.Wrap(err, "failed to create temporary build record")
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "failed to write build record")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close build record")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to rename build record"), "path", path)
	}

	success = true
	return nil
}
