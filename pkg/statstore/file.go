package statstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zen-systems/quorum/pkg/registry"
)

// FileStore persists snapshots as a single JSON document.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at the given path. The
// parent directory is created if needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".quorum", "stats.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &FileStore{path: path}, nil
}

// Load reads the snapshot. A missing file yields an empty snapshot.
func (s *FileStore) Load() (registry.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return registry.Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}

	var snap registry.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse stats file: %w", err)
	}
	return snap, nil
}

// Save writes the snapshot via a temp file and rename so a crash never
// leaves a truncated document.
func (s *FileStore) Save(snap registry.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Close is a no-op for file stores.
func (s *FileStore) Close() error {
	return nil
}
