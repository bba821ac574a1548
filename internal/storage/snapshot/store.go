// Package snapshot persists the latest resumable state of all jobs.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

const defaultStatePath = "./state/snapshot.json"

// Store persists the full job-state snapshot. Each save supersedes the
// previous snapshot wholesale: write to a temp file, fsync, rename, so a
// crash never leaves a torn state file behind.
type Store struct {
	path string
}

// NewStore creates a snapshot store at path (default ./state/snapshot.json).
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultStatePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create snapshot dir")
	}
	return &Store{path: path}, nil
}

// Load reads the persisted snapshot. A missing or empty file yields an
// empty snapshot (first run).
func (s *Store) Load() (domain.Snapshot, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(domain.Snapshot), nil
		}
		return nil, errors.Wrap(err, "read snapshot")
	}
	if len(payload) == 0 {
		return make(domain.Snapshot), nil
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if snap == nil {
		snap = make(domain.Snapshot)
	}
	return snap, nil
}

// Save atomically replaces the snapshot on disk.
func (s *Store) Save(snap domain.Snapshot) error {
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "snapshot-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write snapshot temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "sync snapshot temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot temp file")
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, "persist snapshot")
	}
	return nil
}
