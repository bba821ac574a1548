// Package ledger persists the append-only action history in a WAL.
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
	"github.com/vadiminshakov/safetrade/internal/domain"
)

const (
	// DefaultDir is where the ledger WAL segments live.
	DefaultDir       = "./wal/ledger"
	segmentThreshold = 1000
	maxSegments      = 100

	actionKeyPrefix = "action_"
)

// Entry is one ledger record together with its WAL position.
type Entry struct {
	Index  uint64
	Result domain.ActionResult
}

// WALStore is the append-only action ledger. Writes are flushed to disk
// synchronously, so a crash right after a cycle keeps the ledger consistent
// with that cycle's results. Entries preserve insertion order.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens (or creates) the ledger in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one action result to the ledger.
func (s *WALStore) Append(result domain.ActionResult) error {
	if s == nil || s.wal == nil {
		return errors.New("ledger store is not initialized")
	}
	if result.JobID == "" {
		return fmt.Errorf("action result job id is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "marshal action result")
	}

	key := fmt.Sprintf("%s%s_%s", actionKeyPrefix, result.Exchange, result.JobID)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// EntriesAfter returns all ledger entries written after the provided WAL
// index, in insertion order. Report tooling reads the ledger through this.
func (s *WALStore) EntriesAfter(index uint64) ([]Entry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("ledger store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, actionKeyPrefix) {
			continue
		}

		var result domain.ActionResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, errors.Wrap(err, "decode action result")
		}
		entries = append(entries, Entry{Index: idx, Result: result})
	}

	return entries, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("ledger store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
