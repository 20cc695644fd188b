// Package valuations keeps the history of portfolio valuations.
package valuations

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	defaultSnapshotDir   = "./wal/folio/valuations"
	snapshotSegmentLimit = 1000
	snapshotMaxSegments  = 100
	snapshotKey          = "valuation_snapshot"
	dirPermissions       = 0o755

	// DefaultRetained number of snapshots kept in memory for streaming.
	DefaultRetained = 10000
)

// WALStore persists valuation snapshots in a WAL for history streaming.
type WALStore struct {
	wal      *gowal.Wal
	mu       sync.RWMutex
	last     uint64
	records  []domain.ValuationSnapshotRecord
	retained int
}

// NewWALStore replays the snapshots stored under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultSnapshotDir
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure snapshot directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: snapshotSegmentLimit,
		MaxSegments:      snapshotMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init valuation snapshot WAL")
	}

	s := &WALStore{wal: wal, last: wal.CurrentIndex(), retained: DefaultRetained}
	for msg := range wal.Iterator() {
		if msg.Key != snapshotKey {
			continue
		}
		var rec domain.ValuationSnapshotRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			_ = wal.Close()
			return nil, errors.Wrap(err, "decode valuation snapshot")
		}
		s.remember(rec)
	}

	return s, nil
}

// NewInMemory returns a store that keeps at most retained snapshots in memory only.
func NewInMemory(retained int) *WALStore {
	if retained <= 0 {
		retained = DefaultRetained
	}
	return &WALStore{retained: retained}
}

// Save appends the snapshot and returns its index.
func (s *WALStore) Save(snapshot domain.ValuationSnapshot) (uint64, error) {
	if s == nil {
		return 0, errors.New("valuation snapshot store is not initialized")
	}
	if snapshot.Timestamp.IsZero() {
		return 0, errors.New("valuation snapshot timestamp is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := domain.ValuationSnapshotRecord{Index: s.last + 1, Snapshot: snapshot}
	if s.wal != nil {
		payload, err := json.Marshal(rec)
		if err != nil {
			return 0, errors.Wrap(err, "marshal valuation snapshot")
		}
		if err := s.wal.Write(rec.Index, snapshotKey, payload); err != nil {
			return 0, domain.LocalError("save valuation snapshot", err)
		}
	}

	s.last = rec.Index
	s.remember(rec)
	return rec.Index, nil
}

// SnapshotsAfter returns the retained snapshots written after index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.ValuationSnapshotRecord, error) {
	if s == nil {
		return nil, errors.New("valuation snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.last <= index {
		return nil, nil
	}

	out := make([]domain.ValuationSnapshotRecord, 0)
	for _, rec := range s.records {
		if rec.Index > index {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Latest returns the newest snapshot.
func (s *WALStore) Latest() (domain.ValuationSnapshotRecord, bool) {
	if s == nil {
		return domain.ValuationSnapshotRecord{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return domain.ValuationSnapshotRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// CurrentIndex returns the latest index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

func (s *WALStore) remember(rec domain.ValuationSnapshotRecord) {
	if rec.Index > s.last {
		s.last = rec.Index
	}
	s.records = append(s.records, rec)
	if over := len(s.records) - s.retained; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
	}
}
