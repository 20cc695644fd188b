// Package journal keeps an append-only record of every trade submission and
// how it ended.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/folio/internal/domain"
)

const (
	segmentThreshold = 1000
	maxSegments      = 100
	dirPermissions   = 0o755

	recordKeyPrefix = "trade_"
)

// Status of a journaled trade.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Record is one journaled trade. Every status change is appended as a new
// entry with its own index.
type Record struct {
	Index    uint64           `json:"index"`
	ID       string           `json:"id"`
	Status   Status           `json:"status"`
	Side     domain.TradeSide `json:"side"`
	AssetID  string           `json:"asset_id"`
	Quantity string           `json:"quantity"`
	Price    domain.Money     `json:"price"`
	Notional domain.Money     `json:"notional"`
	Code     domain.ErrorCode `json:"code,omitempty"`
	Error    string           `json:"error,omitempty"`
	Time     time.Time        `json:"time"`
}

// Store journals trades in a WAL, or only in memory when opened with NewInMemory.
type Store struct {
	mu      sync.RWMutex
	wal     *gowal.Wal
	last    uint64
	entries []Record
	latest  map[string]int
	order   []string
	now     func() time.Time
}

// Open replays the journal stored under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure journal directory %s", dir)
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	s := newStore()
	s.wal = wal
	s.last = wal.CurrentIndex()

	for msg := range wal.Iterator() {
		if !strings.HasPrefix(msg.Key, recordKeyPrefix) {
			continue
		}
		var rec Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			_ = wal.Close()
			return nil, errors.Wrapf(err, "decode trade record %s", msg.Key)
		}
		s.remember(rec)
	}

	return s, nil
}

// NewInMemory returns a journal that keeps nothing on disk.
func NewInMemory() *Store {
	return newStore()
}

func newStore() *Store {
	return &Store{
		latest: make(map[string]int),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Prepare journals req as pending. An empty request id is replaced with a new one.
func (s *Store) Prepare(req domain.TradeRequest) (Record, error) {
	if s == nil {
		return Record{}, errors.New("trade journal is not initialized")
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	rec := Record{
		ID:       id,
		Status:   StatusPending,
		Side:     req.Side,
		AssetID:  req.AssetID,
		Quantity: req.Quantity,
		Time:     s.now(),
	}
	return s.append(rec)
}

// MarkDone journals the committed outcome of rec.
func (s *Store) MarkDone(rec Record, outcome domain.TradeOutcome) (Record, error) {
	if s == nil {
		return Record{}, errors.New("trade journal is not initialized")
	}
	rec.Status = StatusDone
	rec.Quantity = outcome.Quantity.String()
	rec.Price = outcome.Price
	rec.Notional = outcome.Notional
	rec.Code = ""
	rec.Error = ""
	rec.Time = s.now()
	return s.append(rec)
}

// MarkFailed journals the rejection of rec.
func (s *Store) MarkFailed(rec Record, code domain.ErrorCode, cause error) (Record, error) {
	if s == nil {
		return Record{}, errors.New("trade journal is not initialized")
	}
	rec.Status = StatusFailed
	rec.Code = code
	if cause != nil {
		rec.Error = cause.Error()
	} else {
		rec.Error = ""
	}
	rec.Time = s.now()
	return s.append(rec)
}

// Trades returns the latest record of every trade in submission order.
func (s *Store) Trades() []Record {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[s.latest[id]])
	}
	return out
}

// Trade returns the latest record of id.
func (s *Store) Trade(id string) (Record, bool) {
	if s == nil {
		return Record{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.latest[id]
	if !ok {
		return Record{}, false
	}
	return s.entries[i], true
}

// RecordsAfter returns every entry appended after index.
func (s *Store) RecordsAfter(index uint64) []Record {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0)
	for _, rec := range s.entries {
		if rec.Index > index {
			out = append(out, rec)
		}
	}
	return out
}

// CurrentIndex returns the index of the last entry.
func (s *Store) CurrentIndex() uint64 {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Close closes the underlying WAL.
func (s *Store) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}

func (s *Store) append(rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Index = s.last + 1

	if s.wal != nil {
		payload, err := json.Marshal(rec)
		if err != nil {
			return Record{}, errors.Wrap(err, "failed to marshal trade record")
		}
		key := fmt.Sprintf("%s%s", recordKeyPrefix, rec.ID)
		if err := s.wal.Write(rec.Index, key, payload); err != nil {
			return Record{}, domain.LocalError("journal trade", err)
		}
	}

	s.last = rec.Index
	s.remember(rec)
	return rec, nil
}

func (s *Store) remember(rec Record) {
	if rec.Index > s.last {
		s.last = rec.Index
	}
	if _, seen := s.latest[rec.ID]; !seen {
		s.order = append(s.order, rec.ID)
	}
	s.entries = append(s.entries, rec)
	s.latest[rec.ID] = len(s.entries) - 1
}
