package ledger

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	walSegmentThreshold = 1000
	walMaxSegments      = 100
	walDirPermissions   = 0o755

	ledgerStateKey = "ledger_state"
)

type walRecord struct {
	Cash *domain.Money               `json:"cash,omitempty"`
	Lots map[string]domain.AssetLot `json:"lots"`
	Time time.Time                  `json:"time"`
}

// walBackend appends the full ledger state as one WAL record per commit.
// The last record wins on replay, so segment rotation never loses state.
type walBackend struct {
	wal *gowal.Wal
}

func newWALBackend(dir string) (*walBackend, error) {
	if err := os.MkdirAll(dir, walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure ledger WAL directory %s", dir)
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "ledger_",
		SegmentThreshold: walSegmentThreshold,
		MaxSegments:      walMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init ledger WAL")
	}

	return &walBackend{wal: wal}, nil
}

func (b *walBackend) Load(context.Context) (state, error) {
	loaded := newState()
	for msg := range b.wal.Iterator() {
		if msg.Key != ledgerStateKey {
			continue
		}
		var record walRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return state{}, errors.Wrap(err, "decode ledger state")
		}
		loaded = state{Cash: record.Cash, Lots: record.Lots}
		if loaded.Lots == nil {
			loaded.Lots = make(map[string]domain.AssetLot)
		}
	}
	return loaded, nil
}

func (b *walBackend) Commit(_ context.Context, next state, _ batch) error {
	payload, err := json.Marshal(walRecord{Cash: next.Cash, Lots: next.Lots, Time: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encode ledger state")
	}

	nextIndex := b.wal.CurrentIndex() + 1
	if err := b.wal.Write(nextIndex, ledgerStateKey, payload); err != nil {
		return errors.Wrap(err, "write ledger state")
	}
	return nil
}

func (b *walBackend) Close() error {
	return b.wal.Close()
}
