package ledger

import (
	"context"
	"sort"

	"github.com/vadiminshakov/folio/internal/domain"
)

// state is the full ledger content. Cash is nil until the balance is initialized.
type state struct {
	Cash *domain.Money               `json:"cash,omitempty"`
	Lots map[string]domain.AssetLot `json:"lots"`
}

func newState() state {
	return state{Lots: make(map[string]domain.AssetLot)}
}

func (s state) clone() state {
	next := state{Lots: make(map[string]domain.AssetLot, len(s.Lots))}
	if s.Cash != nil {
		cash := *s.Cash
		next.Cash = &cash
	}
	for id, lot := range s.Lots {
		next.Lots[id] = lot
	}
	return next
}

func (s state) sortedLots() []domain.AssetLot {
	lots := make([]domain.AssetLot, 0, len(s.Lots))
	for _, lot := range s.Lots {
		lots = append(lots, lot)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].AssetID < lots[j].AssetID })
	return lots
}

// batch is the set of writes staged by one Update.
type batch struct {
	cash    *domain.Money
	upserts map[string]domain.AssetLot
	deletes map[string]struct{}
}

func newBatch() batch {
	return batch{
		upserts: make(map[string]domain.AssetLot),
		deletes: make(map[string]struct{}),
	}
}

func (b batch) empty() bool {
	return b.cash == nil && len(b.upserts) == 0 && len(b.deletes) == 0
}

func (b batch) touchesLots() bool {
	return len(b.upserts) > 0 || len(b.deletes) > 0
}

// apply returns base with the batch applied. base is not modified.
func (b batch) apply(base state) state {
	next := base.clone()
	if b.cash != nil {
		cash := *b.cash
		next.Cash = &cash
	}
	for id := range b.deletes {
		delete(next.Lots, id)
	}
	for id, lot := range b.upserts {
		next.Lots[id] = lot
	}
	return next
}

// backend persists ledger state. Commit must be all-or-nothing: either next is
// durable or nothing of b is.
type backend interface {
	Load(ctx context.Context) (state, error)
	Commit(ctx context.Context, next state, b batch) error
	Close() error
}

// memoryBackend keeps nothing on disk.
type memoryBackend struct{}

func (memoryBackend) Load(context.Context) (state, error)         { return newState(), nil }
func (memoryBackend) Commit(context.Context, state, batch) error { return nil }
func (memoryBackend) Close() error                               { return nil }
