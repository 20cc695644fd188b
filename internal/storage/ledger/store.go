// Package ledger persists owned asset lots and the cash balance and notifies
// subscribers about every committed change.
package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/events"
)

// Backend names accepted by Open.
const (
	BackendWAL    = "wal"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"

	sqliteFileName    = "ledger.db"
	subscriberBuffer  = 16
	defaultSeedAmount = 10000
)

// DefaultSeedBalance is the cash balance of a fresh ledger when none is configured.
var DefaultSeedBalance = domain.FromInt(defaultSeedAmount)

// Options configures Open.
type Options struct {
	// Backend one of BackendWAL, BackendSQLite, BackendMemory.
	Backend string
	// Dir directory holding the WAL segments or the sqlite file.
	Dir string
	// SeedBalance cash balance reported before initialization and written by InitializeBalance.
	// Nil means DefaultSeedBalance.
	SeedBalance *domain.Money
	Logger      *zap.Logger
}

// Store is the ledger of lots and cash. All writes go through Update, which
// serializes them with a single write lock and applies each one atomically.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   state
	backend backend
	seed    domain.Money
	l       *zap.Logger

	lots *events.Broadcaster[[]domain.AssetLot]
	cash *events.Broadcaster[domain.Money]

	done      chan struct{}
	closeOnce sync.Once
}

// Open loads the ledger from the configured backend.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		b   backend
		err error
	)

	switch opts.Backend {
	case BackendWAL, "":
		b, err = newWALBackend(opts.Dir)
	case BackendSQLite:
		b, err = newSQLiteBackend(filepath.Join(opts.Dir, sqliteFileName))
	case BackendMemory:
		b = memoryBackend{}
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, domain.LocalError("open ledger", err)
	}

	seed := DefaultSeedBalance
	if opts.SeedBalance != nil {
		seed = *opts.SeedBalance
	}

	return newStore(ctx, b, seed, opts.Logger)
}

// NewInMemory returns a ledger that keeps nothing on disk.
func NewInMemory(seed domain.Money, logger *zap.Logger) (*Store, error) {
	return newStore(context.Background(), memoryBackend{}, seed, logger)
}

func newStore(ctx context.Context, b backend, seed domain.Money, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seed.IsNegative() {
		_ = b.Close()
		return nil, domain.ValidationError(domain.CodeInvalidAmount, "seed balance must not be negative")
	}

	loaded, err := b.Load(ctx)
	if err != nil {
		_ = b.Close()
		return nil, domain.LocalError("load ledger", err)
	}

	s := &Store{
		state:   loaded,
		backend: b,
		seed:    seed,
		l:       logger,
		lots:    events.NewBroadcaster[[]domain.AssetLot](subscriberBuffer),
		cash:    events.NewBroadcaster[domain.Money](subscriberBuffer),
		done:    make(chan struct{}),
	}

	cash := "uninitialized"
	if loaded.Cash != nil {
		cash = loaded.Cash.String()
	}
	logger.Info("ledger loaded",
		zap.Int("lots", len(loaded.Lots)),
		zap.String("cash", cash))

	return s, nil
}

// Tx stages writes for one atomic Update. Reads see the committed state plus
// the writes staged so far.
type Tx struct {
	base  state
	batch batch
	seed  domain.Money
}

// BalanceInitialized reports whether a cash balance has been stored.
func (tx *Tx) BalanceInitialized() bool {
	return tx.batch.cash != nil || tx.base.Cash != nil
}

// CashBalance returns the staged or committed cash balance, or the seed balance when uninitialized.
func (tx *Tx) CashBalance() domain.Money {
	if tx.batch.cash != nil {
		return *tx.batch.cash
	}
	if tx.base.Cash != nil {
		return *tx.base.Cash
	}
	return tx.seed
}

// Lot returns the staged or committed lot of assetID.
func (tx *Tx) Lot(assetID string) (domain.AssetLot, bool) {
	assetID = domain.NormalizeAssetID(assetID)
	if _, deleted := tx.batch.deletes[assetID]; deleted {
		return domain.AssetLot{}, false
	}
	if lot, ok := tx.batch.upserts[assetID]; ok {
		return lot, true
	}
	lot, ok := tx.base.Lots[assetID]
	return lot, ok
}

// SetCashBalance stages a new cash balance.
func (tx *Tx) SetCashBalance(amount domain.Money) error {
	if amount.IsNegative() {
		return domain.ValidationError(domain.CodeInsufficientFunds,
			fmt.Sprintf("cash balance must not be negative, got %s", amount))
	}
	tx.batch.cash = &amount
	return nil
}

// UpsertLot stages lot. A lot with zero quantity is staged as a delete.
func (tx *Tx) UpsertLot(lot domain.AssetLot) error {
	lot.AssetID = domain.NormalizeAssetID(lot.AssetID)
	if err := lot.Validate(); err != nil {
		return err
	}
	if lot.IsEmpty() {
		tx.DeleteLot(lot.AssetID)
		return nil
	}
	delete(tx.batch.deletes, lot.AssetID)
	tx.batch.upserts[lot.AssetID] = lot
	return nil
}

// DeleteLot stages removal of assetID. Deleting an absent lot is a no-op.
func (tx *Tx) DeleteLot(assetID string) {
	assetID = domain.NormalizeAssetID(assetID)
	delete(tx.batch.upserts, assetID)
	if _, ok := tx.base.Lots[assetID]; ok {
		tx.batch.deletes[assetID] = struct{}{}
	}
}

// Update runs fn and commits everything it staged as one unit. When fn or the
// backend fails nothing is applied and subscribers see no change.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return domain.LocalError("commit ledger", errors.New("ledger is closed"))
	default:
	}

	s.mu.RLock()
	base := s.state
	s.mu.RUnlock()

	tx := &Tx{base: base, batch: newBatch(), seed: s.seed}
	if err := fn(tx); err != nil {
		return err
	}
	if tx.batch.empty() {
		return nil
	}

	next := tx.batch.apply(base)
	if err := s.backend.Commit(ctx, next, tx.batch); err != nil {
		s.l.Error("ledger commit failed", zap.Error(err))
		return domain.LocalError("commit ledger", err)
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if tx.batch.cash != nil {
		s.cash.Publish(*next.Cash)
	}
	if tx.batch.touchesLots() {
		s.lots.Publish(next.sortedLots())
	}

	return nil
}

// CashBalance returns the stored balance, or the seed balance when uninitialized.
func (s *Store) CashBalance(ctx context.Context) (domain.Money, error) {
	if err := ctx.Err(); err != nil {
		return domain.Zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cashLocked(), nil
}

func (s *Store) cashLocked() domain.Money {
	if s.state.Cash == nil {
		return s.seed
	}
	return *s.state.Cash
}

// InitializeBalance stores the seed balance if no balance exists yet.
func (s *Store) InitializeBalance(ctx context.Context) error {
	return s.Update(ctx, func(tx *Tx) error {
		if tx.BalanceInitialized() {
			return nil
		}
		s.l.Info("initializing cash balance", zap.String("amount", s.seed.String()))
		return tx.SetCashBalance(s.seed)
	})
}

// SetCashBalance overwrites the cash balance.
func (s *Store) SetCashBalance(ctx context.Context, amount domain.Money) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.SetCashBalance(amount)
	})
}

// UpsertLot inserts or replaces a lot. A zero-quantity lot is deleted instead.
func (s *Store) UpsertLot(ctx context.Context, lot domain.AssetLot) error {
	return s.Update(ctx, func(tx *Tx) error {
		return tx.UpsertLot(lot)
	})
}

// DeleteLot removes the lot of assetID.
func (s *Store) DeleteLot(ctx context.Context, assetID string) error {
	return s.Update(ctx, func(tx *Tx) error {
		tx.DeleteLot(assetID)
		return nil
	})
}

// Lot returns the lot of assetID or nil when the asset is not held.
func (s *Store) Lot(ctx context.Context, assetID string) (*domain.AssetLot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	lot, ok := s.state.Lots[domain.NormalizeAssetID(assetID)]
	if !ok {
		return nil, nil
	}
	return &lot, nil
}

// Lots returns all held lots ordered by asset id.
func (s *Store) Lots(ctx context.Context) ([]domain.AssetLot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.sortedLots(), nil
}

// Snapshot returns lots and cash read together.
func (s *Store) Snapshot(ctx context.Context) ([]domain.AssetLot, domain.Money, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Zero, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.sortedLots(), s.cashLocked(), nil
}

// WatchLots emits the current lot set and then the full set after every lot change.
// A slow reader only ever misses intermediate sets, never the latest one.
// The channel is closed when ctx is done or the store is closed.
func (s *Store) WatchLots(ctx context.Context) <-chan []domain.AssetLot {
	ch := s.lots.SubscribeWith(func() ([]domain.AssetLot, bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.state.sortedLots(), true
	})
	go s.unsubscribeOnDone(ctx, func() { s.lots.Unsubscribe(ch) })
	return ch
}

// WatchCashBalance emits the current balance and then every new balance.
func (s *Store) WatchCashBalance(ctx context.Context) <-chan domain.Money {
	ch := s.cash.SubscribeWith(func() (domain.Money, bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.cashLocked(), true
	})
	go s.unsubscribeOnDone(ctx, func() { s.cash.Unsubscribe(ch) })
	return ch
}

// WatchLot emits the lot of assetID (nil when not held) and then every change to it.
func (s *Store) WatchLot(ctx context.Context, assetID string) <-chan *domain.AssetLot {
	assetID = domain.NormalizeAssetID(assetID)
	out := make(chan *domain.AssetLot, 1)
	all := s.WatchLots(ctx)

	go func() {
		defer close(out)
		var (
			last    *domain.AssetLot
			emitted bool
		)
		for lots := range all {
			current := findLot(lots, assetID)
			if emitted && sameLot(last, current) {
				continue
			}
			last, emitted = current, true
			select {
			case <-out:
			default:
			}
			out <- current
		}
	}()

	return out
}

func (s *Store) unsubscribeOnDone(ctx context.Context, unsubscribe func()) {
	select {
	case <-ctx.Done():
		unsubscribe()
	case <-s.done:
	}
}

// Close closes all subscriptions and the backend.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.lots.Close()
		s.cash.Close()
		if cerr := s.backend.Close(); cerr != nil {
			err = domain.LocalError("close ledger", errors.Wrap(cerr, "close backend"))
		}
	})
	return err
}

func findLot(lots []domain.AssetLot, assetID string) *domain.AssetLot {
	for i := range lots {
		if lots[i].AssetID == assetID {
			lot := lots[i]
			return &lot
		}
	}
	return nil
}

func sameLot(a, b *domain.AssetLot) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Quantity.Equal(b.Quantity) && a.AverageCost.Equal(b.AverageCost)
}
