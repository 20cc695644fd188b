// Package valuation joins the ledger with market prices into live portfolio valuations.
package valuation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/events"
)

// Ledger is the read side of the ledger store the engine depends on.
type Ledger interface {
	Snapshot(ctx context.Context) ([]domain.AssetLot, domain.Money, error)
	Lot(ctx context.Context, assetID string) (*domain.AssetLot, error)
	WatchLots(ctx context.Context) <-chan []domain.AssetLot
	WatchCashBalance(ctx context.Context) <-chan domain.Money
	WatchLot(ctx context.Context, assetID string) <-chan *domain.AssetLot
}

// Update is one emission of a valuation stream: either a valuation or the
// error that prevented it.
type Update struct {
	// Seq generation of the trigger that produced this update.
	Seq       uint64
	Valuation domain.PortfolioValuation
	Err       error
}

// AssetUpdate is one emission of a single-asset stream. Valuation is nil when
// the asset is not held or has no quote.
type AssetUpdate struct {
	Seq       uint64
	AssetID   string
	Valuation *domain.AssetValuation
	Err       error
}

// Engine computes portfolio valuations. It never caches quotes and never
// retries a failed fetch; retries belong to the market data port.
type Engine struct {
	ledger  Ledger
	port    domain.MarketDataPort
	refresh *events.Broadcaster[struct{}]
	now     func() time.Time
	l       *zap.Logger
}

// NewEngine creates an engine over ledger and port.
func NewEngine(ledger Ledger, port domain.MarketDataPort, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		ledger:  ledger,
		port:    port,
		refresh: events.NewBroadcaster[struct{}](1),
		now:     time.Now,
		l:       logger,
	}
}

// Compute values the current ledger once.
func (e *Engine) Compute(ctx context.Context) (domain.PortfolioValuation, error) {
	lots, cash, err := e.ledger.Snapshot(ctx)
	if err != nil {
		return domain.PortfolioValuation{}, err
	}
	return e.value(ctx, lots, cash)
}

// ComputeAsset values one asset. It returns nil when the asset is not held or has no quote.
func (e *Engine) ComputeAsset(ctx context.Context, assetID string) (*domain.AssetValuation, error) {
	lot, err := e.ledger.Lot(ctx, assetID)
	if err != nil {
		return nil, err
	}
	return e.valueLot(ctx, lot)
}

func (e *Engine) value(ctx context.Context, lots []domain.AssetLot, cash domain.Money) (domain.PortfolioValuation, error) {
	if len(lots) == 0 {
		return domain.NewPortfolioValuation(nil, cash, e.now()), nil
	}

	ids := make([]string, 0, len(lots))
	for _, lot := range lots {
		ids = append(ids, lot.AssetID)
	}

	quotes, err := e.fetch(ctx, ids)
	if err != nil {
		return domain.PortfolioValuation{}, err
	}
	index := domain.QuoteIndex(quotes)

	assets := make([]domain.AssetValuation, 0, len(lots))
	for _, lot := range lots {
		quote, ok := index[domain.NormalizeAssetID(lot.AssetID)]
		if !ok {
			e.l.Debug("no quote, asset excluded from valuation", zap.String("asset", lot.AssetID))
			continue
		}
		assets = append(assets, domain.NewAssetValuation(lot, quote))
	}

	return domain.NewPortfolioValuation(assets, cash, e.now()), nil
}

func (e *Engine) valueLot(ctx context.Context, lot *domain.AssetLot) (*domain.AssetValuation, error) {
	if lot == nil {
		return nil, nil
	}
	quotes, err := e.fetch(ctx, []string{lot.AssetID})
	if err != nil {
		return nil, err
	}
	quote, ok := domain.QuoteIndex(quotes)[domain.NormalizeAssetID(lot.AssetID)]
	if !ok {
		return nil, nil
	}
	v := domain.NewAssetValuation(*lot, quote)
	return &v, nil
}

func (e *Engine) fetch(ctx context.Context, ids []string) ([]domain.PriceQuote, error) {
	quotes, err := e.port.FetchQuotes(ctx, domain.DistinctAssetIDs(ids))
	if err != nil {
		if domain.KindOf(err) == domain.KindRemote {
			return nil, err
		}
		return nil, domain.RemoteError("fetch quotes", err)
	}
	return quotes, nil
}

// Refresh triggers a recomputation on every open stream.
func (e *Engine) Refresh() {
	e.refresh.Publish(struct{}{})
}

// Subscribe streams a valuation for the current state and a new one after every
// lot change, cash change or Refresh. A trigger supersedes the computation in
// flight, so the reader never receives a result older than one it has seen.
// The channel is closed when ctx is done, the ledger closes or the engine closes.
func (e *Engine) Subscribe(ctx context.Context) <-chan Update {
	ctx, cancel := context.WithCancel(ctx)
	k := newKicker()

	follow(k, e.ledger.WatchLots(ctx), cancel)
	follow(k, e.ledger.WatchCashBalance(ctx), cancel)
	follow(k, e.watchRefresh(ctx), cancel)

	return switchLatest(ctx, k.ch, func(cctx context.Context, seq uint64) Update {
		v, err := e.Compute(cctx)
		if err != nil && cctx.Err() == nil {
			e.l.Warn("valuation failed", zap.Uint64("seq", seq), zap.Error(err))
		}
		return Update{Seq: seq, Valuation: v, Err: err}
	})
}

// WatchAsset streams the valuation of one asset with the same drop and failure
// policy as Subscribe.
func (e *Engine) WatchAsset(ctx context.Context, assetID string) <-chan AssetUpdate {
	ctx, cancel := context.WithCancel(ctx)
	k := newKicker()
	assetID = domain.NormalizeAssetID(assetID)

	follow(k, e.ledger.WatchLot(ctx, assetID), cancel)
	follow(k, e.watchRefresh(ctx), cancel)

	return switchLatest(ctx, k.ch, func(cctx context.Context, seq uint64) AssetUpdate {
		v, err := e.ComputeAsset(cctx, assetID)
		return AssetUpdate{Seq: seq, AssetID: assetID, Valuation: v, Err: err}
	})
}

// Close ends every open stream.
func (e *Engine) Close() {
	e.refresh.Close()
}

func (e *Engine) watchRefresh(ctx context.Context) <-chan struct{} {
	ch := e.refresh.Subscribe()
	go func() {
		<-ctx.Done()
		e.refresh.Unsubscribe(ch)
	}()
	return ch
}
