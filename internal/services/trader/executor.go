// Package trader validates trade requests and commits them to the ledger.
package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/storage/journal"
	"github.com/vadiminshakov/folio/internal/storage/ledger"
)

var (
	// DefaultMinLot smallest tradable quantity.
	DefaultMinLot = domain.FromDecimalString("0.0001")
	// DefaultMaxLot largest tradable quantity.
	DefaultMaxLot = domain.FromInt(1_000_000)
)

// Bounds inclusive range of tradable quantities.
type Bounds struct {
	MinLot domain.Money
	MaxLot domain.Money
}

// DefaultBounds returns the bounds used when none are configured.
func DefaultBounds() Bounds {
	return Bounds{MinLot: DefaultMinLot, MaxLot: DefaultMaxLot}
}

// Validate checks that the bounds form a non-empty positive range.
func (b Bounds) Validate() error {
	if !b.MinLot.IsPositive() {
		return errors.New("min lot must be positive")
	}
	if b.MaxLot.LessThan(b.MinLot) {
		return errors.New("max lot must not be less than min lot")
	}
	return nil
}

// Ledger is the write side of the ledger store.
type Ledger interface {
	Update(ctx context.Context, fn func(tx *ledger.Tx) error) error
}

// Journal records every submission and how it ended.
type Journal interface {
	Prepare(req domain.TradeRequest) (journal.Record, error)
	MarkDone(rec journal.Record, outcome domain.TradeOutcome) (journal.Record, error)
	MarkFailed(rec journal.Record, code domain.ErrorCode, cause error) (journal.Record, error)
}

// Executor runs trade requests through validation and commits them.
// Commits are serialized by the ledger, so concurrent requests never
// overspend cash or oversell a lot.
type Executor struct {
	ledger  Ledger
	port    domain.MarketDataPort
	journal Journal
	bounds  Bounds
	now     func() time.Time
	l       *zap.Logger
}

// NewExecutor creates an executor. A nil journal keeps submissions in memory only.
func NewExecutor(l Ledger, port domain.MarketDataPort, bounds Bounds, j Journal, logger *zap.Logger) (*Executor, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if port == nil {
		return nil, errors.New("market data port is required")
	}
	if err := bounds.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid lot bounds")
	}
	if j == nil {
		j = journal.NewInMemory()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Executor{
		ledger:  l,
		port:    port,
		journal: j,
		bounds:  bounds,
		now:     func() time.Time { return time.Now().UTC() },
		l:       logger,
	}, nil
}

// Bounds returns the configured lot bounds.
func (e *Executor) Bounds() Bounds {
	return e.bounds
}

// Submit validates req and, when every rule passes, commits it atomically.
// A rejected trade returns its outcome together with the error explaining the
// rejection: a validation error for rule violations, a remote error when the
// price cannot be fetched and a local error when the commit fails.
func (e *Executor) Submit(ctx context.Context, req domain.TradeRequest) (domain.TradeOutcome, error) {
	req.AssetID = domain.NormalizeAssetID(req.AssetID)

	rec, err := e.journal.Prepare(req)
	if err != nil {
		return domain.TradeOutcome{}, domain.LocalError("journal trade", err)
	}

	outcome := domain.TradeOutcome{
		ID:      rec.ID,
		Status:  domain.StatusRequested,
		Side:    req.Side,
		AssetID: req.AssetID,
		Time:    e.now(),
	}

	logger := e.l.With(
		zap.String("trade_id", rec.ID),
		zap.String("side", string(req.Side)),
		zap.String("asset", req.AssetID),
		zap.String("quantity", req.Quantity))

	committed, err := e.execute(ctx, req, &outcome)
	if err != nil {
		outcome.Status = domain.StatusRejected
		outcome.Code = domain.CodeOf(err)
		outcome.Reason = err.Error()
		if _, jerr := e.journal.MarkFailed(rec, outcome.Code, err); jerr != nil {
			logger.Error("failed to journal rejected trade", zap.Error(jerr))
		}
		logger.Info("trade rejected",
			zap.String("kind", domain.KindOf(err).String()),
			zap.String("code", string(outcome.Code)),
			zap.Error(err))
		return outcome, err
	}

	outcome = committed
	if _, jerr := e.journal.MarkDone(rec, outcome); jerr != nil {
		logger.Error("failed to journal committed trade", zap.Error(jerr))
	}
	logger.Info("trade committed",
		zap.String("price", outcome.Price.String()),
		zap.String("notional", outcome.Notional.String()),
		zap.String("cash", outcome.Cash.String()))

	return outcome, nil
}

func (e *Executor) execute(ctx context.Context, req domain.TradeRequest, outcome *domain.TradeOutcome) (domain.TradeOutcome, error) {
	if !req.Side.IsValid() {
		return domain.TradeOutcome{}, domain.ValidationError(domain.CodeUnknown,
			fmt.Sprintf("unknown trade side %q", req.Side))
	}
	if req.AssetID == "" {
		return domain.TradeOutcome{}, domain.ValidationError(domain.CodeUnknown, "asset id is required")
	}

	quantity, err := e.validateQuantity(req.Quantity)
	if err != nil {
		return domain.TradeOutcome{}, err
	}
	outcome.Quantity = quantity
	outcome.Status = domain.StatusValidated

	// holdings do not depend on the price, so an oversell is reported as such
	// even when the price source is down
	err = e.ledger.Update(ctx, func(tx *ledger.Tx) error {
		outcome.Cash = tx.CashBalance()
		if req.Side != domain.SideSell {
			return nil
		}
		lot := domain.AssetLot{AssetID: req.AssetID}
		if held, ok := tx.Lot(req.AssetID); ok {
			lot = held
		}
		_, err := lot.Sell(quantity)
		return err
	})
	if err != nil {
		return domain.TradeOutcome{}, err
	}

	price, err := e.price(ctx, req.AssetID)
	if err != nil {
		return domain.TradeOutcome{}, err
	}
	outcome.Price = price
	outcome.Notional = quantity.Mul(price)

	result := *outcome
	err = e.ledger.Update(ctx, func(tx *ledger.Tx) error {
		var (
			cash = tx.CashBalance()
			lot  = domain.AssetLot{AssetID: req.AssetID}
		)
		if held, ok := tx.Lot(req.AssetID); ok {
			lot = held
		}
		outcome.Cash = cash

		next, nextCash, err := apply(req.Side, lot, cash, quantity, price)
		if err != nil {
			return err
		}

		if err := tx.SetCashBalance(nextCash); err != nil {
			return err
		}
		if err := tx.UpsertLot(next); err != nil {
			return err
		}

		result.Cash = nextCash
		result.Lot = nil
		if !next.IsEmpty() {
			result.Lot = &next
		}
		return nil
	})
	if err != nil {
		return domain.TradeOutcome{}, err
	}

	result.Status = domain.StatusCommitted
	return result, nil
}

// validateQuantity applies the amount rules: a parseable positive quantity
// inside the configured lot bounds.
func (e *Executor) validateQuantity(raw string) (domain.Money, error) {
	quantity, err := domain.ParseMoney(raw)
	if err != nil || !quantity.IsPositive() {
		return domain.Zero, domain.ValidationError(domain.CodeInvalidAmount,
			fmt.Sprintf("quantity must be a positive number, got %q", raw))
	}
	if quantity.LessThan(e.bounds.MinLot) || quantity.GreaterThan(e.bounds.MaxLot) {
		return domain.Zero, domain.ValidationError(domain.CodeOutOfBounds,
			fmt.Sprintf("quantity %s outside [%s, %s]", quantity, e.bounds.MinLot, e.bounds.MaxLot))
	}
	return quantity, nil
}

func (e *Executor) price(ctx context.Context, assetID string) (domain.Money, error) {
	quotes, err := e.port.FetchQuotes(ctx, []string{assetID})
	if err != nil {
		if domain.KindOf(err) == domain.KindRemote {
			return domain.Zero, err
		}
		return domain.Zero, domain.RemoteError("fetch price", err)
	}
	quote, ok := domain.QuoteIndex(quotes)[assetID]
	if !ok {
		return domain.Zero, domain.RemoteError("fetch price", errors.Errorf("no price for %s", assetID))
	}
	return quote.Price, nil
}

// apply evaluates the balance rules against the committed state and returns
// the resulting lot and cash balance.
func apply(side domain.TradeSide, lot domain.AssetLot, cash, quantity, price domain.Money) (domain.AssetLot, domain.Money, error) {
	notional := quantity.Mul(price)

	var (
		next     domain.AssetLot
		nextCash domain.Money
		err      error
	)

	switch side {
	case domain.SideBuy:
		if notional.GreaterThan(cash) {
			return domain.AssetLot{}, domain.Zero, domain.ValidationError(domain.CodeInsufficientFunds,
				fmt.Sprintf("insufficient funds: need %s, have %s", notional, cash))
		}
		if price.IsNegative() {
			return domain.AssetLot{}, domain.Zero, invalidPrice(price)
		}
		next, err = lot.Buy(quantity, price)
		nextCash = cash.Sub(notional)
	case domain.SideSell:
		next, err = lot.Sell(quantity)
		if err != nil {
			return domain.AssetLot{}, domain.Zero, err
		}
		if price.IsNegative() {
			return domain.AssetLot{}, domain.Zero, invalidPrice(price)
		}
		nextCash = cash.Add(notional)
	default:
		return domain.AssetLot{}, domain.Zero, domain.ValidationError(domain.CodeUnknown,
			fmt.Sprintf("unknown trade side %q", side))
	}
	if err != nil {
		return domain.AssetLot{}, domain.Zero, err
	}
	if nextCash.IsNegative() {
		return domain.AssetLot{}, domain.Zero, domain.ValidationError(domain.CodeUnknown,
			fmt.Sprintf("resulting cash balance %s is negative", nextCash))
	}

	return next, nextCash, nil
}

func invalidPrice(price domain.Money) error {
	return domain.ValidationError(domain.CodeUnknown, fmt.Sprintf("price %s is not a valid amount", price))
}
