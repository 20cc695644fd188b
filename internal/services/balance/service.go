// Package balance exposes the cash balance to UI layers.
package balance

import (
	"context"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

// Ledger is the part of the ledger store the service needs.
type Ledger interface {
	CashBalance(ctx context.Context) (domain.Money, error)
	InitializeBalance(ctx context.Context) error
	SetCashBalance(ctx context.Context, amount domain.Money) error
	WatchCashBalance(ctx context.Context) <-chan domain.Money
}

// Service reads and adjusts the cash balance.
type Service struct {
	ledger Ledger
	l      *zap.Logger
}

func NewService(ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{ledger: ledger, l: logger}
}

// Initialize stores the seed balance unless a balance already exists.
func (s *Service) Initialize(ctx context.Context) error {
	return s.ledger.InitializeBalance(ctx)
}

// CashBalance returns the current balance.
func (s *Service) CashBalance(ctx context.Context) (domain.Money, error) {
	return s.ledger.CashBalance(ctx)
}

// WatchCashBalance streams the balance and every change to it.
func (s *Service) WatchCashBalance(ctx context.Context) <-chan domain.Money {
	return s.ledger.WatchCashBalance(ctx)
}

// AdjustCashBalance overwrites the balance with raw. Malformed or negative
// input is ignored: the balance stays unchanged and no error is returned.
// Errors are returned only when storing a valid amount fails.
func (s *Service) AdjustCashBalance(ctx context.Context, raw string) error {
	amount, err := domain.ParseMoney(raw)
	if err != nil {
		s.l.Debug("ignoring malformed cash balance", zap.String("raw", raw), zap.Error(err))
		return nil
	}
	if amount.IsNegative() {
		s.l.Debug("ignoring negative cash balance", zap.String("amount", amount.String()))
		return nil
	}

	if err := s.ledger.SetCashBalance(ctx, amount); err != nil {
		return err
	}
	s.l.Info("cash balance adjusted", zap.String("amount", amount.String()))
	return nil
}
