package domain

import (
	"fmt"
	"strings"
	"time"
)

// TradeSide buy or sell.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// ParseTradeSide parses "buy" or "sell", case-insensitively.
func ParseTradeSide(s string) (TradeSide, error) {
	switch TradeSide(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown trade side: %q", s)
	}
}

// IsValid checks if the side is buy or sell.
func (s TradeSide) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// TradeStatus lifecycle of a trade request.
type TradeStatus string

const (
	StatusRequested TradeStatus = "requested"
	StatusValidated TradeStatus = "validated"
	StatusCommitted TradeStatus = "committed"
	StatusRejected  TradeStatus = "rejected"
)

// TradeRequest buy or sell intent issued by a UI layer.
type TradeRequest struct {
	// ID optional client id; generated when empty.
	ID      string    `json:"id,omitempty"`
	Side    TradeSide `json:"side"`
	AssetID string    `json:"asset_id"`
	// Quantity raw decimal string as entered by the user.
	Quantity string `json:"quantity"`
}

// String returns a human-readable string representation.
func (r TradeRequest) String() string {
	return fmt.Sprintf("%s %s quantity: %s", r.Side, r.AssetID, r.Quantity)
}

// TradeOutcome result of a submitted trade.
type TradeOutcome struct {
	ID       string      `json:"id"`
	Status   TradeStatus `json:"status"`
	Side     TradeSide   `json:"side"`
	AssetID  string      `json:"asset_id"`
	Quantity Money       `json:"quantity"`
	Price    Money       `json:"price"`
	Notional Money       `json:"notional"`
	// Cash balance after the commit. On rejection it is the untouched balance, or
	// zero when the request was rejected before the ledger was read.
	Cash Money `json:"cash"`
	// Lot after the commit; nil when the lot was sold down to zero or the trade was rejected.
	Lot    *AssetLot `json:"lot,omitempty"`
	Code   ErrorCode `json:"code,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Time   time.Time `json:"time"`
}

// Committed reports whether the trade was applied.
func (o TradeOutcome) Committed() bool {
	return o.Status == StatusCommitted
}
