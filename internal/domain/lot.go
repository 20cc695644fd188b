package domain

import (
	"fmt"
)

// AssetLot is the user's holding of one asset.
type AssetLot struct {
	// AssetID unique asset symbol, e.g. BTC.
	AssetID string `json:"asset_id"`
	// Quantity owned units of the asset.
	Quantity Money `json:"quantity"`
	// AverageCost cost basis per unit.
	AverageCost Money `json:"average_cost"`
}

// NewAssetLot constructs a validated lot.
func NewAssetLot(assetID string, quantity, averageCost Money) (AssetLot, error) {
	lot := AssetLot{AssetID: assetID, Quantity: quantity, AverageCost: averageCost}
	if err := lot.Validate(); err != nil {
		return AssetLot{}, err
	}
	return lot, nil
}

// Validate checks lot invariants.
func (l AssetLot) Validate() error {
	if l.AssetID == "" {
		return ValidationError(CodeInvalidAmount, "asset id is required")
	}
	if l.Quantity.IsNegative() {
		return ValidationError(CodeInvalidAmount, fmt.Sprintf("lot %s quantity must not be negative, got %s", l.AssetID, l.Quantity))
	}
	if l.AverageCost.IsNegative() {
		return ValidationError(CodeUnknown, fmt.Sprintf("lot %s average cost must not be negative, got %s", l.AssetID, l.AverageCost))
	}
	return nil
}

// IsEmpty reports whether the lot holds nothing and must not be retained.
func (l AssetLot) IsEmpty() bool {
	return !l.Quantity.IsPositive()
}

// CostBasis total amount paid for the held quantity.
func (l AssetLot) CostBasis() Money {
	return l.Quantity.Mul(l.AverageCost)
}

// Buy returns the lot after adding quantity at price, with the average cost
// recomputed as a weighted average.
func (l AssetLot) Buy(quantity, price Money) (AssetLot, error) {
	total := l.Quantity.Add(quantity)
	notional := l.Quantity.Mul(l.AverageCost).Add(quantity.Mul(price))
	avg, err := notional.Div(total)
	if err != nil {
		return AssetLot{}, ValidationError(CodeUnknown, "cannot average cost over zero quantity")
	}
	next := AssetLot{AssetID: l.AssetID, Quantity: total, AverageCost: avg}
	if err := next.Validate(); err != nil {
		return AssetLot{}, err
	}
	return next, nil
}

// Sell returns the lot after removing quantity. The average cost is unchanged.
func (l AssetLot) Sell(quantity Money) (AssetLot, error) {
	if quantity.GreaterThan(l.Quantity) {
		return AssetLot{}, ValidationError(CodeInsufficientHoldings,
			fmt.Sprintf("insufficient %s holdings: have %s need %s", l.AssetID, l.Quantity, quantity))
	}
	return AssetLot{AssetID: l.AssetID, Quantity: l.Quantity.Sub(quantity), AverageCost: l.AverageCost}, nil
}

// String returns a human-readable representation.
func (l AssetLot) String() string {
	return fmt.Sprintf("%s quantity: %s avg cost: %s", l.AssetID, l.Quantity, l.AverageCost)
}
