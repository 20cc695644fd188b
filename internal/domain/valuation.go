package domain

import (
	"time"
)

var hundred = FromInt(100)

// AssetValuation one held asset joined with its current price.
type AssetValuation struct {
	AssetID     string `json:"asset_id"`
	Quantity    Money  `json:"quantity"`
	AverageCost Money  `json:"average_cost"`
	Price       Money  `json:"price"`
	MarketValue Money  `json:"market_value"`
	// PerformancePercent change of price against average cost, in percent.
	PerformancePercent Money `json:"performance_percent"`
}

// NewAssetValuation joins a lot with its quote.
func NewAssetValuation(lot AssetLot, quote PriceQuote) AssetValuation {
	return AssetValuation{
		AssetID:            lot.AssetID,
		Quantity:           lot.Quantity,
		AverageCost:        lot.AverageCost,
		Price:              quote.Price,
		MarketValue:        lot.Quantity.Mul(quote.Price),
		PerformancePercent: PerformancePercent(lot.AverageCost, quote.Price),
	}
}

// PerformancePercent returns (price - cost) / cost * 100, or zero when cost is zero.
func PerformancePercent(cost, price Money) Money {
	ratio, err := price.Sub(cost).Div(cost)
	if err != nil {
		return Zero
	}
	return ratio.Mul(hundred)
}

// PortfolioValuation derived worth of all holdings plus cash.
type PortfolioValuation struct {
	Assets        []AssetValuation `json:"assets"`
	HoldingsValue Money            `json:"holdings_value"`
	Cash          Money            `json:"cash"`
	TotalValue    Money            `json:"total_value"`
	ComputedAt    time.Time        `json:"computed_at"`
}

// NewPortfolioValuation sums the asset values and cash.
func NewPortfolioValuation(assets []AssetValuation, cash Money, at time.Time) PortfolioValuation {
	if assets == nil {
		assets = []AssetValuation{}
	}
	holdings := Zero
	for _, a := range assets {
		holdings = holdings.Add(a.MarketValue)
	}
	return PortfolioValuation{
		Assets:        assets,
		HoldingsValue: holdings,
		Cash:          cash,
		TotalValue:    holdings.Add(cash),
		ComputedAt:    at,
	}
}

// Asset returns the valuation of assetID if present.
func (v PortfolioValuation) Asset(assetID string) (AssetValuation, bool) {
	for _, a := range v.Assets {
		if a.AssetID == assetID {
			return a, true
		}
	}
	return AssetValuation{}, false
}

// ValuationSnapshot persisted summary of a valuation, strings keep exact decimals for UI layers.
type ValuationSnapshot struct {
	Timestamp     time.Time `json:"ts"`
	Cash          string    `json:"cash"`
	HoldingsValue string    `json:"holdings_value"`
	TotalValue    string    `json:"total_value"`
	Assets        int       `json:"assets"`
}

// NewValuationSnapshot summarizes a valuation.
func NewValuationSnapshot(v PortfolioValuation) ValuationSnapshot {
	return ValuationSnapshot{
		Timestamp:     v.ComputedAt,
		Cash:          v.Cash.String(),
		HoldingsValue: v.HoldingsValue.String(),
		TotalValue:    v.TotalValue.String(),
		Assets:        len(v.Assets),
	}
}

// ValuationSnapshotRecord bundles a snapshot with its WAL index.
type ValuationSnapshotRecord struct {
	Index    uint64            `json:"index"`
	Snapshot ValuationSnapshot `json:"snapshot"`
}
