package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPortfolioValuation(t *testing.T) {
	lot := AssetLot{AssetID: "X", Quantity: FromDecimalString("0.5"), AverageCost: FromInt(100)}
	asset := NewAssetValuation(lot, PriceQuote{AssetID: "X", Price: FromInt(120)})

	assert.True(t, asset.MarketValue.Equal(FromInt(60)))
	assert.True(t, asset.PerformancePercent.Equal(FromInt(20)), "got %s", asset.PerformancePercent)

	v := NewPortfolioValuation([]AssetValuation{asset}, FromInt(9950), time.Now())
	assert.True(t, v.HoldingsValue.Equal(FromInt(60)))
	assert.True(t, v.TotalValue.Equal(FromInt(10010)))

	empty := NewPortfolioValuation(nil, FromInt(10), time.Now())
	assert.NotNil(t, empty.Assets)
	assert.True(t, empty.TotalValue.Equal(FromInt(10)))
}

func TestPerformancePercent_ZeroCost(t *testing.T) {
	assert.True(t, PerformancePercent(Zero, FromInt(10)).IsZero())
}

func TestDistinctAssetIDs(t *testing.T) {
	assert.Equal(t, []string{"BTC", "ETH"}, DistinctAssetIDs([]string{"eth", "BTC", " btc ", ""}))
}
