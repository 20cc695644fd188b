package pricer

import (
	"context"
	"sync"

	"github.com/vadiminshakov/folio/internal/domain"
)

// StaticQuoter serves prices from memory. Used for offline runs and tests.
type StaticQuoter struct {
	mu     sync.RWMutex
	prices map[string]domain.Money
}

// NewStaticQuoter creates a quoter with the given asset prices.
func NewStaticQuoter(prices map[string]domain.Money) *StaticQuoter {
	q := &StaticQuoter{prices: make(map[string]domain.Money, len(prices))}
	for id, p := range prices {
		q.prices[domain.NormalizeAssetID(id)] = p
	}
	return q
}

// SetPrice sets or replaces the price of assetID.
func (q *StaticQuoter) SetPrice(assetID string, price domain.Money) {
	q.mu.Lock()
	q.prices[domain.NormalizeAssetID(assetID)] = price
	q.mu.Unlock()
}

// RemovePrice makes assetID unpriced.
func (q *StaticQuoter) RemovePrice(assetID string) {
	q.mu.Lock()
	delete(q.prices, domain.NormalizeAssetID(assetID))
	q.mu.Unlock()
}

func (q *StaticQuoter) FetchQuotes(ctx context.Context, assetIDs []string) ([]domain.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.RemoteError("fetch static prices", err)
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := domain.DistinctAssetIDs(assetIDs)
	quotes := make([]domain.PriceQuote, 0, len(ids))
	for _, id := range ids {
		if p, ok := q.prices[id]; ok {
			quotes = append(quotes, domain.PriceQuote{AssetID: id, Price: p})
		}
	}
	return quotes, nil
}
