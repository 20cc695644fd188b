package domain

import (
	"context"
	"sort"
	"strings"
)

// PriceQuote current price of one asset. Quotes are never cached by the engine.
type PriceQuote struct {
	AssetID string `json:"asset_id"`
	Price   Money  `json:"price"`
}

// MarketDataPort fetches current prices for a set of assets.
// Implementations may return fewer quotes than requested and in any order.
// A failure of the whole fetch must be reported as an error.
type MarketDataPort interface {
	FetchQuotes(ctx context.Context, assetIDs []string) ([]PriceQuote, error)
}

// DistinctAssetIDs returns sorted unique non-empty ids, upper-cased.
func DistinctAssetIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = NormalizeAssetID(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NormalizeAssetID trims and upper-cases an asset symbol.
func NormalizeAssetID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// QuoteIndex maps quotes by asset id. Later duplicates win.
func QuoteIndex(quotes []PriceQuote) map[string]PriceQuote {
	index := make(map[string]PriceQuote, len(quotes))
	for _, q := range quotes {
		index[NormalizeAssetID(q.AssetID)] = q
	}
	return index
}
