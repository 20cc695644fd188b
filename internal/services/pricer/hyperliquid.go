package pricer

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

// MidsSource returns mid prices keyed by base coin. *hyperliquid.Info implements it.
type MidsSource interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// HyperliquidQuoter prices assets from Hyperliquid mid prices.
type HyperliquidQuoter struct {
	info MidsSource
	l    *zap.Logger
}

func NewHyperliquidQuoter(info MidsSource, logger *zap.Logger) *HyperliquidQuoter {
	return &HyperliquidQuoter{info: info, l: loggerOrNop(logger)}
}

func (q *HyperliquidQuoter) FetchQuotes(ctx context.Context, assetIDs []string) ([]domain.PriceQuote, error) {
	ids := domain.DistinctAssetIDs(assetIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	if q.info == nil {
		return nil, domain.RemoteError("fetch hyperliquid prices", errors.New("hyperliquid info client is nil"))
	}

	mids, err := q.info.AllMids(ctx)
	if err != nil {
		return nil, domain.RemoteError("fetch hyperliquid prices", errors.Wrap(err, "all mids"))
	}

	quotes := make([]domain.PriceQuote, 0, len(ids))
	for _, id := range ids {
		// mids are keyed by base coin, e.g. "BTC"
		mid, ok := mids[id]
		if !ok || mid == "" {
			continue
		}
		if quote, ok := parsePrice(q.l, id, mid); ok {
			quotes = append(quotes, quote)
		}
	}
	return quotes, nil
}
