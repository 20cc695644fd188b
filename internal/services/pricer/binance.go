package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

type listPricesFunc func(ctx context.Context) ([]*binance.SymbolPrice, error)

// BinanceQuoter prices assets from the Binance ticker list. One request serves
// any number of assets. Without API keys it uses public market data only.
type BinanceQuoter struct {
	list  listPricesFunc
	quote string
	l     *zap.Logger
}

// NewBinanceQuoter creates a quoter that prices assets in quote (USDT when empty).
func NewBinanceQuoter(client *binance.Client, quote string, logger *zap.Logger) *BinanceQuoter {
	return newBinanceQuoter(func(ctx context.Context) ([]*binance.SymbolPrice, error) {
		return client.NewListPricesService().Do(ctx)
	}, quote, logger)
}

func newBinanceQuoter(list listPricesFunc, quote string, logger *zap.Logger) *BinanceQuoter {
	return &BinanceQuoter{list: list, quote: quoteOrDefault(quote), l: loggerOrNop(logger)}
}

// FetchQuotes returns quotes for the requested assets that Binance lists.
func (q *BinanceQuoter) FetchQuotes(ctx context.Context, assetIDs []string) ([]domain.PriceQuote, error) {
	ids := domain.DistinctAssetIDs(assetIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	prices, err := q.list(ctx)
	if err != nil {
		return nil, domain.RemoteError("fetch binance prices", errors.Wrap(err, "list prices"))
	}

	bySymbol := make(map[string]string, len(prices))
	for _, p := range prices {
		if p == nil {
			continue
		}
		bySymbol[p.Symbol] = p.Price
	}

	quotes := make([]domain.PriceQuote, 0, len(ids))
	for _, id := range ids {
		raw, ok := bySymbol[domain.NewPair(id, q.quote).Symbol()]
		if !ok {
			q.l.Debug("no binance price", zap.String("asset", id))
			continue
		}
		if quote, ok := parsePrice(q.l, id, raw); ok {
			quotes = append(quotes, quote)
		}
	}

	return quotes, nil
}
