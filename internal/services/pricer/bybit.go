package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/folio/internal/domain"
)

const defaultBybitWorkers = 4

// tickerFunc returns the last price of symbol, or ok=false when Bybit has no ticker for it.
type tickerFunc func(ctx context.Context, symbol string) (price string, ok bool, err error)

// BybitQuoter prices assets with one spot ticker request per asset, issued by
// a bounded pool of workers.
type BybitQuoter struct {
	ticker  tickerFunc
	quote   string
	workers int
	l       *zap.Logger
}

// NewBybitQuoter creates a quoter that prices assets in quote using up to workers concurrent requests.
func NewBybitQuoter(client *bybit.Client, quote string, workers int, logger *zap.Logger) *BybitQuoter {
	return newBybitQuoter(func(_ context.Context, symbol string) (string, bool, error) {
		s := bybit.SymbolV5(symbol)
		result, err := client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: "spot",
			Symbol:   &s,
		})
		if err != nil {
			return "", false, err
		}
		if len(result.Result.Spot.List) == 0 {
			return "", false, nil
		}
		return result.Result.Spot.List[0].LastPrice, true, nil
	}, quote, workers, logger)
}

func newBybitQuoter(ticker tickerFunc, quote string, workers int, logger *zap.Logger) *BybitQuoter {
	if workers < 1 {
		workers = defaultBybitWorkers
	}
	return &BybitQuoter{ticker: ticker, quote: quoteOrDefault(quote), workers: workers, l: loggerOrNop(logger)}
}

// FetchQuotes fetches all requested assets. Any failed request fails the whole fetch.
func (q *BybitQuoter) FetchQuotes(ctx context.Context, assetIDs []string) ([]domain.PriceQuote, error) {
	ids := domain.DistinctAssetIDs(assetIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	type slot struct {
		quote domain.PriceQuote
		ok    bool
	}
	slots := make([]slot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			symbol := domain.NewPair(id, q.quote).Symbol()
			raw, ok, err := q.ticker(gctx, symbol)
			if err != nil {
				return errors.Wrapf(err, "get ticker %s", symbol)
			}
			if !ok {
				q.l.Debug("no bybit ticker", zap.String("symbol", symbol))
				return nil
			}
			slots[i].quote, slots[i].ok = parsePrice(q.l, id, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.RemoteError("fetch bybit prices", err)
	}

	quotes := make([]domain.PriceQuote, 0, len(ids))
	for _, s := range slots {
		if s.ok {
			quotes = append(quotes, s.quote)
		}
	}
	return quotes, nil
}
