// Package pricer adapts exchange SDKs to the market data port.
package pricer

import (
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

// DefaultQuoteCurrency quote asset used to build exchange symbols.
const DefaultQuoteCurrency = "USDT"

var (
	_ domain.MarketDataPort = (*BinanceQuoter)(nil)
	_ domain.MarketDataPort = (*BybitQuoter)(nil)
	_ domain.MarketDataPort = (*HyperliquidQuoter)(nil)
	_ domain.MarketDataPort = (*StaticQuoter)(nil)
	_ domain.MarketDataPort = (*Retrying)(nil)
)

func quoteOrDefault(quote string) string {
	if quote == "" {
		return DefaultQuoteCurrency
	}
	return domain.NormalizeAssetID(quote)
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// parsePrice converts an exchange price string. Malformed prices are skipped
// so that one bad ticker does not fail the whole fetch.
func parsePrice(l *zap.Logger, assetID, raw string) (domain.PriceQuote, bool) {
	price, err := domain.ParseMoney(raw)
	if err != nil {
		l.Warn("skipping malformed price",
			zap.String("asset", assetID),
			zap.String("raw", raw),
			zap.Error(err))
		return domain.PriceQuote{}, false
	}
	return domain.PriceQuote{AssetID: assetID, Price: price}, true
}
