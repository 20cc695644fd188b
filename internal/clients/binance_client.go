// Package clients builds the exchange SDK clients used for market data.
package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient creates an authenticated Binance client.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

// NewPublicBinanceClient creates a Binance client without API keys. Public
// market data endpoints work without authentication.
func NewPublicBinanceClient() *binance.Client {
	return binance.NewClient("", "")
}
