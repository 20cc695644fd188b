// Command folio keeps a portfolio ledger of asset lots and cash, values it
// at live market prices and serves it over HTTP.
//
// Usage:
//
//	folio setup                       write a config file interactively
//	folio --config folio.yaml serve   run the HTTP API and record valuations
//	folio --config folio.yaml status  print the current valuation
//	folio buy BTC 0.5                 buy at the current market price
//
// Exchange credentials are read from the environment:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
