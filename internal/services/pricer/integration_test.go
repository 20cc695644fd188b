//go:build integration

package pricer

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/clients"
)

// To run: go test -tags=integration ./internal/services/pricer/...
func TestBinanceQuoter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	q := NewBinanceQuoter(clients.NewPublicBinanceClient(), "USDT", nil)

	quotes, err := q.FetchQuotes(context.Background(), []string{"BTC", "ETH", "NOTACOIN"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, quote := range quotes {
		assert.True(t, quote.Price.IsPositive(), "expected price > 0 for %s", quote.AssetID)
		t.Logf("%s: %s", quote.AssetID, quote.Price)
	}
}

func TestBybitQuoter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	apiKey := os.Getenv("BYBIT_API_KEY")
	apiSecret := os.Getenv("BYBIT_API_SECRET")
	if apiKey == "" || apiSecret == "" {
		t.Skip("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
	}

	q := NewBybitQuoter(clients.NewBybitClient(apiKey, apiSecret), "USDT", 2, nil)

	quotes, err := q.FetchQuotes(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	for _, quote := range quotes {
		assert.True(t, quote.Price.IsPositive())
	}
}
