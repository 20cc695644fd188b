package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/config"
	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/pricer"
)

func staticConfig(t *testing.T, storage string) config.Config {
	t.Helper()
	conf := config.Default()
	conf.Platform = config.PlatformStatic
	conf.Storage = storage
	conf.StateDir = t.TempDir()
	conf.RefreshInterval = 0
	conf.StaticPrices = map[string]domain.Money{"BTC": domain.FromInt(100)}
	require.NoError(t, conf.Validate())
	return conf
}

func TestNewMarketData(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		creds    config.Credentials
		wantErr  bool
		check    func(t *testing.T, port domain.MarketDataPort)
	}{
		{
			name:     "static is not retried",
			platform: config.PlatformStatic,
			check: func(t *testing.T, port domain.MarketDataPort) {
				assert.IsType(t, &pricer.StaticQuoter{}, port)
			},
		},
		{
			name:     "simulate",
			platform: config.PlatformSimulate,
			check: func(t *testing.T, port domain.MarketDataPort) {
				assert.IsType(t, &pricer.Retrying{}, port)
			},
		},
		{
			name:     "binance",
			platform: config.PlatformBinance,
			creds:    config.Credentials{BinanceAPIKey: "k", BinanceAPISecret: "s"},
			check: func(t *testing.T, port domain.MarketDataPort) {
				assert.IsType(t, &pricer.Retrying{}, port)
			},
		},
		{
			name:     "bybit",
			platform: config.PlatformBybit,
			creds:    config.Credentials{BybitAPIKey: "k", BybitAPISecret: "s"},
			check: func(t *testing.T, port domain.MarketDataPort) {
				assert.IsType(t, &pricer.Retrying{}, port)
			},
		},
		{
			name:     "hyperliquid with a bad key",
			platform: config.PlatformHyperliquid,
			creds:    config.Credentials{HyperliquidPrivateKey: "nope"},
			wantErr:  true,
		},
		{
			name:     "unsupported platform",
			platform: "kraken",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := config.Default()
			conf.Platform = tt.platform
			conf.Credentials = tt.creds

			port, err := newMarketData(conf, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, port)
		})
	}
}

func TestNewPortfolio_UnsupportedPlatform(t *testing.T) {
	conf := config.Default()
	conf.Platform = "kraken"
	_, err := NewPortfolio(context.Background(), conf, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform: kraken")
}

func TestPortfolio_TradeAndValue(t *testing.T) {
	ctx := context.Background()
	p, err := NewPortfolio(ctx, staticConfig(t, config.StorageMemory), nil)
	require.NoError(t, err)
	defer p.Close()

	outcome, err := p.Trader.Submit(ctx, domain.TradeRequest{Side: domain.SideBuy, AssetID: "btc", Quantity: "2"})
	require.NoError(t, err)
	assert.True(t, outcome.Committed())

	v, err := p.Valuation.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10000", v.TotalValue.String())
	assert.Equal(t, "9800", v.Cash.String())
	require.Len(t, v.Assets, 1)
	assert.Equal(t, "200", v.Assets[0].MarketValue.String())

	assert.Len(t, p.Journal.Trades(), 1)
}

func TestPortfolio_RunRecordsSnapshots(t *testing.T) {
	p, err := NewPortfolio(context.Background(), staticConfig(t, config.StorageMemory), nil)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		rec, ok := p.Snapshots.Latest()
		return ok && rec.Snapshot.TotalValue == "10000"
	}, 2*time.Second, 10*time.Millisecond)

	_, err = p.Trader.Submit(context.Background(), domain.TradeRequest{Side: domain.SideBuy, AssetID: "BTC", Quantity: "1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		rec, ok := p.Snapshots.Latest()
		return ok && rec.Snapshot.Assets == 1 && rec.Snapshot.Cash == "9900"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPortfolio_Reopen(t *testing.T) {
	for _, storage := range []string{config.StorageWAL, config.StorageSQLite} {
		t.Run(storage, func(t *testing.T) {
			ctx := context.Background()
			conf := staticConfig(t, storage)

			p, err := NewPortfolio(ctx, conf, nil)
			require.NoError(t, err)
			_, err = p.Trader.Submit(ctx, domain.TradeRequest{Side: domain.SideBuy, AssetID: "BTC", Quantity: "3"})
			require.NoError(t, err)
			_, err = p.Snapshots.Save(domain.ValuationSnapshot{Timestamp: time.Now(), TotalValue: "10000"})
			require.NoError(t, err)
			require.NoError(t, p.Close())

			reopened, err := NewPortfolio(ctx, conf, nil)
			require.NoError(t, err)
			defer reopened.Close()

			lot, err := reopened.Ledger.Lot(ctx, "BTC")
			require.NoError(t, err)
			require.NotNil(t, lot)
			assert.Equal(t, "3", lot.Quantity.String())

			cash, err := reopened.Balance.CashBalance(ctx)
			require.NoError(t, err)
			assert.Equal(t, "9700", cash.String())

			assert.Len(t, reopened.Journal.Trades(), 1)
			_, ok := reopened.Snapshots.Latest()
			assert.True(t, ok)
		})
	}
}
