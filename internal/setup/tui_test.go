package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/config"
)

func TestParseStaticPrices(t *testing.T) {
	prices, err := parseStaticPrices(" btc=65000, ETH = 3000.25 ,")
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "65000", prices["BTC"].String())
	assert.Equal(t, "3000.25", prices["ETH"].String())

	for _, bad := range []string{"", "BTC", "=5", "BTC=abc", "BTC=-1"} {
		_, err := parseStaticPrices(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateDecimal(t *testing.T) {
	assert.NoError(t, validateDecimal(true)("0"))
	assert.Error(t, validateDecimal(false)("0"))
	assert.Error(t, validateDecimal(true)("-1"))
	assert.Error(t, validateDecimal(true)("x"))
	assert.NoError(t, validateDecimal(false)("0.5"))
}

func TestAnswersConfig(t *testing.T) {
	a := defaultAnswers()
	a.platform = config.PlatformStatic
	a.quoteCurrency = "usdc"
	a.staticPrices = "BTC=100"
	a.seedBalance = "500"

	cfg, err := a.config()
	require.NoError(t, err)
	assert.Equal(t, "USDC", cfg.QuoteCurrency)
	assert.Equal(t, "500", cfg.SeedBalance.String())
	assert.Equal(t, "100", cfg.StaticPrices["BTC"].String())
	assert.Empty(t, cfg.Credentials.BinanceAPIKey)
}

func TestAnswersConfig_ExchangeWithoutKeys(t *testing.T) {
	a := defaultAnswers()
	a.platform = config.PlatformBybit

	cfg, err := a.config()
	require.NoError(t, err)
	assert.Equal(t, config.PlatformBybit, cfg.Platform)
	assert.Equal(t, "BYBIT_API_KEY and BYBIT_API_SECRET", credentialEnv(cfg.Platform))
}

func TestAnswersConfig_Invalid(t *testing.T) {
	a := defaultAnswers()
	a.minLot = "10"
	a.maxLot = "1"
	_, err := a.config()
	assert.Error(t, err)

	a = defaultAnswers()
	a.refreshInterval = "soon"
	_, err = a.config()
	assert.Error(t, err)
}
