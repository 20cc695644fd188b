package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrivateKey(t *testing.T) {
	const (
		key  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
		addr = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	)

	for _, in := range []string{key, "0x" + key, " 0X" + key + " "} {
		pk, got, err := parsePrivateKey(in)
		require.NoError(t, err, in)
		require.NotNil(t, pk)
		assert.Equal(t, addr, got)
	}
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	for _, in := range []string{"", "0x", "zz", "1234"} {
		_, _, err := parsePrivateKey(in)
		assert.Error(t, err, in)
	}
}

func TestNewHyperliquidClient_InvalidKey(t *testing.T) {
	_, err := NewHyperliquidClient("not-a-key", "https://api.hyperliquid.xyz")
	require.Error(t, err)
}

func TestNewBinanceClients(t *testing.T) {
	c := NewBinanceClient("key", "secret")
	assert.Equal(t, "key", c.APIKey)

	public := NewPublicBinanceClient()
	assert.Empty(t, public.APIKey)
}

func TestNewBybitClient(t *testing.T) {
	assert.NotNil(t, NewBybitClient("key", "secret"))
}
