package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.yaml")
	data := []byte(`
platform: static
storage: wal
state_dir: ` + filepath.Join(dir, "state") + `
refresh_interval: 0s
static_prices:
  BTC: "100"
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, path, "buy", "btc", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "buy 2 BTC")
	assert.Contains(t, out, "$9,800.00")

	out, err = run(t, path, "lots")
	require.NoError(t, err)
	assert.Contains(t, out, "BTC")
	assert.Contains(t, out, "$200.00")

	out, err = run(t, path, "sell", "BTC", "5")
	require.Error(t, err)
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "insufficient_holdings")

	out, err = run(t, path, "balance", "500")
	require.NoError(t, err)
	assert.Equal(t, "cash $500.00\n", out)

	out, err = run(t, path, "balance", "abc")
	require.NoError(t, err)
	assert.Equal(t, "cash $500.00\n", out)

	out, err = run(t, path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:")
	assert.Contains(t, out, "$700.00")

	out, err = run(t, path, "trades")
	require.NoError(t, err)
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "failed (insufficient_holdings)")
}

func TestCommands_EmptyPortfolio(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, path, "lots")
	require.NoError(t, err)
	assert.Equal(t, "no lots held\n", out)

	out, err = run(t, path, "trades")
	require.NoError(t, err)
	assert.Equal(t, "no trades\n", out)

	out, err = run(t, path, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "$10,000.00")
}

func TestCommands_Errors(t *testing.T) {
	_, err := run(t, filepath.Join(t.TempDir(), "missing.yaml"), "status")
	require.Error(t, err)

	path := writeConfig(t)
	_, err = run(t, path, "buy", "BTC")
	require.Error(t, err)

	_, err = run(t, path, "buy", "ETH", "1")
	require.Error(t, err, "no price for ETH")
}
