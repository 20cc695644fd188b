package journal

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
)

func committed(qty, price string) domain.TradeOutcome {
	q := domain.FromDecimalString(qty)
	p := domain.FromDecimalString(price)
	return domain.TradeOutcome{Status: domain.StatusCommitted, Quantity: q, Price: p, Notional: q.Mul(p)}
}

func TestStore_Lifecycle(t *testing.T) {
	s := NewInMemory()

	rec, err := s.Prepare(domain.TradeRequest{Side: domain.SideBuy, AssetID: "X", Quantity: "0.5"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, uint64(1), rec.Index)

	done, err := s.MarkDone(rec, committed("0.5", "100"))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, done.Status)
	assert.True(t, done.Notional.Equal(domain.FromInt(50)))

	other, err := s.Prepare(domain.TradeRequest{ID: "client-1", Side: domain.SideSell, AssetID: "X", Quantity: "1"})
	require.NoError(t, err)
	assert.Equal(t, "client-1", other.ID)
	_, err = s.MarkFailed(other, domain.CodeInsufficientHoldings, errors.New("insufficient holdings"))
	require.NoError(t, err)

	trades := s.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, rec.ID, trades[0].ID)
	assert.Equal(t, StatusDone, trades[0].Status)
	assert.Equal(t, StatusFailed, trades[1].Status)
	assert.Equal(t, domain.CodeInsufficientHoldings, trades[1].Code)

	assert.Equal(t, uint64(4), s.CurrentIndex())
	after := s.RecordsAfter(2)
	require.Len(t, after, 2)
	assert.Equal(t, "client-1", after[0].ID)

	got, ok := s.Trade("client-1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestStore_ReplaysFromWAL(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	rec, err := s.Prepare(domain.TradeRequest{Side: domain.SideBuy, AssetID: "BTC", Quantity: "0.1"})
	require.NoError(t, err)
	_, err = s.MarkDone(rec, committed("0.1", "60000"))
	require.NoError(t, err)
	pending, err := s.Prepare(domain.TradeRequest{Side: domain.SideBuy, AssetID: "ETH", Quantity: "1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	trades := reopened.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, StatusDone, trades[0].Status)
	assert.True(t, trades[0].Price.Equal(domain.FromInt(60000)))
	assert.Equal(t, pending.ID, trades[1].ID)
	assert.Equal(t, StatusPending, trades[1].Status)
	assert.Equal(t, uint64(3), reopened.CurrentIndex())

	next, err := reopened.Prepare(domain.TradeRequest{Side: domain.SideSell, AssetID: "BTC", Quantity: "0.1"})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next.Index)
}

func TestStore_NilReceiver(t *testing.T) {
	var s *Store
	_, err := s.Prepare(domain.TradeRequest{})
	assert.Error(t, err)
	assert.Nil(t, s.Trades())
	assert.Equal(t, uint64(0), s.CurrentIndex())
	assert.NoError(t, s.Close())
}
