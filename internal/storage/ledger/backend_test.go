package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
)

func TestPersistentBackends_SurviveReopen(t *testing.T) {
	for _, backend := range []string{BackendWAL, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			seed := money("10000")
			opts := Options{Backend: backend, Dir: t.TempDir(), SeedBalance: &seed}

			s, err := Open(ctx, opts)
			require.NoError(t, err)

			require.NoError(t, s.InitializeBalance(ctx))
			require.NoError(t, s.Update(ctx, func(tx *Tx) error {
				if err := tx.SetCashBalance(money("9950.00")); err != nil {
					return err
				}
				return tx.UpsertLot(domain.AssetLot{AssetID: "X", Quantity: money("0.5"), AverageCost: money("100")})
			}))
			require.NoError(t, s.UpsertLot(ctx, domain.AssetLot{AssetID: "Y", Quantity: money("0.12345678"), AverageCost: money("3")}))
			require.NoError(t, s.DeleteLot(ctx, "Y"))
			require.NoError(t, s.Close())

			reopened, err := Open(ctx, opts)
			require.NoError(t, err)
			defer reopened.Close()

			cash, err := reopened.CashBalance(ctx)
			require.NoError(t, err)
			assert.True(t, cash.Equal(money("9950")), "got %s", cash)

			lots, err := reopened.Lots(ctx)
			require.NoError(t, err)
			require.Len(t, lots, 1)
			assert.Equal(t, "X", lots[0].AssetID)
			assert.True(t, lots[0].Quantity.Equal(money("0.5")))
			assert.True(t, lots[0].AverageCost.Equal(money("100")))

			// already initialized on disk, seed must not overwrite it
			require.NoError(t, reopened.InitializeBalance(ctx))
			cash, _ = reopened.CashBalance(ctx)
			assert.True(t, cash.Equal(money("9950")))
		})
	}
}

func TestBatch_Apply(t *testing.T) {
	base := newState()
	base.Lots["A"] = domain.AssetLot{AssetID: "A", Quantity: money("1")}
	base.Lots["B"] = domain.AssetLot{AssetID: "B", Quantity: money("1")}

	b := newBatch()
	cash := money("5")
	b.cash = &cash
	b.deletes["A"] = struct{}{}
	b.upserts["C"] = domain.AssetLot{AssetID: "C", Quantity: money("2")}

	next := b.apply(base)
	assert.Len(t, base.Lots, 2, "base must not change")
	assert.Nil(t, base.Cash)

	require.NotNil(t, next.Cash)
	assert.True(t, next.Cash.Equal(cash))
	ids := make([]string, 0)
	for _, lot := range next.sortedLots() {
		ids = append(ids, lot.AssetID)
	}
	assert.Equal(t, []string{"B", "C"}, ids)
}
