package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/folio/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cash_balance (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	amount TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS lots (
	asset_id TEXT PRIMARY KEY,
	quantity TEXT NOT NULL,
	average_cost TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// sqliteBackend stores the balance as a single-row table and lots keyed by asset id.
// Each commit is one SQL transaction.
type sqliteBackend struct {
	db *sql.DB
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), walDirPermissions); err != nil {
		return nil, errors.Wrapf(err, "failed to ensure ledger directory for %s", path)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open ledger database")
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create ledger schema")
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Load(ctx context.Context) (state, error) {
	loaded := newState()

	var amount string
	err := b.db.QueryRowContext(ctx, `SELECT amount FROM cash_balance WHERE id = 1`).Scan(&amount)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return state{}, errors.Wrap(err, "read cash balance")
	default:
		cash := domain.FromDecimalString(amount)
		loaded.Cash = &cash
	}

	rows, err := b.db.QueryContext(ctx, `SELECT asset_id, quantity, average_cost FROM lots`)
	if err != nil {
		return state{}, errors.Wrap(err, "read lots")
	}
	defer rows.Close()

	for rows.Next() {
		var assetID, quantity, averageCost string
		if err := rows.Scan(&assetID, &quantity, &averageCost); err != nil {
			return state{}, errors.Wrap(err, "scan lot")
		}
		lot := domain.AssetLot{
			AssetID:     assetID,
			Quantity:    domain.FromDecimalString(quantity),
			AverageCost: domain.FromDecimalString(averageCost),
		}
		if lot.IsEmpty() {
			continue
		}
		loaded.Lots[assetID] = lot
	}
	if err := rows.Err(); err != nil {
		return state{}, errors.Wrap(err, "iterate lots")
	}

	return loaded, nil
}

func (b *sqliteBackend) Commit(ctx context.Context, _ state, staged batch) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin ledger transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	if staged.cash != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cash_balance (id, amount, updated_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
			staged.cash.String(), now)
		if err != nil {
			return errors.Wrap(err, "write cash balance")
		}
	}

	for assetID := range staged.deletes {
		if _, err = tx.ExecContext(ctx, `DELETE FROM lots WHERE asset_id = ?`, assetID); err != nil {
			return errors.Wrapf(err, "delete lot %s", assetID)
		}
	}

	for assetID, lot := range staged.upserts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO lots (asset_id, quantity, average_cost, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(asset_id) DO UPDATE SET
				quantity = excluded.quantity,
				average_cost = excluded.average_cost,
				updated_at = excluded.updated_at`,
			assetID, lot.Quantity.String(), lot.AverageCost.String(), now)
		if err != nil {
			return errors.Wrapf(err, "write lot %s", assetID)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit ledger transaction")
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
