// Package db persists orders, fills and periodic PnL snapshots to SQLite.
//
// The repository is write-only from the trading core's perspective: the bot
// records what happened for post-session analysis but never reads state
// back into the control loop. Rows are keyed by a session ID so multiple
// runs can share one database file.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"kalshi-mm/pkg/types"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id              TEXT PRIMARY KEY,
    session_id      TEXT NOT NULL,
    client_order_id TEXT NOT NULL,
    market_id       TEXT NOT NULL,
    side            TEXT NOT NULL,
    order_side      TEXT NOT NULL,
    price           TEXT NOT NULL,
    size            INTEGER NOT NULL,
    filled_size     INTEGER NOT NULL DEFAULT 0,
    status          TEXT NOT NULL,
    created_at      DATETIME NOT NULL,
    updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
    id           TEXT PRIMARY KEY,
    session_id   TEXT NOT NULL,
    order_id     TEXT NOT NULL,
    market_id    TEXT NOT NULL,
    side         TEXT NOT NULL,
    order_side   TEXT NOT NULL,
    price        TEXT NOT NULL,
    size         INTEGER NOT NULL,
    is_simulated INTEGER NOT NULL DEFAULT 0,
    filled_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pnl_snapshots (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id     TEXT NOT NULL,
    realized_pnl   TEXT NOT NULL,
    unrealized_pnl TEXT NOT NULL,
    hourly_pnl     TEXT NOT NULL,
    daily_pnl      TEXT NOT NULL,
    total_fees     TEXT NOT NULL,
    taken_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id);
CREATE INDEX IF NOT EXISTS idx_fills_session  ON fills(session_id, filled_at);
CREATE INDEX IF NOT EXISTS idx_pnl_session    ON pnl_snapshots(session_id, taken_at);
`

// Repository stores trading activity for one session. Prices and PnL are
// stored as decimal strings, never floats, so read-back stays exact.
type Repository struct {
	db        *sql.DB
	sessionID string
}

// Open opens (or creates) the database at path and applies the schema.
// A fresh session ID is generated per call.
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("db.Open: create dir %q: %w", dir, err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db.Open: open %q: %w", path, err)
	}
	// SQLite is single-writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("db.Open: apply schema: %w", err)
	}

	return &Repository{
		db:        sqlDB,
		sessionID: uuid.NewString(),
	}, nil
}

// SessionID returns the identifier rows from this run are keyed by.
func (r *Repository) SessionID() string { return r.sessionID }

// Close closes the underlying database.
func (r *Repository) Close() error { return r.db.Close() }

// SaveOrder inserts or updates an order row. Orders transition status
// in place, so the latest state wins.
func (r *Repository) SaveOrder(ctx context.Context, order types.Order) error {
	const q = `
INSERT INTO orders (id, session_id, client_order_id, market_id, side, order_side,
                    price, size, filled_size, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    filled_size = excluded.filled_size,
    status      = excluded.status,
    updated_at  = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, q,
		order.ID,
		r.sessionID,
		order.ClientOrderID,
		order.MarketID,
		string(order.Side),
		string(order.OrderSide),
		order.Price.String(),
		order.Size.Value(),
		order.FilledSize,
		string(order.Status),
		order.CreatedAt.UTC(),
		order.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db.SaveOrder: %w", err)
	}
	return nil
}

// SaveFill inserts a fill row. Fill IDs are unique, so a replayed fill is
// an error at this layer; the state store has already deduplicated.
func (r *Repository) SaveFill(ctx context.Context, fill types.Fill) error {
	const q = `
INSERT INTO fills (id, session_id, order_id, market_id, side, order_side,
                   price, size, is_simulated, filled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		fill.ID,
		r.sessionID,
		fill.OrderID,
		fill.MarketID,
		string(fill.Side),
		string(fill.OrderSide),
		fill.Price.String(),
		fill.Size.Value(),
		fill.IsSimulated,
		fill.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db.SaveFill: %w", err)
	}
	return nil
}

// PnLRecord is one periodic snapshot of the PnL accumulators.
type PnLRecord struct {
	Realized   decimal.Decimal
	Unrealized decimal.Decimal
	Hourly     decimal.Decimal
	Daily      decimal.Decimal
	TotalFees  decimal.Decimal
	TakenAt    time.Time
}

// SavePnLSnapshot appends a PnL snapshot row.
func (r *Repository) SavePnLSnapshot(ctx context.Context, rec PnLRecord) error {
	const q = `
INSERT INTO pnl_snapshots (session_id, realized_pnl, unrealized_pnl,
                           hourly_pnl, daily_pnl, total_fees, taken_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		r.sessionID,
		rec.Realized.String(),
		rec.Unrealized.String(),
		rec.Hourly.String(),
		rec.Daily.String(),
		rec.TotalFees.String(),
		rec.TakenAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("db.SavePnLSnapshot: %w", err)
	}
	return nil
}
