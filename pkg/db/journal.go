package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS orders (
    link_id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    entry REAL NOT NULL,
    stop_loss REAL NOT NULL,
    leverage REAL NOT NULL,
    margin REAL NOT NULL,
    placed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    pnl REAL NOT NULL,
    closed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol ON closed_trades(symbol);
`

// ApplyMigrations creates the journal tables.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// OrderRecord is one placed entry order.
type OrderRecord struct {
	LinkID   string
	OrderID  string
	Symbol   string
	Side     string
	Qty      float64
	Entry    float64
	StopLoss float64
	Leverage float64
	Margin   float64
	PlacedAt time.Time
}

// ClosedTrade is one fully closed position with its realized result.
type ClosedTrade struct {
	Symbol   string
	Side     string
	Pnl      float64
	ClosedAt time.Time
}

// Stats aggregates the closed-trade history.
type Stats struct {
	Total    int     `json:"total"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	TotalPnl float64 `json:"totalPnl"`
}

// Journal reads and writes trade history.
type Journal struct {
	db *sql.DB
}

// InsertOrder records a placed entry order.
func (j *Journal) InsertOrder(ctx context.Context, o OrderRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO orders (link_id, order_id, symbol, side, qty, entry, stop_loss, leverage, margin, placed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.LinkID, o.OrderID, o.Symbol, o.Side, o.Qty, o.Entry, o.StopLoss, o.Leverage, o.Margin, o.PlacedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertClosedTrade records a close with its realized PnL.
func (j *Journal) InsertClosedTrade(ctx context.Context, t ClosedTrade) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO closed_trades (symbol, side, pnl, closed_at)
		VALUES (?, ?, ?, ?)
	`, t.Symbol, t.Side, t.Pnl, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("insert closed trade: %w", err)
	}
	return nil
}

// Stats aggregates wins, losses and total PnL over all closed trades. A zero
// PnL counts as a loss, matching the in-memory bookkeeping.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN pnl <= 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(pnl), 0)
		FROM closed_trades
	`)
	var s Stats
	if err := row.Scan(&s.Total, &s.Wins, &s.Losses, &s.TotalPnl); err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

// RecentTrades returns the latest closed trades, newest first.
func (j *Journal) RecentTrades(ctx context.Context, limit int) ([]ClosedTrade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT symbol, side, pnl, closed_at
		FROM closed_trades
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed trades: %w", err)
	}
	defer rows.Close()

	var trades []ClosedTrade
	for rows.Next() {
		var t ClosedTrade
		if err := rows.Scan(&t.Symbol, &t.Side, &t.Pnl, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan closed trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
