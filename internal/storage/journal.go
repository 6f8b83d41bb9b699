// Package storage keeps a durable journal of every closed trade in a
// sqlite database. The journal is diagnostic history, not bookkeeping: the
// engine's source of truth for open exposure stays in the persisted
// BotState, and journal failures must never stop trading.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// Journal records closed trades for one or more bots.
type Journal struct {
	db *sql.DB
}

// ClosedTrade is one journal row: a completed round trip or a forced close.
type ClosedTrade struct {
	BotID      string
	Symbol     string
	Side       string // entry side of the trade
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	EntryFee   float64
	PnL        float64
	Reason     string // "target", "take_profit", "stop_loss", "bot_stop_loss", "shutdown"
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Summary aggregates a bot's journal for the final report.
type Summary struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
}

// OpenJournal opens (creating if necessary) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal tables: %w", err)
	}
	return &Journal{db: db}, nil
}

func createTables(db *sql.DB) error {
	const createClosedTradesSQL = `
	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bot_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		qty REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		entry_fee REAL NOT NULL,
		pnl REAL NOT NULL,
		reason TEXT NOT NULL,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(createClosedTradesSQL); err != nil {
		return err
	}

	const createIndexSQL = `
	CREATE INDEX IF NOT EXISTS idx_closed_trades_bot ON closed_trades (bot_id);`
	_, err := db.Exec(createIndexSQL)
	return err
}

// Record appends one closed trade.
func (j *Journal) Record(ct ClosedTrade) error {
	const insertSQL = `
	INSERT INTO closed_trades
		(bot_id, symbol, side, qty, entry_price, exit_price, entry_fee, pnl, reason, opened_at, closed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`

	_, err := j.db.Exec(insertSQL,
		ct.BotID, ct.Symbol, ct.Side, ct.Qty, ct.EntryPrice, ct.ExitPrice,
		ct.EntryFee, ct.PnL, ct.Reason, ct.OpenedAt.UnixMilli(), ct.ClosedAt.UnixMilli())
	return err
}

// Summarize aggregates the journal rows for botID.
func (j *Journal) Summarize(botID string) (*Summary, error) {
	const querySQL = `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(pnl), 0)
	FROM closed_trades WHERE bot_id = ?;`

	var s Summary
	row := j.db.QueryRow(querySQL, botID)
	if err := row.Scan(&s.TotalTrades, &s.WinningTrades, &s.LosingTrades, &s.TotalPnL); err != nil {
		return nil, err
	}
	return &s, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
