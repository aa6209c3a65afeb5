package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the Ledger implementation backed by a local SQLite file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// LogTrade inserts a trade row. The order_id primary key makes the insert
// idempotent: a duplicate is skipped and reported as (false, nil).
func (j *SQLite) LogTrade(rec TradeRecord) (bool, error) {
	res, err := j.db.Exec(`
		INSERT OR IGNORE INTO trades
		(order_id, symbol, side, volume, open_price, stop_loss, take_profit, open_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OrderID, rec.Symbol, string(rec.Side), rec.Volume, rec.OpenPrice,
		rec.StopLoss, rec.TakeProfit, rec.OpenTime.UTC(), StatusOpen,
	)
	if err != nil {
		return false, fmt.Errorf("log trade %s: %w", rec.OrderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateOnClose marks a trade closed. An unknown order ID is a no-op
// reported as (false, nil).
func (j *SQLite) UpdateOnClose(orderID string, closePrice, profit float64, closeTime time.Time) (bool, error) {
	res, err := j.db.Exec(`
		UPDATE trades
		SET close_price = ?, profit = ?, close_time = ?, status = ?
		WHERE order_id = ?`,
		closePrice, profit, closeTime.UTC(), StatusClosed, orderID,
	)
	if err != nil {
		return false, fmt.Errorf("update trade %s: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (j *SQLite) RecordEquity(snap EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, profit, margin, margin_free, margin_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.Time.UTC(), snap.Balance, snap.Equity, snap.Profit,
		snap.Margin, snap.MarginFree, snap.MarginLevel,
	)
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
