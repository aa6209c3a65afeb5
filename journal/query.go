package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ahlbert/mt5-tradingbot/broker"
)

// Stats aggregates closed trades over the last `days` days.
func (j *SQLite) Stats(days int) (Stats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)

	row := j.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN profit > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN profit < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(profit), 0),
			COALESCE(AVG(profit), 0),
			COALESCE(MAX(profit), 0),
			COALESCE(MIN(profit), 0)
		FROM trades
		WHERE status = ? AND close_time >= ?`, StatusClosed, since)

	var s Stats
	err := row.Scan(
		&s.TotalTrades,
		&s.WinningTrades,
		&s.LosingTrades,
		&s.TotalProfit,
		&s.AvgProfit,
		&s.MaxProfit,
		&s.MinProfit,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return s, nil
}

// RecentTrades returns the newest trades by open time.
func (j *SQLite) RecentTrades(limit int) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT order_id, symbol, side, volume, open_price, stop_loss, take_profit,
		       open_time, status, close_price, close_time, profit
		FROM trades
		ORDER BY open_time DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var (
			rec       TradeRecord
			side      string
			closeTime sql.NullTime
		)
		if err := rows.Scan(
			&rec.OrderID,
			&rec.Symbol,
			&side,
			&rec.Volume,
			&rec.OpenPrice,
			&rec.StopLoss,
			&rec.TakeProfit,
			&rec.OpenTime,
			&rec.Status,
			&rec.ClosePrice,
			&closeTime,
			&rec.Profit,
		); err != nil {
			return nil, err
		}
		rec.Side = broker.Side(side)
		if closeTime.Valid {
			rec.CloseTime = closeTime.Time
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastTradeTime returns the open time of the most recent trade, or the zero
// time with ok=false when the ledger is empty. Used by the health check.
func (j *SQLite) LastTradeTime() (time.Time, bool, error) {
	row := j.db.QueryRow(`SELECT open_time FROM trades ORDER BY open_time DESC LIMIT 1`)

	var t time.Time
	if err := row.Scan(&t); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query last trade: %w", err)
	}
	return t, true, nil
}
