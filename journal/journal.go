// Package journal persists the bot's trade history and equity curve.
package journal

import (
	"time"

	"github.com/ahlbert/mt5-tradingbot/broker"
)

const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// TradeRecord is one order's lifecycle row, keyed by the venue order ID.
// Close fields stay zero until the close-completion update.
type TradeRecord struct {
	OrderID    string
	Symbol     string
	Side       broker.Side
	Volume     float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	Status     string

	ClosePrice float64
	CloseTime  time.Time
	Profit     float64
}

// EquitySnapshot is one point on the account's equity curve.
type EquitySnapshot struct {
	Time        time.Time
	Balance     float64
	Equity      float64
	Profit      float64
	Margin      float64
	MarginFree  float64
	MarginLevel float64
}

// Stats aggregates closed trades over a window.
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalProfit   float64
	AvgProfit     float64
	MaxProfit     float64
	MinProfit     float64
}

// Ledger is the persistence contract the orchestrator depends on.
//
// LogTrade is idempotent on OrderID: inserting a duplicate reports
// (false, nil), already recorded rather than failed. UpdateOnClose against
// an unknown OrderID likewise reports (false, nil), nothing to update.
type Ledger interface {
	LogTrade(rec TradeRecord) (bool, error)
	UpdateOnClose(orderID string, closePrice, profit float64, closeTime time.Time) (bool, error)
	RecordEquity(snap EquitySnapshot) error
	Stats(days int) (Stats, error)
	RecentTrades(limit int) ([]TradeRecord, error)
	Close() error
}
