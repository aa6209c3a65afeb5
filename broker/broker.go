package broker

import (
	"context"
	"time"

	"github.com/ahlbert/mt5-tradingbot/market"
)

// Side is the direction of an order or open position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// AccountSnapshot is the account state at one point in time. The orchestrator
// fetches it once per iteration and every risk decision in that iteration
// reads the same snapshot.
type AccountSnapshot struct {
	Balance       float64
	Equity        float64
	Profit        float64
	Margin        float64
	MarginFree    float64
	MarginLevel   float64 // percent; 0 when Margin == 0
	OpenPositions int
}

// Position is one open trade at the venue.
type Position struct {
	ID           string
	Symbol       string
	Side         Side
	Volume       float64 // lots
	OpenPrice    float64
	CurrentPrice float64
	Profit       float64
	OpenTime     time.Time
}

// OrderRequest asks the venue to open a market order. StopLoss and TakeProfit
// are absolute prices; nil leaves the level unset.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64 // lots
	StopLoss   *float64
	TakeProfit *float64
	ClientTag  string
}

// OrderResult is the venue's answer to a placed order.
type OrderResult struct {
	OrderID   string
	Symbol    string
	Side      Side
	Volume    float64
	FillPrice float64
	Time      time.Time
}

// CloseAllSummary tallies a best-effort close of every open position.
type CloseAllSummary struct {
	Attempted int
	Succeeded int
	FailedIDs []string
}

// Gateway is the venue boundary. Implementations talk to a real trading
// platform; the sim package provides an in-process one for tests and dry
// runs. Every call that can touch the network takes a context.
type Gateway interface {
	IsMarketOpen(ctx context.Context, symbol string) (bool, error)
	GetAccountSnapshot(ctx context.Context) (AccountSnapshot, error)
	GetMarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ListOpenPositions(ctx context.Context) ([]Position, error)
	ClosePosition(ctx context.Context, id string) error
	CloseAllPositions(ctx context.Context) (CloseAllSummary, error)
	Close() error
}
