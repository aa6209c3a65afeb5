// Package sim is an in-process venue used by tests and dry runs. It fills
// market orders at the posted bid/ask and keeps account equity in sync with
// open-position profit.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/market"
	"github.com/ahlbert/mt5-tradingbot/pkg/id"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrNoPrice          = errors.New("no price for symbol")
)

type Engine struct {
	mu        sync.Mutex
	balance   float64
	prices    map[string]market.Snapshot
	positions map[string]*broker.Position
	open      bool
	now       func() time.Time
}

func NewEngine(balance float64) *Engine {
	return &Engine{
		balance:   balance,
		prices:    make(map[string]market.Snapshot),
		positions: make(map[string]*broker.Position),
		open:      true,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetMarketOpen flips the venue's market state.
func (e *Engine) SetMarketOpen(open bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = open
}

// SetPrice posts a new top of book for a symbol and marks open positions to
// market.
func (e *Engine) SetPrice(symbol string, bid, ask float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.prices[symbol]
	snap.Symbol = symbol
	snap.Bid = bid
	snap.Ask = ask
	snap.Time = e.now()
	e.prices[symbol] = snap

	for _, p := range e.positions {
		if p.Symbol != symbol {
			continue
		}
		p.CurrentPrice = e.closePriceLocked(p)
		p.Profit = positionProfit(p, p.CurrentPrice)
	}
}

// SetCandles attaches candle history to a symbol's snapshots.
func (e *Engine) SetCandles(symbol string, candles []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.prices[symbol]
	snap.Symbol = symbol
	snap.Candles = candles
	e.prices[symbol] = snap
}

func (e *Engine) IsMarketOpen(ctx context.Context, symbol string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open, nil
}

func (e *Engine) GetAccountSnapshot(ctx context.Context) (broker.AccountSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var floating, margin float64
	for _, p := range e.positions {
		floating += p.Profit
		margin += p.Volume * market.LotUnits * p.OpenPrice * 0.01 // 100:1 leverage
	}

	snap := broker.AccountSnapshot{
		Balance:       e.balance,
		Equity:        e.balance + floating,
		Profit:        floating,
		Margin:        margin,
		MarginFree:    e.balance + floating - margin,
		OpenPositions: len(e.positions),
	}
	if margin > 0 {
		snap.MarginLevel = snap.Equity / margin * 100
	}
	return snap, nil
}

func (e *Engine) GetMarketSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok := e.prices[symbol]
	if !ok {
		return market.Snapshot{}, fmt.Errorf("%w: %s", ErrNoPrice, symbol)
	}
	return snap, nil
}

func (e *Engine) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return broker.OrderResult{}, errors.New("market closed")
	}
	snap, ok := e.prices[req.Symbol]
	if !ok {
		return broker.OrderResult{}, fmt.Errorf("%w: %s", ErrNoPrice, req.Symbol)
	}
	if req.Volume <= 0 {
		return broker.OrderResult{}, errors.New("volume must be positive")
	}

	fill := snap.Ask
	if req.Side == broker.Sell {
		fill = snap.Bid
	}

	ticket := id.New()
	e.positions[ticket] = &broker.Position{
		ID:           ticket,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Volume:       req.Volume,
		OpenPrice:    fill,
		CurrentPrice: fill,
		OpenTime:     e.now(),
	}

	return broker.OrderResult{
		OrderID:   ticket,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Volume:    req.Volume,
		FillPrice: fill,
		Time:      e.now(),
	}, nil
}

func (e *Engine) ListOpenPositions(ctx context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (e *Engine) ClosePosition(ctx context.Context, ticket string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.positions[ticket]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPositionNotFound, ticket)
	}

	closeAt := e.closePriceLocked(p)
	e.balance += positionProfit(p, closeAt)
	delete(e.positions, ticket)
	return nil
}

func (e *Engine) CloseAllPositions(ctx context.Context) (broker.CloseAllSummary, error) {
	e.mu.Lock()
	tickets := make([]string, 0, len(e.positions))
	for t := range e.positions {
		tickets = append(tickets, t)
	}
	e.mu.Unlock()

	summary := broker.CloseAllSummary{Attempted: len(tickets)}
	for _, t := range tickets {
		if err := e.ClosePosition(ctx, t); err != nil {
			summary.FailedIDs = append(summary.FailedIDs, t)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

func (e *Engine) Close() error {
	return nil
}

// closePriceLocked returns the side a position would close on: longs close on
// bid, shorts on ask. Falls back to the open price with no posted quote.
func (e *Engine) closePriceLocked(p *broker.Position) float64 {
	snap, ok := e.prices[p.Symbol]
	if !ok {
		return p.OpenPrice
	}
	if p.Side == broker.Buy {
		return snap.Bid
	}
	return snap.Ask
}

func positionProfit(p *broker.Position, price float64) float64 {
	move := price - p.OpenPrice
	if p.Side == broker.Sell {
		move = -move
	}
	return move * p.Volume * market.LotUnits
}
