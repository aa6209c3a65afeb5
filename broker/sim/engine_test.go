package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/market"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(10000)
	e.SetPrice("EURUSD", 1.0998, 1.1000)
	return e
}

func TestPlaceOrderFillsAtQuote(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()

	long, err := e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.1000, long.FillPrice, "longs fill at ask")
	assert.NotEmpty(t, long.OrderID)

	short, err := e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Sell, Volume: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1.0998, short.FillPrice, "shorts fill at bid")
	assert.NotEqual(t, long.OrderID, short.OrderID)

	positions, err := e.ListOpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestPlaceOrderRejections(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "GBPUSD", Side: broker.Buy, Volume: 1})
	assert.ErrorIs(t, err, ErrNoPrice)

	_, err = e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0})
	assert.Error(t, err)

	e.SetMarketOpen(false)
	_, err = e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 1})
	assert.Error(t, err)
}

func TestCloseRealizesProfit(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()

	res, err := e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 1})
	require.NoError(t, err)

	// 50 pips in favor; one lot makes that 500 on the bid close.
	e.SetPrice("EURUSD", 1.1050, 1.1052)
	require.NoError(t, e.ClosePosition(ctx, res.OrderID))

	acct, err := e.GetAccountSnapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10500.0, acct.Balance, 1e-6)
	assert.Equal(t, 0, acct.OpenPositions)

	assert.ErrorIs(t, e.ClosePosition(ctx, res.OrderID), ErrPositionNotFound)
}

func TestEquityTracksFloatingProfit(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Sell, Volume: 1})
	require.NoError(t, err)

	// 20 pips against the short.
	e.SetPrice("EURUSD", 1.1018, 1.1020)

	acct, err := e.GetAccountSnapshot(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000.0, acct.Balance, 1e-6, "unrealized losses do not touch balance")
	assert.InDelta(t, 9780.0, acct.Equity, 1e-6)
	assert.Greater(t, acct.Margin, 0.0)
	assert.Greater(t, acct.MarginLevel, 0.0)
}

func TestCloseAllPositions(t *testing.T) {
	t.Parallel()
	e := newEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.PlaceOrder(ctx, broker.OrderRequest{Symbol: "EURUSD", Side: broker.Buy, Volume: 0.1})
		require.NoError(t, err)
	}

	summary, err := e.CloseAllPositions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Attempted)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Empty(t, summary.FailedIDs)

	acct, err := e.GetAccountSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.OpenPositions)
}

func TestMarketSnapshotCarriesCandles(t *testing.T) {
	t.Parallel()
	e := newEngine(t)

	candles := []market.Candle{{Close: 1.0990}, {Close: 1.1000}}
	e.SetCandles("EURUSD", candles)

	snap, err := e.GetMarketSnapshot(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", snap.Symbol)
	assert.Len(t, snap.Candles, 2)
	assert.Equal(t, 1.1000, snap.Last())

	_, err = e.GetMarketSnapshot(context.Background(), "USDJPY")
	assert.ErrorIs(t, err, ErrNoPrice)
}
