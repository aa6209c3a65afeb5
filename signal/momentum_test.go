package signal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/journal"
	"github.com/ahlbert/mt5-tradingbot/market"
)

// candleRamp builds n candles whose closes follow f(i).
func candleRamp(n int, f func(i int) float64) []market.Candle {
	out := make([]market.Candle, n)
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := f(i)
		out[i] = market.Candle{
			Time:  base.Add(time.Duration(i) * 5 * time.Minute),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return out
}

func snapshotWith(candles []market.Candle) market.Snapshot {
	last := candles[len(candles)-1].Close
	return market.Snapshot{
		Symbol:  "EURUSD",
		Bid:     last - 0.0001,
		Ask:     last + 0.0001,
		Candles: candles,
	}
}

func newTestMomentum(t *testing.T) *Momentum {
	t.Helper()

	cfg := DefaultMomentumConfig()
	cfg.FastPeriod = 3
	cfg.SlowPeriod = 6

	m, err := NewMomentum(cfg, nil)
	assert.NoError(t, err)
	return m
}

func TestNewMomentumValidation(t *testing.T) {
	t.Parallel()

	_, err := NewMomentum(MomentumConfig{FastPeriod: 0, SlowPeriod: 30}, nil)
	assert.Error(t, err)

	_, err = NewMomentum(MomentumConfig{FastPeriod: 30, SlowPeriod: 10}, nil)
	assert.Error(t, err)
}

func TestGetSignalHoldsOnShortHistory(t *testing.T) {
	t.Parallel()

	m := newTestMomentum(t)
	sig, err := m.GetSignal(snapshotWith(candleRamp(3, func(int) float64 { return 1.1 })), broker.AccountSnapshot{})
	assert.NoError(t, err)
	assert.Equal(t, Hold, sig.Action)
}

func TestGetSignalBuyOnUpCross(t *testing.T) {
	t.Parallel()

	m := newTestMomentum(t)

	// Falling series: fast below slow.
	down := candleRamp(20, func(i int) float64 { return 1.1200 - float64(i)*0.0010 })
	sig, err := m.GetSignal(snapshotWith(down), broker.AccountSnapshot{})
	assert.NoError(t, err)
	assert.Equal(t, Hold, sig.Action, "first call only primes the diff")

	// Sharp reversal pulls the fast EMA above the slow one.
	up := append(down, candleRamp(10, func(i int) float64 { return 1.1010 + float64(i)*0.0040 })...)
	sig, err = m.GetSignal(snapshotWith(up), broker.AccountSnapshot{})
	assert.NoError(t, err)
	assert.Equal(t, Buy, sig.Action)
	assert.Equal(t, "EURUSD", sig.Symbol)
	assert.Equal(t, 20, sig.StopLossPips)
	assert.Equal(t, 40, sig.TakeProfitPips)
	assert.Greater(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
}

func TestGetSignalCloseWhenHoldingOnCross(t *testing.T) {
	t.Parallel()

	m := newTestMomentum(t)

	down := candleRamp(20, func(i int) float64 { return 1.1200 - float64(i)*0.0010 })
	_, err := m.GetSignal(snapshotWith(down), broker.AccountSnapshot{})
	assert.NoError(t, err)

	up := append(down, candleRamp(10, func(i int) float64 { return 1.1010 + float64(i)*0.0040 })...)
	sig, err := m.GetSignal(snapshotWith(up), broker.AccountSnapshot{OpenPositions: 1})
	assert.NoError(t, err)
	assert.Equal(t, CloseAll, sig.Action)
}

func TestLossStreakDampensConfidence(t *testing.T) {
	t.Parallel()

	m := newTestMomentum(t)
	base := m.confidence(0.0010, 1.1)

	m.RecordOutcome(journal.TradeRecord{Status: journal.StatusClosed, Profit: -50})
	m.RecordOutcome(journal.TradeRecord{Status: journal.StatusClosed, Profit: -30})
	damped := m.confidence(0.0010, 1.1)

	assert.Less(t, damped, base)

	// A win resets the streak.
	m.RecordOutcome(journal.TradeRecord{Status: journal.StatusClosed, Profit: 100})
	assert.InDelta(t, base, m.confidence(0.0010, 1.1), 1e-12)
}

func TestRecordOutcomeIgnoresOpenTrades(t *testing.T) {
	t.Parallel()

	m := newTestMomentum(t)
	m.RecordOutcome(journal.TradeRecord{Status: journal.StatusOpen, Profit: -10})
	assert.Zero(t, m.state.Losses)
}

func TestSaveAndReloadState(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "signal", "state.json")

	cfg := DefaultMomentumConfig()
	cfg.FastPeriod = 3
	cfg.SlowPeriod = 6
	cfg.StatePath = path

	m, err := NewMomentum(cfg, nil)
	assert.NoError(t, err)

	m.RecordOutcome(journal.TradeRecord{Status: journal.StatusClosed, Profit: -25})
	assert.NoError(t, m.SaveState())

	reloaded, err := NewMomentum(cfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1, reloaded.state.Losses)
	assert.Equal(t, 1, reloaded.state.LossStreak)
	assert.InDelta(t, -25, reloaded.state.NetProfit, 1e-9)
}
