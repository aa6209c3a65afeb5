package signal

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/indicators"
	"github.com/ahlbert/mt5-tradingbot/journal"
	"github.com/ahlbert/mt5-tradingbot/market"
)

// MomentumConfig tunes the EMA-cross source.
type MomentumConfig struct {
	FastPeriod     int    `yaml:"fast_period"`
	SlowPeriod     int    `yaml:"slow_period"`
	StopLossPips   int    `yaml:"stop_loss_pips"`
	TakeProfitPips int    `yaml:"take_profit_pips"`
	StatePath      string `yaml:"state_path"`
}

func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		FastPeriod:     10,
		SlowPeriod:     30,
		StopLossPips:   20,
		TakeProfitPips: 40,
	}
}

// Momentum is a fast/slow EMA crossover source. It enters on a cross, asks
// for a close of open positions on the opposite cross, and scales confidence
// by EMA separation, dampened while on a losing streak.
type Momentum struct {
	cfg MomentumConfig
	log *zap.Logger

	lastDiff     float64
	haveLastDiff bool

	state *tradeStats
}

func NewMomentum(cfg MomentumConfig, log *zap.Logger) (*Momentum, error) {
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 {
		return nil, fmt.Errorf("ema periods must be positive (fast=%d slow=%d)", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("fast period %d must be shorter than slow period %d", cfg.FastPeriod, cfg.SlowPeriod)
	}
	if log == nil {
		log = zap.NewNop()
	}

	state, err := loadTradeStats(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load signal state: %w", err)
	}

	return &Momentum{cfg: cfg, log: log, state: state}, nil
}

// GetSignal recomputes both EMAs over the snapshot's candle history and
// compares the fast/slow difference against the previous call's.
func (m *Momentum) GetSignal(snap market.Snapshot, acct broker.AccountSnapshot) (Signal, error) {
	hold := Signal{Action: Hold, Symbol: snap.Symbol}

	if len(snap.Candles) < m.cfg.SlowPeriod {
		return hold, nil
	}

	fast := indicators.NewEMA(m.cfg.FastPeriod)
	slow := indicators.NewEMA(m.cfg.SlowPeriod)
	for _, c := range snap.Candles {
		fast.Update(c.Close)
		slow.Update(c.Close)
	}
	if !fast.Ready() || !slow.Ready() {
		return hold, nil
	}

	diff := fast.Value() - slow.Value()
	prevDiff, havePrev := m.lastDiff, m.haveLastDiff
	m.lastDiff = diff
	m.haveLastDiff = true

	if !havePrev {
		return hold, nil
	}

	crossedUp := prevDiff <= 0 && diff > 0
	crossedDown := prevDiff >= 0 && diff < 0
	if !crossedUp && !crossedDown {
		return hold, nil
	}

	// Opposite cross while holding positions: get flat first, enter on the
	// next cross.
	if acct.OpenPositions > 0 {
		return Signal{Action: CloseAll, Symbol: snap.Symbol, Confidence: 1}, nil
	}

	sig := Signal{
		Action:         Buy,
		Symbol:         snap.Symbol,
		StopLossPips:   m.cfg.StopLossPips,
		TakeProfitPips: m.cfg.TakeProfitPips,
		Confidence:     m.confidence(diff, slow.Value()),
	}
	if crossedDown {
		sig.Action = Sell
	}

	m.log.Info("crossover signal",
		zap.String("symbol", snap.Symbol),
		zap.String("action", string(sig.Action)),
		zap.Float64("confidence", sig.Confidence))
	return sig, nil
}

// confidence maps EMA separation to [0,1], with a dampener while the source
// is on a losing streak.
func (m *Momentum) confidence(diff, slowVal float64) float64 {
	if slowVal == 0 {
		return 0
	}
	// A separation of 10 pips on a four-decimal pair saturates to 1.0.
	c := math.Abs(diff) / slowVal / 0.001
	c = math.Min(c, 1)

	if streak := m.state.LossStreak; streak > 0 {
		c *= math.Pow(0.8, float64(streak))
	}
	return c
}

// RecordOutcome feeds a closed trade's result back into the win/loss state.
// Open records are feedback about order placement and carry no result yet.
func (m *Momentum) RecordOutcome(rec journal.TradeRecord) {
	if rec.Status != journal.StatusClosed {
		return
	}
	m.state.record(rec.Profit)
}

// SaveState persists the learned win/loss state. Without a configured state
// path this is a no-op.
func (m *Momentum) SaveState() error {
	if m.cfg.StatePath == "" {
		return nil
	}
	return m.state.save(m.cfg.StatePath)
}
