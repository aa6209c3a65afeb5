package risk

import (
	"go.uber.org/zap"

	"github.com/ahlbert/mt5-tradingbot/broker"
)

// TrailingStop tracks per-position profit peaks and decides when an open
// position must be closed. A position is untracked until its unrealized PnL
// first exceeds the profit threshold; from then on the recorded peak only
// ever rises, and the stop fires when PnL retraces to half (configurable) of
// that peak. A hard stop at -MaxRiskPerTrade applies regardless of tracking.
//
// The peak map is owned by the single orchestrator goroutine; positions
// closed outside this tracker must be reported via ClearPeak or their stale
// peaks would survive the close.
type TrailingStop struct {
	cfg   Config
	log   *zap.Logger
	peaks map[string]float64 // position ID -> peak PnL fraction
}

func NewTrailingStop(cfg Config, log *zap.Logger) *TrailingStop {
	if log == nil {
		log = zap.NewNop()
	}
	return &TrailingStop{
		cfg:   cfg,
		log:   log,
		peaks: make(map[string]float64),
	}
}

// Evaluate reports whether the position must be closed now. Hard-stop
// closes add the realized dollar loss to daily.AccumulatedLoss. A trailing
// trigger deletes the position's peak so a later evaluation of the same ID
// starts fresh instead of re-firing.
func (t *TrailingStop) Evaluate(pos broker.Position, currentPrice float64, daily *DailyState) bool {
	if pos.OpenPrice == 0 {
		return false
	}

	pnl := (currentPrice - pos.OpenPrice) / pos.OpenPrice
	if pos.Side == broker.Sell {
		pnl = (pos.OpenPrice - currentPrice) / pos.OpenPrice
	}

	if pnl <= -t.cfg.MaxRiskPerTrade {
		if daily != nil {
			daily.AccumulatedLoss += max(0, pos.Volume*(pos.OpenPrice-currentPrice))
		}
		delete(t.peaks, pos.ID)
		t.log.Info("hard stop triggered",
			zap.String("position", pos.ID),
			zap.Float64("pnl_pct", pnl))
		return true
	}

	if pnl > t.cfg.ProfitThreshold {
		if prev := t.peaks[pos.ID]; pnl > prev {
			t.peaks[pos.ID] = pnl
		}
	}

	if peak, ok := t.peaks[pos.ID]; ok && peak > 0 && pnl <= peak*t.cfg.TrailingRetracement {
		delete(t.peaks, pos.ID)
		t.log.Info("trailing stop triggered",
			zap.String("position", pos.ID),
			zap.Float64("pnl_pct", pnl),
			zap.Float64("peak_pct", peak))
		return true
	}

	return false
}

// ClearPeak drops tracking state for a position closed by other means. This
// is the mandatory callback for external closes.
func (t *TrailingStop) ClearPeak(id string) {
	delete(t.peaks, id)
}

// Tracking reports whether a position currently has a recorded peak, and the
// peak itself.
func (t *TrailingStop) Tracking(id string) (float64, bool) {
	peak, ok := t.peaks[id]
	return peak, ok
}

// TrackedIDs returns the IDs of all positions with a recorded peak, in no
// particular order. Callers use it to reconcile against the broker's open
// position list.
func (t *TrailingStop) TrackedIDs() []string {
	ids := make([]string, 0, len(t.peaks))
	for id := range t.peaks {
		ids = append(ids, id)
	}
	return ids
}

// Reset drops all tracking state.
func (t *TrailingStop) Reset() {
	clear(t.peaks)
}
