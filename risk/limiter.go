package risk

import (
	"go.uber.org/zap"

	"github.com/ahlbert/mt5-tradingbot/broker"
)

// Limiter gates every prospective trade against account-level limits. All
// checks are pure predicates over one immutable snapshot; the only side
// effect is accumulating the realized loss on a daily-loss breach.
type Limiter struct {
	cfg Config
	log *zap.Logger
}

func NewLimiter(cfg Config, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{cfg: cfg, log: log}
}

// CheckLimits reports whether the account may evaluate a new trade right
// now. It seeds daily.StartBalance from the balance when the day has not
// been seeded yet. Any single failing check short-circuits to false; the
// cheap rejects (position count, invalid baseline) run first.
func (l *Limiter) CheckLimits(acct broker.AccountSnapshot, daily *DailyState) bool {
	if acct.OpenPositions >= l.cfg.MaxPositions {
		l.log.Warn("max positions reached",
			zap.Int("open", acct.OpenPositions),
			zap.Int("max", l.cfg.MaxPositions))
		return false
	}

	if !daily.Seeded() {
		daily.StartBalance = acct.Balance
	}
	if daily.StartBalance <= 0 {
		l.log.Warn("invalid daily start balance",
			zap.Float64("start_balance", daily.StartBalance))
		return false
	}

	lossPct := (daily.StartBalance - acct.Balance) / daily.StartBalance
	if lossPct >= l.cfg.MaxDailyLoss {
		daily.AccumulatedLoss += max(0, daily.StartBalance-acct.Balance)
		l.log.Warn("daily loss limit reached",
			zap.Float64("loss_pct", lossPct),
			zap.Float64("max", l.cfg.MaxDailyLoss),
			zap.Float64("accumulated_loss", daily.AccumulatedLoss))
		return false
	}

	// Margin level is undefined with nothing on margin.
	if acct.Margin > 0 && acct.MarginLevel < l.cfg.MarginLevelFloor {
		l.log.Warn("margin level below floor",
			zap.Float64("margin_level", acct.MarginLevel),
			zap.Float64("floor", l.cfg.MarginLevelFloor))
		return false
	}

	if acct.Equity < acct.Balance*l.cfg.EquityFloorFraction {
		l.log.Warn("equity below balance floor",
			zap.Float64("equity", acct.Equity),
			zap.Float64("balance", acct.Balance),
			zap.Float64("floor_fraction", l.cfg.EquityFloorFraction))
		return false
	}

	return true
}
