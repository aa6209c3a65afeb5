package bot

import "time"

// outcome classifies one loop iteration. The backoff policy maps each kind
// to a wait, which keeps the timing rules in one testable table instead of
// sleeps scattered through the loop.
type outcome int

const (
	outcomeOK outcome = iota
	outcomeMarketClosed
	outcomeThrottled
	outcomeTransientData
	outcomeRiskPaused
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeMarketClosed:
		return "market-closed"
	case outcomeThrottled:
		return "throttled"
	case outcomeTransientData:
		return "transient-data"
	case outcomeRiskPaused:
		return "risk-paused"
	case outcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Waits is the loop's backoff policy table.
type Waits struct {
	Poll          time.Duration `yaml:"poll"`
	MarketClosed  time.Duration `yaml:"market_closed"`
	Throttled     time.Duration `yaml:"throttled"`
	TransientData time.Duration `yaml:"transient_data"`
	RiskPaused    time.Duration `yaml:"risk_paused"`
	Failure       time.Duration `yaml:"failure"`
}

// DefaultWaits matches the operational policy: poll every minute, check a
// closed market every five, back off an hour when the daily trade cap is
// hit.
func DefaultWaits() Waits {
	return Waits{
		Poll:          time.Minute,
		MarketClosed:  5 * time.Minute,
		Throttled:     time.Hour,
		TransientData: time.Minute,
		RiskPaused:    5 * time.Minute,
		Failure:       time.Minute,
	}
}

func (w Waits) waitFor(o outcome) time.Duration {
	switch o {
	case outcomeMarketClosed:
		return w.MarketClosed
	case outcomeThrottled:
		return w.Throttled
	case outcomeTransientData:
		return w.TransientData
	case outcomeRiskPaused:
		return w.RiskPaused
	case outcomeFailed:
		return w.Failure
	default:
		return w.Poll
	}
}
