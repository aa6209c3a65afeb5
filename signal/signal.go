// Package signal defines the decision boundary between the orchestrator and
// whatever produces trade ideas, plus a baseline momentum source.
package signal

import (
	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/journal"
	"github.com/ahlbert/mt5-tradingbot/market"
)

// Action is what the source wants the orchestrator to do this iteration.
type Action string

const (
	Hold     Action = "HOLD"
	Buy      Action = "BUY"
	Sell     Action = "SELL"
	CloseAll Action = "CLOSE"
)

// Signal is one trade decision, consumed once per loop iteration.
type Signal struct {
	Action         Action
	Symbol         string
	StopLossPips   int
	TakeProfitPips int
	Confidence     float64 // [0,1]
}

// Source produces signals and learns from trade outcomes.
//
// RecordOutcome is fire-and-forget feedback; implementations must not block
// the loop on it. SaveState flushes any learned state at shutdown.
type Source interface {
	GetSignal(m market.Snapshot, acct broker.AccountSnapshot) (Signal, error)
	RecordOutcome(rec journal.TradeRecord)
	SaveState() error
}
