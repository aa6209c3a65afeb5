package risk

import (
	"math"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/market"
)

// MinLot is the smallest volume the sizer will ever return.
const MinLot = 0.01

// Sizer converts a risk budget and a stop distance into a trade volume.
type Sizer struct {
	cfg Config
}

func NewSizer(cfg Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size returns the volume in lots for a trade risking
// balance * MaxRiskPerTrade against a stop stopLossPips away. The result is
// rounded to two decimals, floored at MinLot and capped by the leverage
// ceiling (balance/100k * MaxLeverage). A non-positive stop distance is an
// input-validation case, not an error: sizing must never block the loop, so
// it returns the floor.
func (s *Sizer) Size(balance float64, stopLossPips int, pipValue float64) float64 {
	if pipValue <= 0 {
		pipValue = market.StandardPipValue
	}
	if stopLossPips <= 0 {
		return MinLot
	}

	riskAmount := balance * s.cfg.MaxRiskPerTrade
	pipValuePerLot := pipValue * market.LotUnits

	size := riskAmount / (float64(stopLossPips) * pipValuePerLot)
	size = math.Round(size*100) / 100

	if size < MinLot {
		size = MinLot
	}
	if ceiling := balance / market.LotUnits * s.cfg.MaxLeverage; size > ceiling {
		size = ceiling
	}
	return size
}

// StopLossPrice returns the absolute stop price for an entry a given pip
// distance away.
func StopLossPrice(entry float64, side broker.Side, pips int, pipValue float64) float64 {
	if pipValue <= 0 {
		pipValue = market.StandardPipValue
	}
	if side == broker.Buy {
		return entry - float64(pips)*pipValue
	}
	return entry + float64(pips)*pipValue
}

// TakeProfitPrice returns the absolute take-profit price for an entry a
// given pip distance away.
func TakeProfitPrice(entry float64, side broker.Side, pips int, pipValue float64) float64 {
	if pipValue <= 0 {
		pipValue = market.StandardPipValue
	}
	if side == broker.Buy {
		return entry + float64(pips)*pipValue
	}
	return entry - float64(pips)*pipValue
}
