package market

import "time"

// StandardPipValue is the price move of one pip for four-decimal FX pairs.
const StandardPipValue = 0.0001

// LotUnits is the number of base-currency units in one standard lot.
const LotUnits = 100_000.0

// Candle is a single OHLCV bar.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot is the market state the orchestrator hands to the signal source:
// current top of book plus the recent candle history for one symbol.
type Snapshot struct {
	Symbol  string
	Time    time.Time
	Bid     float64
	Ask     float64
	Candles []Candle
}

// Mid returns the bid/ask midpoint.
func (s Snapshot) Mid() float64 {
	return (s.Bid + s.Ask) / 2
}

// Spread returns the ask minus bid.
func (s Snapshot) Spread() float64 {
	return s.Ask - s.Bid
}

// Last returns the close of the most recent candle, falling back to the mid
// when no history is attached.
func (s Snapshot) Last() float64 {
	if n := len(s.Candles); n > 0 {
		return s.Candles[n-1].Close
	}
	return s.Mid()
}

// InstrumentMeta carries the per-symbol constants sizing needs.
type InstrumentMeta struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipValue      float64
	MinVolume     float64 // lots
	VolumeStep    float64 // lots
}

// Instruments holds metadata for the symbols the bot knows how to trade.
var Instruments = map[string]InstrumentMeta{
	"EURUSD": {
		Name:          "EURUSD",
		BaseCurrency:  "EUR",
		QuoteCurrency: "USD",
		PipValue:      StandardPipValue,
		MinVolume:     0.01,
		VolumeStep:    0.01,
	},
	"GBPUSD": {
		Name:          "GBPUSD",
		BaseCurrency:  "GBP",
		QuoteCurrency: "USD",
		PipValue:      StandardPipValue,
		MinVolume:     0.01,
		VolumeStep:    0.01,
	},
	"USDJPY": {
		Name:          "USDJPY",
		BaseCurrency:  "USD",
		QuoteCurrency: "JPY",
		PipValue:      0.01,
		MinVolume:     0.01,
		VolumeStep:    0.01,
	},
}

// PipValueFor returns the pip value for a symbol, defaulting to the standard
// four-decimal pip for symbols without metadata.
func PipValueFor(symbol string) float64 {
	if meta, ok := Instruments[symbol]; ok {
		return meta.PipValue
	}
	return StandardPipValue
}
