package risk

// Config holds the account-level risk limits and the trailing-stop tuning.
// Fractions are of balance unless noted.
type Config struct {
	MaxRiskPerTrade     float64 `json:"max_risk_per_trade" yaml:"max_risk_per_trade"`
	MaxDailyLoss        float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxPositions        int     `json:"max_positions" yaml:"max_positions"`
	MaxLeverage         float64 `json:"max_leverage" yaml:"max_leverage"` // lots per 100k balance
	MarginLevelFloor    float64 `json:"margin_level_floor" yaml:"margin_level_floor"`
	EquityFloorFraction float64 `json:"equity_floor_fraction" yaml:"equity_floor_fraction"`

	// Trailing stop: tracking arms once unrealized PnL exceeds
	// ProfitThreshold; the stop fires when PnL retraces to
	// peak * TrailingRetracement.
	ProfitThreshold     float64 `json:"profit_threshold" yaml:"profit_threshold"`
	TrailingRetracement float64 `json:"trailing_retracement" yaml:"trailing_retracement"`
}

// DefaultConfig returns the limits the bot ships with: 2% risk per trade,
// 5% daily loss cap, 3 concurrent positions, 200% margin floor.
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade:     0.02,
		MaxDailyLoss:        0.05,
		MaxPositions:        3,
		MaxLeverage:         10,
		MarginLevelFloor:    200,
		EquityFloorFraction: 0.8,
		ProfitThreshold:     0.02,
		TrailingRetracement: 0.5,
	}
}
