package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mt5bot",
	Short: "An automated MT5 forex trading bot with account-level risk control",
	Long: `mt5bot trades a single symbol through a MetaTrader 5 REST bridge.

It provides:
  - A supervised trading loop with market, throttle and risk gates
  - Risk-based position sizing and a daily loss limiter
  - Trailing stops with per-position profit peak tracking
  - A SQLite trade journal and equity curve
  - Prometheus metrics and webhook alerts`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}
