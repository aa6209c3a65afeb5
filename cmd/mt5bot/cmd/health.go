package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ahlbert/mt5-tradingbot/broker/mt5"
	"github.com/ahlbert/mt5-tradingbot/config"
	"github.com/ahlbert/mt5-tradingbot/journal"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the bridge connection and journal",
	Long: `Ping the configured MT5 bridge and inspect the trade journal.

Exits non-zero when the bridge is unreachable, making it usable as a
container or systemd health check.

Example:
  mt5bot health -f configs/live.yaml`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

var healthConfigPath string

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().StringVarP(&healthConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
}

func runHealth(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg := config.Default()
	if healthConfigPath != "" {
		loaded, err := config.LoadFromFile(healthConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	client := mt5.NewClient(cfg.Bridge.URL, cfg.Bridge.Token())
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("bridge %s: %w", cfg.Bridge.URL, err)
	}
	fmt.Printf("bridge %s: ok\n", cfg.Bridge.URL)

	ledger, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		return fmt.Errorf("journal %s: %w", cfg.Journal.DBPath, err)
	}
	defer ledger.Close()

	last, found, err := ledger.LastTradeTime()
	switch {
	case err != nil:
		return fmt.Errorf("journal %s: %w", cfg.Journal.DBPath, err)
	case !found:
		fmt.Printf("journal %s: ok, no trades yet\n", cfg.Journal.DBPath)
	default:
		fmt.Printf("journal %s: ok, last trade %s\n", cfg.Journal.DBPath, last.Format(time.RFC3339))
	}
	return nil
}
