package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahlbert/mt5-tradingbot/journal"
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Show recent trades and performance stats",
	Long: `Query the trade journal for the most recent trades and aggregate
statistics over a trailing window.

Examples:
  mt5bot trades --db ./mt5bot.db
  mt5bot trades --db ./mt5bot.db --limit 50 --days 7`,
	Args: cobra.NoArgs,
	RunE: runTrades,
}

var (
	tradesDBPath string
	tradesLimit  int
	tradesDays   int
)

func init() {
	rootCmd.AddCommand(tradesCmd)

	tradesCmd.Flags().StringVarP(&tradesDBPath, "db", "d", "./mt5bot.db", "path to SQLite journal DB")
	tradesCmd.Flags().IntVarP(&tradesLimit, "limit", "n", 20, "number of trades to show")
	tradesCmd.Flags().IntVar(&tradesDays, "days", 30, "stats window in days")
}

func runTrades(cmd *cobra.Command, args []string) error {
	ledger, err := journal.NewSQLite(tradesDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer ledger.Close()

	trades, err := ledger.RecentTrades(tradesLimit)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Println("No trades recorded.")
		return nil
	}

	fmt.Printf("%-28s %-8s %-5s %8s %10s %10s %10s %s\n",
		"ORDER", "SYMBOL", "SIDE", "VOLUME", "OPEN", "CLOSE", "PROFIT", "STATUS")
	for _, tr := range trades {
		closePrice := "-"
		profit := "-"
		if tr.Status == journal.StatusClosed {
			closePrice = fmt.Sprintf("%.5f", tr.ClosePrice)
			profit = fmt.Sprintf("%.2f", tr.Profit)
		}
		fmt.Printf("%-28s %-8s %-5s %8.2f %10.5f %10s %10s %s\n",
			tr.OrderID, tr.Symbol, tr.Side, tr.Volume, tr.OpenPrice, closePrice, profit, tr.Status)
	}

	stats, err := ledger.Stats(tradesDays)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	fmt.Printf("\nLast %d days: %d closed trades, %d winners, %d losers\n",
		tradesDays, stats.TotalTrades, stats.WinningTrades, stats.LosingTrades)
	if stats.TotalTrades > 0 {
		fmt.Printf("Total P/L: %.2f  Avg: %.2f  Best: %.2f  Worst: %.2f\n",
			stats.TotalProfit, stats.AvgProfit, stats.MaxProfit, stats.MinProfit)
	}
	return nil
}
