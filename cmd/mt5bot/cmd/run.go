package cmd

import (
	"context"
	"fmt"
	"math"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahlbert/mt5-tradingbot/alert"
	"github.com/ahlbert/mt5-tradingbot/bot"
	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/broker/mt5"
	"github.com/ahlbert/mt5-tradingbot/broker/sim"
	"github.com/ahlbert/mt5-tradingbot/config"
	"github.com/ahlbert/mt5-tradingbot/journal"
	"github.com/ahlbert/mt5-tradingbot/market"
	"github.com/ahlbert/mt5-tradingbot/metrics"
	"github.com/ahlbert/mt5-tradingbot/risk"
	"github.com/ahlbert/mt5-tradingbot/signal"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading bot",
	Long: `Start the trading loop against the configured MT5 bridge.

The bot trades one symbol, gated by market hours, a daily trade cap and the
account risk limits. It stops cleanly on SIGINT/SIGTERM: open positions are
closed and state is flushed before exit.

Example:
  mt5bot run -f configs/live.yaml
  mt5bot run -f configs/live.yaml --sim`,
	RunE: runRun,
}

var (
	runConfigPath string
	runSim        bool
	runSimBalance float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	runCmd.Flags().BoolVar(&runSim, "sim", false, "trade against an in-process simulated venue")
	runCmd.Flags().Float64Var(&runSimBalance, "sim-balance", 10000, "starting balance for --sim")
}

func runRun(cmd *cobra.Command, args []string) error {
	// A .env next to the binary may carry the bridge token.
	_ = godotenv.Load()

	cfg := config.Default()
	if runConfigPath != "" {
		loaded, err := config.LoadFromFile(runConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	log := newLogger(cfg.App)
	defer log.Sync() //nolint:errcheck

	// Sinks exist before any collaborator so a dead bridge or journal at
	// startup still reaches the operator.
	sinks := alert.Multi{alert.NewLogSink(log)}
	if cfg.Alert.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alert.WebhookURL, log))
	}

	b, err := buildBot(cfg, log, sinks)
	if err != nil {
		return err
	}

	ctx, stop := osignal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return b.Run(ctx)
}

// buildBot wires the collaborators in dependency order. Any failure is
// fatal: it tears down whatever was already connected and notifies the
// sinks before returning.
func buildBot(cfg *config.Config, log *zap.Logger, sinks alert.Sink) (*bot.Bot, error) {
	fatal := func(err error) error {
		sinks.Notify("bot startup failed", err.Error())
		return err
	}

	venue, err := buildVenue(cfg, log)
	if err != nil {
		return nil, fatal(err)
	}

	ledger, err := journal.NewSQLite(cfg.Journal.DBPath)
	if err != nil {
		venue.Close() //nolint:errcheck
		return nil, fatal(fmt.Errorf("open journal: %w", err))
	}

	source, err := signal.NewMomentum(cfg.Signal, log)
	if err != nil {
		venue.Close()  //nolint:errcheck
		ledger.Close() //nolint:errcheck
		return nil, fatal(fmt.Errorf("build signal source: %w", err))
	}

	var metricSink metrics.Sink = metrics.Noop{}
	if cfg.Metrics.Addr != "" {
		prom := metrics.NewPrometheus(log)
		prom.Serve(cfg.Metrics.Addr)
		metricSink = prom
	}

	b, err := bot.New(bot.Config{
		Symbol:          cfg.Bot.Symbol,
		MaxTradesPerDay: cfg.Bot.MaxTradesPerDay,
		Waits:           bot.DefaultWaits(),
	}, bot.Deps{
		Venue:    venue,
		Source:   source,
		Ledger:   ledger,
		Alerts:   sinks,
		Metrics:  metricSink,
		Limiter:  risk.NewLimiter(cfg.Risk, log),
		Sizer:    risk.NewSizer(cfg.Risk),
		Trailing: risk.NewTrailingStop(cfg.Risk, log),
		Log:      log,
	})
	if err != nil {
		venue.Close()  //nolint:errcheck
		ledger.Close() //nolint:errcheck
		return nil, fatal(err)
	}
	return b, nil
}

// buildVenue connects the configured venue and verifies it is reachable.
// An unreachable venue at startup is fatal, not retried.
func buildVenue(cfg *config.Config, log *zap.Logger) (broker.Gateway, error) {
	if runSim {
		log.Info("using simulated venue", zap.Float64("balance", runSimBalance))
		return newSimVenue(cfg.Bot.Symbol, runSimBalance), nil
	}

	client := mt5.NewClient(cfg.Bridge.URL, cfg.Bridge.Token())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("mt5 bridge %s unreachable: %w", cfg.Bridge.URL, err)
	}
	log.Info("connected to mt5 bridge", zap.String("url", cfg.Bridge.URL))
	return client, nil
}

// newSimVenue seeds an in-process venue with a slow price drift so the
// signal source has history to chew on.
func newSimVenue(symbol string, balance float64) *sim.Engine {
	engine := sim.NewEngine(balance)
	engine.SetMarketOpen(true)

	base := 1.1000
	engine.SetPrice(symbol, base-0.0001, base+0.0001)

	candles := make([]market.Candle, 100)
	start := time.Now().Add(-100 * 5 * time.Minute)
	for i := range candles {
		drift := 0.002 * math.Sin(float64(i)/15)
		px := base + drift
		candles[i] = market.Candle{
			Time:   start.Add(time.Duration(i) * 5 * time.Minute),
			Open:   px,
			High:   px + 0.0003,
			Low:    px - 0.0003,
			Close:  px + 0.0001,
			Volume: 1000,
		}
	}
	engine.SetCandles(symbol, candles)
	return engine
}
