// Package bot runs the trade lifecycle loop: gate the market, fetch account
// state, manage open positions, ask the signal source for a decision, act on
// it, and report. One goroutine owns the whole loop; every risk decision in
// an iteration reads the same account snapshot.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ahlbert/mt5-tradingbot/alert"
	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/journal"
	"github.com/ahlbert/mt5-tradingbot/market"
	"github.com/ahlbert/mt5-tradingbot/metrics"
	"github.com/ahlbert/mt5-tradingbot/pkg/id"
	"github.com/ahlbert/mt5-tradingbot/risk"
	"github.com/ahlbert/mt5-tradingbot/signal"
)

const shutdownTimeout = 30 * time.Second

// Config is the loop's own knobs. Risk parameters live in risk.Config and
// are carried by the collaborators, not here.
type Config struct {
	Symbol          string
	MaxTradesPerDay int
	Waits           Waits
}

// Deps are the bot's collaborators. Venue, Source and Ledger are required;
// everything else defaults to a working no-op or a fresh instance built from
// risk.DefaultConfig.
type Deps struct {
	Venue    broker.Gateway
	Source   signal.Source
	Ledger   journal.Ledger
	Alerts   alert.Sink
	Metrics  metrics.Sink
	Limiter  *risk.Limiter
	Sizer    *risk.Sizer
	Trailing *risk.TrailingStop
	Clock    Clock
	Log      *zap.Logger
}

// Bot is the orchestrator. Construct with New, drive with Run.
type Bot struct {
	cfg      Config
	venue    broker.Gateway
	source   signal.Source
	ledger   journal.Ledger
	alerts   alert.Sink
	metrics  metrics.Sink
	limiter  *risk.Limiter
	sizer    *risk.Sizer
	trailing *risk.TrailingStop
	clock    Clock
	log      *zap.Logger

	daily       *risk.DailyState
	tradesToday int
	runID       string
}

func New(cfg Config, deps Deps) (*Bot, error) {
	if deps.Venue == nil {
		return nil, errors.New("bot: venue gateway is required")
	}
	if deps.Source == nil {
		return nil, errors.New("bot: signal source is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("bot: trade ledger is required")
	}
	if cfg.Symbol == "" {
		return nil, errors.New("bot: symbol is required")
	}
	if cfg.MaxTradesPerDay <= 0 {
		cfg.MaxTradesPerDay = 50
	}
	if cfg.Waits == (Waits{}) {
		cfg.Waits = DefaultWaits()
	}
	if deps.Alerts == nil {
		deps.Alerts = alert.NewLogSink(deps.Log)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Clock == nil {
		deps.Clock = NewClock()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Limiter == nil {
		deps.Limiter = risk.NewLimiter(risk.DefaultConfig(), deps.Log)
	}
	if deps.Sizer == nil {
		deps.Sizer = risk.NewSizer(risk.DefaultConfig())
	}
	if deps.Trailing == nil {
		deps.Trailing = risk.NewTrailingStop(risk.DefaultConfig(), deps.Log)
	}

	return &Bot{
		cfg:      cfg,
		venue:    deps.Venue,
		source:   deps.Source,
		ledger:   deps.Ledger,
		alerts:   deps.Alerts,
		metrics:  deps.Metrics,
		limiter:  deps.Limiter,
		sizer:    deps.Sizer,
		trailing: deps.Trailing,
		clock:    deps.Clock,
		log:      deps.Log,
		daily:    risk.NewDailyState(deps.Clock.Now()),
		runID:    id.New(),
	}, nil
}

// Run drives the loop until ctx is canceled. Cancelation is honored only at
// iteration boundaries; an in-flight iteration finishes first, then the bot
// shuts down in order: flatten positions, flush signal state, close the
// venue and the ledger.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot starting",
		zap.String("run_id", b.runID),
		zap.String("symbol", b.cfg.Symbol))
	b.alerts.Notify("bot started",
		fmt.Sprintf("run %s trading %s", b.runID, b.cfg.Symbol))

	for {
		if ctx.Err() != nil {
			return b.shutdown()
		}
		out := b.iterate(ctx)
		b.clock.Sleep(ctx, b.cfg.Waits.waitFor(out))
	}
}

// iterate runs one pass of the state machine and converts its result into a
// backoff outcome. Errors escaping step are the unhandled kind: they get an
// alert and the failure wait. Cancelation is not a fault and is not alerted.
func (b *Bot) iterate(ctx context.Context) outcome {
	out, err := b.step(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return outcomeFailed
		}
		b.log.Error("iteration failed", zap.Error(err))
		b.alerts.Notify("iteration failure", err.Error())
		return outcomeFailed
	}
	return out
}

func (b *Bot) step(ctx context.Context) (outcome, error) {
	// Market check.
	open, err := b.venue.IsMarketOpen(ctx, b.cfg.Symbol)
	if err != nil {
		return outcomeFailed, fmt.Errorf("market status: %w", err)
	}
	if !open {
		b.log.Debug("market closed", zap.String("symbol", b.cfg.Symbol))
		return outcomeMarketClosed, nil
	}

	// Throttle. The cap only binds within the trading day it was earned in;
	// after midnight the rollover below resets the counter, so a stale count
	// must not keep the loop parked.
	now := b.clock.Now()
	if b.daily.SameDay(now) && b.tradesToday >= b.cfg.MaxTradesPerDay {
		b.log.Info("daily trade cap reached",
			zap.Int("trades_today", b.tradesToday),
			zap.Int("max", b.cfg.MaxTradesPerDay))
		return outcomeThrottled, nil
	}

	// Fetch. Failed snapshots are transient: wait and retry, no alert.
	acct, err := b.venue.GetAccountSnapshot(ctx)
	if err != nil {
		b.log.Warn("account snapshot failed", zap.Error(err))
		return outcomeTransientData, nil
	}
	snap, err := b.venue.GetMarketSnapshot(ctx, b.cfg.Symbol)
	if err != nil {
		b.log.Warn("market snapshot failed", zap.Error(err))
		return outcomeTransientData, nil
	}

	// Day rollover.
	if !b.daily.SameDay(now) {
		b.daily.Rollover(now, acct.Equity)
		b.tradesToday = 0
		b.log.Info("trading day rolled over",
			zap.Time("day", b.daily.TradingDay),
			zap.Float64("start_balance", b.daily.StartBalance))
	}

	// Manage open positions before admitting new risk.
	if out, err := b.manage(ctx); err != nil || out != outcomeOK {
		return out, err
	}

	// Risk gate.
	if !b.limiter.CheckLimits(acct, b.daily) {
		b.log.Info("risk limits active, trading paused")
		return outcomeRiskPaused, nil
	}

	// Decide, against the same account snapshot the gate saw.
	sig, err := b.source.GetSignal(snap, acct)
	if err != nil {
		return outcomeFailed, fmt.Errorf("signal: %w", err)
	}

	// Act. Execution failures are logged and the iteration still reports;
	// a rejected order is not retried within the iteration.
	b.act(ctx, sig, snap, acct)

	// Report.
	b.report(now, acct)
	return outcomeOK, nil
}

// manage evaluates every open position against the trailing stop and the
// hard stop, closing the ones that trip. It also drops peaks for positions
// that disappeared at the venue since the last pass.
func (b *Bot) manage(ctx context.Context) (outcome, error) {
	positions, err := b.venue.ListOpenPositions(ctx)
	if err != nil {
		b.log.Warn("position listing failed", zap.Error(err))
		return outcomeTransientData, nil
	}

	open := make(map[string]bool, len(positions))
	for _, pos := range positions {
		open[pos.ID] = true
		if !b.trailing.Evaluate(pos, pos.CurrentPrice, b.daily) {
			continue
		}
		if err := b.venue.ClosePosition(ctx, pos.ID); err != nil {
			b.log.Error("stop close failed",
				zap.String("position", pos.ID),
				zap.Error(err))
			continue
		}
		closeTime := b.clock.Now()
		if _, err := b.ledger.UpdateOnClose(pos.ID, pos.CurrentPrice, pos.Profit, closeTime); err != nil {
			b.log.Warn("ledger close update failed",
				zap.String("position", pos.ID),
				zap.Error(err))
		}
		b.source.RecordOutcome(journal.TradeRecord{
			OrderID:    pos.ID,
			Symbol:     pos.Symbol,
			Side:       pos.Side,
			Volume:     pos.Volume,
			OpenPrice:  pos.OpenPrice,
			OpenTime:   pos.OpenTime,
			Status:     journal.StatusClosed,
			ClosePrice: pos.CurrentPrice,
			CloseTime:  closeTime,
			Profit:     pos.Profit,
		})
		b.log.Info("position closed by stop",
			zap.String("position", pos.ID),
			zap.Float64("profit", pos.Profit))
	}

	// Positions closed outside the loop leave stale peaks behind.
	for _, trackedID := range b.trailing.TrackedIDs() {
		if !open[trackedID] {
			b.trailing.ClearPeak(trackedID)
		}
	}
	return outcomeOK, nil
}

func (b *Bot) act(ctx context.Context, sig signal.Signal, snap market.Snapshot, acct broker.AccountSnapshot) {
	switch sig.Action {
	case signal.Hold, "":
		return

	case signal.CloseAll:
		positions, err := b.venue.ListOpenPositions(ctx)
		if err != nil {
			b.log.Warn("position listing failed", zap.Error(err))
		}
		summary, err := b.venue.CloseAllPositions(ctx)
		if err != nil {
			b.log.Error("close-all failed", zap.Error(err))
			return
		}
		failed := make(map[string]bool, len(summary.FailedIDs))
		for _, failedID := range summary.FailedIDs {
			failed[failedID] = true
		}
		b.journalClosed(positions, failed)
		for _, trackedID := range b.trailing.TrackedIDs() {
			if !failed[trackedID] {
				b.trailing.ClearPeak(trackedID)
			}
		}
		b.log.Info("closed all positions",
			zap.Int("attempted", summary.Attempted),
			zap.Int("succeeded", summary.Succeeded))

	case signal.Buy, signal.Sell:
		b.place(ctx, sig, snap, acct)

	default:
		b.log.Warn("unknown signal action", zap.String("action", string(sig.Action)))
	}
}

func (b *Bot) place(ctx context.Context, sig signal.Signal, snap market.Snapshot, acct broker.AccountSnapshot) {
	symbol := sig.Symbol
	if symbol == "" {
		symbol = b.cfg.Symbol
	}
	side := broker.Buy
	entry := snap.Ask
	if sig.Action == signal.Sell {
		side = broker.Sell
		entry = snap.Bid
	}

	pipValue := market.PipValueFor(symbol)
	volume := b.sizer.Size(acct.Balance, sig.StopLossPips, pipValue)

	var stopLoss, takeProfit *float64
	if sig.StopLossPips > 0 && entry > 0 {
		price := risk.StopLossPrice(entry, side, sig.StopLossPips, pipValue)
		stopLoss = &price
	}
	if sig.TakeProfitPips > 0 && entry > 0 {
		price := risk.TakeProfitPrice(entry, side, sig.TakeProfitPips, pipValue)
		takeProfit = &price
	}

	res, err := b.venue.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Volume:     volume,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		ClientTag:  b.runID,
	})
	if err != nil {
		// Execution failure: log, no retry, the iteration still reports.
		b.log.Error("order rejected",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Float64("volume", volume),
			zap.Error(err))
		return
	}

	b.tradesToday++
	rec := journal.TradeRecord{
		OrderID:   res.OrderID,
		Symbol:    res.Symbol,
		Side:      res.Side,
		Volume:    res.Volume,
		OpenPrice: res.FillPrice,
		OpenTime:  res.Time,
		Status:    journal.StatusOpen,
	}
	if stopLoss != nil {
		rec.StopLoss = *stopLoss
	}
	if takeProfit != nil {
		rec.TakeProfit = *takeProfit
	}
	inserted, err := b.ledger.LogTrade(rec)
	if err != nil {
		b.log.Warn("trade journal write failed",
			zap.String("order", res.OrderID),
			zap.Error(err))
	} else if !inserted {
		b.log.Debug("trade already journaled", zap.String("order", res.OrderID))
	}
	b.source.RecordOutcome(rec)
	b.log.Info("order filled",
		zap.String("order", res.OrderID),
		zap.String("side", string(side)),
		zap.Float64("volume", res.Volume),
		zap.Float64("price", res.FillPrice),
		zap.Int("trades_today", b.tradesToday))
}

// journalClosed marks venue-closed positions closed in the ledger at their
// last marked price, so close-all sweeps show up in trade stats the same
// way stop closes do. Positions the venue failed to close are skipped.
func (b *Bot) journalClosed(positions []broker.Position, failed map[string]bool) {
	now := b.clock.Now()
	for _, pos := range positions {
		if failed[pos.ID] {
			continue
		}
		if _, err := b.ledger.UpdateOnClose(pos.ID, pos.CurrentPrice, pos.Profit, now); err != nil {
			b.log.Warn("ledger close update failed",
				zap.String("position", pos.ID),
				zap.Error(err))
		}
	}
}

func (b *Bot) report(now time.Time, acct broker.AccountSnapshot) {
	b.metrics.Publish("AccountBalance", acct.Balance, "USD")
	b.metrics.Publish("AccountEquity", acct.Equity, "USD")
	b.metrics.Publish("TradesToday", float64(b.tradesToday), "Count")
	if b.daily.Seeded() {
		b.metrics.Publish("DailyPnL", acct.Equity-b.daily.StartBalance, "USD")
	}
	if err := b.ledger.RecordEquity(journal.EquitySnapshot{
		Time:        now,
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		Profit:      acct.Profit,
		Margin:      acct.Margin,
		MarginFree:  acct.MarginFree,
		MarginLevel: acct.MarginLevel,
	}); err != nil {
		b.log.Warn("equity snapshot write failed", zap.Error(err))
	}
}

// shutdown flattens the account and releases the collaborators in dependency
// order. Every step runs even if an earlier one fails; the errors are joined.
func (b *Bot) shutdown() error {
	b.log.Info("bot stopping", zap.String("run_id", b.runID))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	positions, listErr := b.venue.ListOpenPositions(ctx)
	summary, err := b.venue.CloseAllPositions(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("close positions: %w", err))
	} else {
		failed := make(map[string]bool, len(summary.FailedIDs))
		for _, failedID := range summary.FailedIDs {
			failed[failedID] = true
		}
		if listErr == nil {
			b.journalClosed(positions, failed)
		}
		if len(summary.FailedIDs) > 0 {
			b.log.Error("positions left open at shutdown",
				zap.Strings("ids", summary.FailedIDs))
		}
	}
	b.trailing.Reset()

	if err := b.source.SaveState(); err != nil {
		errs = append(errs, fmt.Errorf("save signal state: %w", err))
	}
	if err := b.venue.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close venue: %w", err))
	}
	if err := b.ledger.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ledger: %w", err))
	}

	b.alerts.Notify("bot stopped", fmt.Sprintf("run %s shut down", b.runID))
	return errors.Join(errs...)
}
