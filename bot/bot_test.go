package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahlbert/mt5-tradingbot/broker"
	"github.com/ahlbert/mt5-tradingbot/journal"
	"github.com/ahlbert/mt5-tradingbot/market"
	"github.com/ahlbert/mt5-tradingbot/risk"
	"github.com/ahlbert/mt5-tradingbot/signal"
)

// fakeClock advances instantly on Sleep and can cancel the loop after a set
// number of iterations.
type fakeClock struct {
	now      time.Time
	slept    []time.Duration
	maxSleep int
	cancel   context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	if c.cancel != nil && len(c.slept) >= c.maxSleep {
		c.cancel()
	}
}

type fakeGateway struct {
	mu sync.Mutex

	marketOpen      bool
	marketErr       error
	acct            broker.AccountSnapshot
	acctErr         error
	snap            market.Snapshot
	snapErr         error
	positions       []broker.Position
	placeErr        error
	orders          []broker.OrderRequest
	closedIDs       []string
	closeAllCalls   int
	closeAllFailIDs []string
	closed          bool
}

func (g *fakeGateway) IsMarketOpen(context.Context, string) (bool, error) {
	return g.marketOpen, g.marketErr
}

func (g *fakeGateway) GetAccountSnapshot(context.Context) (broker.AccountSnapshot, error) {
	return g.acct, g.acctErr
}

func (g *fakeGateway) GetMarketSnapshot(context.Context, string) (market.Snapshot, error) {
	return g.snap, g.snapErr
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return broker.OrderResult{}, g.placeErr
	}
	g.orders = append(g.orders, req)
	price := g.snap.Ask
	if req.Side == broker.Sell {
		price = g.snap.Bid
	}
	return broker.OrderResult{
		OrderID:   fmt.Sprintf("ord-%d", len(g.orders)),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Volume:    req.Volume,
		FillPrice: price,
		Time:      time.Now(),
	}, nil
}

func (g *fakeGateway) ListOpenPositions(context.Context) ([]broker.Position, error) {
	return g.positions, nil
}

func (g *fakeGateway) ClosePosition(_ context.Context, positionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closedIDs = append(g.closedIDs, positionID)
	return nil
}

func (g *fakeGateway) CloseAllPositions(context.Context) (broker.CloseAllSummary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeAllCalls++
	failed := make(map[string]bool, len(g.closeAllFailIDs))
	for _, failedID := range g.closeAllFailIDs {
		failed[failedID] = true
	}
	summary := broker.CloseAllSummary{Attempted: len(g.positions)}
	for _, p := range g.positions {
		if failed[p.ID] {
			summary.FailedIDs = append(summary.FailedIDs, p.ID)
			continue
		}
		summary.Succeeded++
	}
	return summary, nil
}

func (g *fakeGateway) Close() error {
	g.closed = true
	return nil
}

type fakeSource struct {
	sig      signal.Signal
	sigErr   error
	outcomes []journal.TradeRecord
	saved    bool
}

func (s *fakeSource) GetSignal(market.Snapshot, broker.AccountSnapshot) (signal.Signal, error) {
	return s.sig, s.sigErr
}

func (s *fakeSource) RecordOutcome(rec journal.TradeRecord) {
	s.outcomes = append(s.outcomes, rec)
}

func (s *fakeSource) SaveState() error {
	s.saved = true
	return nil
}

type fakeLedger struct {
	trades []journal.TradeRecord
	closes []string
	equity []journal.EquitySnapshot
	closed bool
}

func (l *fakeLedger) LogTrade(rec journal.TradeRecord) (bool, error) {
	for _, existing := range l.trades {
		if existing.OrderID == rec.OrderID {
			return false, nil
		}
	}
	l.trades = append(l.trades, rec)
	return true, nil
}

func (l *fakeLedger) UpdateOnClose(orderID string, _, _ float64, _ time.Time) (bool, error) {
	l.closes = append(l.closes, orderID)
	return true, nil
}

func (l *fakeLedger) RecordEquity(snap journal.EquitySnapshot) error {
	l.equity = append(l.equity, snap)
	return nil
}

func (l *fakeLedger) Stats(int) (journal.Stats, error)              { return journal.Stats{}, nil }
func (l *fakeLedger) RecentTrades(int) ([]journal.TradeRecord, error) { return nil, nil }
func (l *fakeLedger) Close() error                                  { l.closed = true; return nil }

type fakeAlerts struct {
	subjects []string
}

func (a *fakeAlerts) Notify(subject, _ string) bool {
	a.subjects = append(a.subjects, subject)
	return true
}

type fakeMetrics struct {
	values map[string]float64
}

func (m *fakeMetrics) Publish(name string, value float64, _ string) bool {
	if m.values == nil {
		m.values = map[string]float64{}
	}
	m.values[name] = value
	return true
}

func newTestBot(t *testing.T, gw *fakeGateway, src *fakeSource) (*Bot, *fakeLedger, *fakeAlerts, *fakeMetrics, *fakeClock) {
	t.Helper()
	ledger := &fakeLedger{}
	alerts := &fakeAlerts{}
	met := &fakeMetrics{}
	clock := &fakeClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}

	b, err := New(Config{Symbol: "EURUSD", MaxTradesPerDay: 50}, Deps{
		Venue:   gw,
		Source:  src,
		Ledger:  ledger,
		Alerts:  alerts,
		Metrics: met,
		Clock:   clock,
	})
	require.NoError(t, err)
	return b, ledger, alerts, met, clock
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Symbol: "EURUSD"}, Deps{})
	assert.Error(t, err)

	_, err = New(Config{}, Deps{Venue: &fakeGateway{}, Source: &fakeSource{}, Ledger: &fakeLedger{}})
	assert.Error(t, err, "missing symbol")
}

func TestRunPlacesTradeAndReports(t *testing.T) {
	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000, MarginFree: 10000},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
	}
	src := &fakeSource{sig: signal.Signal{
		Action:         signal.Buy,
		Symbol:         "EURUSD",
		StopLossPips:   20,
		TakeProfitPips: 40,
	}}
	b, ledger, alerts, met, clock := newTestBot(t, gw, src)

	ctx, cancel := context.WithCancel(context.Background())
	clock.cancel = cancel
	clock.maxSleep = 1

	require.NoError(t, b.Run(ctx))

	require.Len(t, gw.orders, 1)
	order := gw.orders[0]
	assert.Equal(t, broker.Buy, order.Side)
	assert.InDelta(t, 1.0, order.Volume, 1e-9, "2 percent of 10k over 20 pips")
	require.NotNil(t, order.StopLoss)
	assert.InDelta(t, 1.0980, *order.StopLoss, 1e-9)
	require.NotNil(t, order.TakeProfit)
	assert.InDelta(t, 1.1040, *order.TakeProfit, 1e-9)

	require.Len(t, ledger.trades, 1)
	assert.Equal(t, journal.StatusOpen, ledger.trades[0].Status)
	assert.NotEmpty(t, ledger.equity)

	assert.Equal(t, 1.0, met.values["TradesToday"])
	assert.Equal(t, 0.0, met.values["DailyPnL"])
	assert.Equal(t, 10000.0, met.values["AccountBalance"])

	assert.Contains(t, alerts.subjects, "bot started")
	assert.Contains(t, alerts.subjects, "bot stopped")
	assert.True(t, gw.closed)
	assert.True(t, ledger.closed)
	assert.True(t, src.saved)
	assert.Equal(t, 1, gw.closeAllCalls, "shutdown flattens the account")
}

func TestStepOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mut  func(*fakeGateway, *fakeSource, *Bot)
		want outcome
	}{
		{
			name: "market closed",
			mut: func(gw *fakeGateway, _ *fakeSource, _ *Bot) {
				gw.marketOpen = false
			},
			want: outcomeMarketClosed,
		},
		{
			name: "throttled at daily cap",
			mut: func(_ *fakeGateway, _ *fakeSource, b *Bot) {
				b.tradesToday = b.cfg.MaxTradesPerDay
			},
			want: outcomeThrottled,
		},
		{
			name: "account snapshot failure is transient",
			mut: func(gw *fakeGateway, _ *fakeSource, _ *Bot) {
				gw.acctErr = errors.New("bridge timeout")
			},
			want: outcomeTransientData,
		},
		{
			name: "market snapshot failure is transient",
			mut: func(gw *fakeGateway, _ *fakeSource, _ *Bot) {
				gw.snapErr = errors.New("bridge timeout")
			},
			want: outcomeTransientData,
		},
		{
			name: "risk pause at max positions",
			mut: func(gw *fakeGateway, _ *fakeSource, _ *Bot) {
				gw.acct.OpenPositions = risk.DefaultConfig().MaxPositions
			},
			want: outcomeRiskPaused,
		},
		{
			name: "hold is a clean pass",
			mut:  func(*fakeGateway, *fakeSource, *Bot) {},
			want: outcomeOK,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gw := &fakeGateway{
				marketOpen: true,
				acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000},
				snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
			}
			src := &fakeSource{sig: signal.Signal{Action: signal.Hold}}
			b, _, _, _, _ := newTestBot(t, gw, src)
			tc.mut(gw, src, b)

			out, err := b.step(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}

func TestDayRolloverResetsCounters(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 9800, Equity: 9750},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
	}
	src := &fakeSource{sig: signal.Signal{Action: signal.Hold}}
	b, _, _, _, clock := newTestBot(t, gw, src)

	b.tradesToday = 7
	b.daily.Rollover(clock.now, 10000)

	// Cross midnight; the stale trade count must not throttle the new day.
	b.tradesToday = b.cfg.MaxTradesPerDay
	clock.now = clock.now.Add(24 * time.Hour)

	out, err := b.step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeOK, out)
	assert.Equal(t, 0, b.tradesToday)
	assert.Equal(t, 9750.0, b.daily.StartBalance, "new baseline is the day's opening equity")
	assert.Equal(t, 0.0, b.daily.AccumulatedLoss)
}

func TestManageClosesTrailingBreach(t *testing.T) {
	t.Parallel()

	pos := broker.Position{
		ID:        "pos-1",
		Symbol:    "EURUSD",
		Side:      broker.Buy,
		Volume:    1.0,
		OpenPrice: 1.1000,
		OpenTime:  time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000, OpenPositions: 1},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
	}
	src := &fakeSource{sig: signal.Signal{Action: signal.Hold}}
	b, ledger, _, _, _ := newTestBot(t, gw, src)

	// First pass arms the tracker at +3%.
	pos.CurrentPrice = 1.1330
	gw.positions = []broker.Position{pos}
	_, err := b.step(context.Background())
	require.NoError(t, err)
	peak, tracked := b.trailing.Tracking("pos-1")
	require.True(t, tracked)
	assert.InDelta(t, 0.03, peak, 1e-9)
	assert.Empty(t, gw.closedIDs)

	// Retracement to half the peak fires the stop.
	pos.CurrentPrice = 1.1154
	pos.Profit = 1540.0
	gw.positions = []broker.Position{pos}
	_, err = b.step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"pos-1"}, gw.closedIDs)
	assert.Equal(t, []string{"pos-1"}, ledger.closes)
	require.Len(t, src.outcomes, 1)
	assert.Equal(t, journal.StatusClosed, src.outcomes[0].Status)
	_, tracked = b.trailing.Tracking("pos-1")
	assert.False(t, tracked)
}

func TestManageClearsStalePeaks(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
	}
	src := &fakeSource{sig: signal.Signal{Action: signal.Hold}}
	b, _, _, _, _ := newTestBot(t, gw, src)

	// Track a position, then have it vanish at the venue.
	b.trailing.Evaluate(broker.Position{
		ID: "gone", Side: broker.Buy, OpenPrice: 1.0, CurrentPrice: 1.03, Volume: 1,
	}, 1.03, b.daily)
	_, tracked := b.trailing.Tracking("gone")
	require.True(t, tracked)

	_, err := b.step(context.Background())
	require.NoError(t, err)
	_, tracked = b.trailing.Tracking("gone")
	assert.False(t, tracked)
}

func TestExecutionFailureIsNotAlerted(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
		placeErr:   errors.New("broker rejected order"),
	}
	src := &fakeSource{sig: signal.Signal{Action: signal.Buy, StopLossPips: 20}}
	b, ledger, alerts, met, _ := newTestBot(t, gw, src)

	out, err := b.step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeOK, out, "a rejected order still reports")
	assert.Empty(t, alerts.subjects)
	assert.Empty(t, ledger.trades)
	assert.Equal(t, 0.0, met.values["TradesToday"])
	assert.NotEmpty(t, ledger.equity, "reporting ran despite the rejection")
}

func TestIterateAlertsOnUnhandledErrors(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{marketErr: errors.New("bridge unreachable")}
	src := &fakeSource{}
	b, _, alerts, _, _ := newTestBot(t, gw, src)

	out := b.iterate(context.Background())
	assert.Equal(t, outcomeFailed, out)
	assert.Contains(t, alerts.subjects, "iteration failure")
}

func TestIterateDoesNotAlertOnCancel(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{marketErr: context.Canceled}
	src := &fakeSource{}
	b, _, alerts, _, _ := newTestBot(t, gw, src)

	out := b.iterate(context.Background())
	assert.Equal(t, outcomeFailed, out)
	assert.Empty(t, alerts.subjects)
}

func TestCloseAllClearsPeaksAndJournals(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
	}
	src := &fakeSource{sig: signal.Signal{Action: signal.CloseAll}}
	b, ledger, _, _, _ := newTestBot(t, gw, src)

	gw.positions = []broker.Position{
		{ID: "pos-9", Side: broker.Buy, OpenPrice: 1.0, CurrentPrice: 1.03, Volume: 1},
		{ID: "pos-stuck", Side: broker.Sell, OpenPrice: 1.1, CurrentPrice: 1.1, Volume: 1},
	}
	gw.closeAllFailIDs = []string{"pos-stuck"}

	out, err := b.step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeOK, out)
	assert.Equal(t, 1, gw.closeAllCalls)
	_, tracked := b.trailing.Tracking("pos-9")
	assert.False(t, tracked)

	assert.Equal(t, []string{"pos-9"}, ledger.closes, "closed positions journaled, failed ones left open")
}

func TestShutdownJournalsFlattenedPositions(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		marketOpen: true,
		acct:       broker.AccountSnapshot{Balance: 10000, Equity: 10000},
		snap:       market.Snapshot{Symbol: "EURUSD", Bid: 1.0998, Ask: 1.1000},
	}
	src := &fakeSource{sig: signal.Signal{Action: signal.Hold}}
	b, ledger, _, _, _ := newTestBot(t, gw, src)

	gw.positions = []broker.Position{
		{ID: "pos-3", Side: broker.Buy, OpenPrice: 1.1, CurrentPrice: 1.105, Volume: 1, Profit: 500},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, b.Run(ctx))

	assert.Equal(t, 1, gw.closeAllCalls)
	assert.Equal(t, []string{"pos-3"}, ledger.closes, "flattened positions marked closed in the journal")
}

func TestWaitPolicy(t *testing.T) {
	t.Parallel()

	w := DefaultWaits()
	tests := []struct {
		out  outcome
		want time.Duration
	}{
		{outcomeOK, time.Minute},
		{outcomeMarketClosed, 5 * time.Minute},
		{outcomeThrottled, time.Hour},
		{outcomeTransientData, time.Minute},
		{outcomeRiskPaused, 5 * time.Minute},
		{outcomeFailed, time.Minute},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, w.waitFor(tc.out), tc.out.String())
	}
}
