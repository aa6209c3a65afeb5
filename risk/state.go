package risk

import "time"

// DailyState is the per-trading-day loss baseline. It is owned by the
// orchestrator, mutated only here and by the limiter's daily-loss branch,
// and reset at every day boundary.
type DailyState struct {
	TradingDay      time.Time // date only, UTC
	StartBalance    float64
	AccumulatedLoss float64
}

// NewDailyState returns an unseeded state for the given day. StartBalance
// stays zero until the first account snapshot seeds it.
func NewDailyState(day time.Time) *DailyState {
	return &DailyState{TradingDay: dateOf(day)}
}

// Rollover resets the state for a new trading day, seeding the loss baseline
// from the day's opening equity.
func (s *DailyState) Rollover(day time.Time, equity float64) {
	s.TradingDay = dateOf(day)
	s.StartBalance = equity
	s.AccumulatedLoss = 0
}

// SameDay reports whether t falls on the state's trading day.
func (s *DailyState) SameDay(t time.Time) bool {
	return dateOf(t).Equal(s.TradingDay)
}

// Seeded reports whether the loss baseline has been set for this day.
func (s *DailyState) Seeded() bool {
	return s.StartBalance > 0
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
