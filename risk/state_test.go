package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyStateRollover(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2026, 3, 2, 23, 50, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 3, 0, 10, 0, 0, time.UTC)

	s := NewDailyState(d1)
	s.StartBalance = 10000
	s.AccumulatedLoss = 250

	assert.True(t, s.SameDay(d1))
	assert.False(t, s.SameDay(d2))

	s.Rollover(d2, 10400)

	assert.True(t, s.SameDay(d2))
	assert.InDelta(t, 10400, s.StartBalance, 1e-9)
	assert.Zero(t, s.AccumulatedLoss)
}

func TestDailyStateSeeded(t *testing.T) {
	t.Parallel()

	s := NewDailyState(time.Now())
	assert.False(t, s.Seeded())
	s.StartBalance = 5000
	assert.True(t, s.Seeded())
}
