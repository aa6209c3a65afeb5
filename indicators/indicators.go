// Package indicators provides streaming moving averages over close prices.
package indicators

import "fmt"

// SimpleMA is a streaming simple moving average.
type SimpleMA struct {
	period int
	values []float64
}

func NewMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		values: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("MA(%d)", m.period)
}

func (m *SimpleMA) Update(v float64) {
	m.values = append(m.values, v)
	if len(m.values) > m.period {
		m.values = m.values[1:]
	}
}

func (m *SimpleMA) Ready() bool {
	return len(m.values) >= m.period
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	sum := 0.0
	for _, v := range m.values {
		sum += v
	}
	return sum / float64(len(m.values))
}

func (m *SimpleMA) Reset() {
	m.values = m.values[:0]
}

// ExponentialMA is a streaming exponential moving average. It warms up as a
// simple average over the first `period` values, then applies the usual
// smoothing multiplier.
type ExponentialMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Update(v float64) {
	e.count++
	if e.count <= e.period {
		e.warmupSum += v
		e.ema = e.warmupSum / float64(e.count)
		return
	}
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}
