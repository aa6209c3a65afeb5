// Package metrics publishes the bot's operational gauges. Publishing is
// best-effort and must never block the trading loop.
package metrics

// Sink receives named metric values. Unit is advisory ("USD", "Count", ...).
type Sink interface {
	Publish(name string, value float64, unit string) bool
}

// Noop discards all metrics.
type Noop struct{}

func (Noop) Publish(string, float64, string) bool { return true }
