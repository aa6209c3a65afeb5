// Package alert fans operational notifications out to wherever the operator
// watches. Delivery is best-effort: the loop never blocks or fails on a sink.
package alert

import "go.uber.org/zap"

// Sink receives operational alerts. Notify reports whether delivery
// succeeded; callers treat false as a logging concern, never an error.
type Sink interface {
	Notify(subject, message string) bool
}

// LogSink writes alerts to the structured log. It is the fallback sink when
// no webhook is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Notify(subject, message string) bool {
	s.log.Warn("alert",
		zap.String("subject", subject),
		zap.String("message", message))
	return true
}

// Multi fans one alert out to several sinks; it reports success when any
// sink delivered.
type Multi []Sink

func (m Multi) Notify(subject, message string) bool {
	ok := false
	for _, s := range m {
		if s.Notify(subject, message) {
			ok = true
		}
	}
	return ok
}
