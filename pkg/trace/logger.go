package trace

import "github.com/mahdiidarabi/rsa-timing/pkg/timingattack"

// Logger receives trace events. Implementations must be safe for
// concurrent use and return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Observe adapts a Logger to the search's ProgressObserver.
func Observe(l Logger) timingattack.ProgressObserver {
	if l == nil {
		return timingattack.NoopObserver{}
	}
	return timingattack.ObserverFunc(func(e timingattack.RoundEvent) {
		l.Log(FromRoundEvent(e))
	})
}

// MultiLogger sends events to multiple loggers, for example console
// output via SlogAdapter and a FileLogger at the same time.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to all configured loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
)
