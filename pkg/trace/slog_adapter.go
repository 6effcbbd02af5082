package trace

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger. Rounds are logged at
// Debug level, run results at Info.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("run_id", event.RunID),
		slog.String("category", event.Category.String()),
	}

	switch {
	case event.Round != nil:
		r := event.Round
		attrs = append(attrs,
			slog.Int("round", r.Round),
			slog.String("decision", r.Decision.String()),
			slog.Int("backtracks", r.Backtracks),
			slog.String("status", r.Status.String()),
			slog.Float64("sep0", r.Separation(0)),
			slog.Float64("sep1", r.Separation(1)),
			slog.Int("queries", r.Queries),
		)
		if r.Candidate != nil {
			attrs = append(attrs, slog.String("candidate", r.Candidate.Text(2)))
		}
		a.logger.LogAttrs(context.Background(), slog.LevelDebug, "round", attrs...)
	case event.Result != nil:
		r := event.Result
		attrs = append(attrs,
			slog.String("status", r.Status.String()),
			slog.Int("rounds", r.Rounds),
			slog.Int("backtracks", r.Backtracks),
			slog.Int("queries", r.Queries),
			slog.Duration("elapsed", r.Elapsed),
		)
		if r.Exponent != nil {
			attrs = append(attrs, slog.String("exponent", r.Exponent.String()))
		}
		if r.Correct != nil {
			attrs = append(attrs, slog.Bool("correct", *r.Correct))
		}
		a.logger.LogAttrs(context.Background(), slog.LevelInfo, "result", attrs...)
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
