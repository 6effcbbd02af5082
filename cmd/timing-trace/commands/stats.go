package commands

import (
	"fmt"
	"io"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

// RunStats prints per-run statistics of the trace file.
func RunStats(path string, output io.Writer) error {
	events, err := trace.ReadAll(path, trace.Filter{})
	if err != nil {
		return fmt.Errorf("failed to read trace file: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(output, "No events")
		return nil
	}

	runs := trace.Summarize(events)
	fmt.Fprintf(output, "Events: %d\n", len(events))
	fmt.Fprintf(output, "Runs:   %d\n", len(runs))

	for _, run := range runs {
		fmt.Fprintf(output, "\nRun %s\n", run.RunID)
		fmt.Fprintf(output, "  Status:     %s\n", run.Status)
		fmt.Fprintf(output, "  Rounds:     %d\n", run.Rounds)
		fmt.Fprintf(output, "  Decisions:  bit0=%d bit1=%d ambiguous=%d\n",
			run.Decisions[timingattack.BitZero], run.Decisions[timingattack.BitOne], run.Decisions[timingattack.Ambiguous])
		fmt.Fprintf(output, "  Backtracks: %d\n", run.Backtracks)
		fmt.Fprintf(output, "  Queries:    %d\n", run.Queries)
		fmt.Fprintf(output, "  Max prefix: %d bits\n", run.MaxPrefix)
		if !run.Start.IsZero() {
			fmt.Fprintf(output, "  Duration:   %s\n", run.End.Sub(run.Start))
		}
		if r := run.Result; r != nil {
			if r.Exponent != nil {
				fmt.Fprintf(output, "  Exponent:   %s\n", r.Exponent)
			}
			if r.Correct != nil {
				fmt.Fprintf(output, "  Correct:    %v\n", *r.Correct)
			}
		}
	}
	return nil
}
