// Package commands implements the timing-trace CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/mahdiidarabi/rsa-timing/pkg/report"
	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event trace.Event) {
	// Header line: timestamp [run:id] CATEGORY label
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	runID := shortenRunID(event.RunID)

	switch {
	case event.Round != nil:
		r := event.Round
		label := r.Decision.String()
		if r.Backtracking {
			label += " (backtrack)"
		}
		fmt.Fprintf(w, "%s [run:%s] %s %d %s\n", ts, runID, event.Category, r.Round, label)
		fmt.Fprintf(w, "  Candidate: %s\n", report.FormatProgress(r.Candidate, nil))
		fmt.Fprintf(w, "  Separation: bit0 %+.3f  bit1 %+.3f\n", r.Separation(0), r.Separation(1))
		fmt.Fprintf(w, "  Backtracks: %d  Queries: %d  Status: %s\n", r.Backtracks, r.Queries, r.Status)
	case event.Result != nil:
		r := event.Result
		fmt.Fprintf(w, "%s [run:%s] %s %s\n", ts, runID, event.Category, r.Status)
		if r.Exponent != nil {
			fmt.Fprintf(w, "  Exponent: %s (0x%s)\n", r.Exponent, r.Exponent.Text(16))
		} else if r.Candidate != nil {
			fmt.Fprintf(w, "  Candidate: %s\n", r.Candidate.Text(2))
		}
		fmt.Fprintf(w, "  Rounds: %d  Backtracks: %d  Queries: %d  Elapsed: %s\n", r.Rounds, r.Backtracks, r.Queries, r.Elapsed)
		if r.ModulusBits > 0 {
			fmt.Fprintf(w, "  Modulus: %d bits  Blinded: %v\n", r.ModulusBits, r.Blinded)
		}
		if r.Correct != nil {
			fmt.Fprintf(w, "  Correct: %v\n", *r.Correct)
		}
	default:
		fmt.Fprintf(w, "%s [run:%s] %s\n", ts, runID, event.Category)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenRunID returns the first 8 characters of the run ID.
func shortenRunID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (trace.Category, error) {
	switch strings.ToLower(s) {
	case "round":
		return trace.CategoryRound, nil
	case "result":
		return trace.CategoryResult, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be round or result)", s)
	}
}

// ParseDecisionFlag parses a classifier decision (bit0, bit1, ambiguous).
func ParseDecisionFlag(s string) (timingattack.Decision, error) {
	switch strings.ToLower(s) {
	case "bit0", "0":
		return timingattack.BitZero, nil
	case "bit1", "1":
		return timingattack.BitOne, nil
	case "ambiguous":
		return timingattack.Ambiguous, nil
	default:
		return 0, fmt.Errorf("invalid decision: %s (must be bit0, bit1, or ambiguous)", s)
	}
}

// ParseStatusFlag parses a search status (searching, cracked, failed).
func ParseStatusFlag(s string) (timingattack.Status, error) {
	switch strings.ToLower(s) {
	case "searching":
		return timingattack.Searching, nil
	case "cracked":
		return timingattack.Cracked, nil
	case "failed":
		return timingattack.Failed, nil
	default:
		return 0, fmt.Errorf("invalid status: %s (must be searching, cracked, or failed)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter trace.Filter, output io.Writer) error {
	reader, err := trace.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
