package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

// record is the flat export form of a trace event.
type record struct {
	Timestamp    time.Time `json:"timestamp"`
	RunID        string    `json:"run_id"`
	Category     string    `json:"category"`
	Round        int       `json:"round,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	Candidate    string    `json:"candidate,omitempty"`
	Backtracking bool      `json:"backtracking,omitempty"`
	Backtracks   int       `json:"backtracks"`
	Status       string    `json:"status"`
	Sep0         float64   `json:"sep0"`
	Sep1         float64   `json:"sep1"`
	Queries      int       `json:"queries"`
	Exponent     string    `json:"exponent,omitempty"`
	Correct      *bool     `json:"correct,omitempty"`
}

func toRecord(e trace.Event) record {
	rec := record{
		Timestamp: e.Timestamp,
		RunID:     e.RunID,
		Category:  e.Category.String(),
	}
	switch {
	case e.Round != nil:
		r := e.Round
		rec.Round = r.Round
		rec.Decision = r.Decision.String()
		if r.Candidate != nil {
			rec.Candidate = r.Candidate.Text(2)
		}
		rec.Backtracking = r.Backtracking
		rec.Backtracks = r.Backtracks
		rec.Status = r.Status.String()
		rec.Sep0 = r.Separation(0)
		rec.Sep1 = r.Separation(1)
		rec.Queries = r.Queries
	case e.Result != nil:
		r := e.Result
		rec.Round = r.Rounds
		if r.Candidate != nil {
			rec.Candidate = r.Candidate.Text(2)
		}
		rec.Backtracks = r.Backtracks
		rec.Status = r.Status.String()
		rec.Queries = r.Queries
		if r.Exponent != nil {
			rec.Exponent = r.Exponent.String()
		}
		rec.Correct = r.Correct
	}
	return rec
}

// RunExport exports the trace file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := trace.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *trace.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toRecord(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *trace.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "run_id", "category", "round", "decision", "candidate", "backtracks", "status", "sep0", "sep1", "queries", "exponent"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		rec := toRecord(event)
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			rec.RunID,
			rec.Category,
			strconv.Itoa(rec.Round),
			rec.Decision,
			rec.Candidate,
			strconv.Itoa(rec.Backtracks),
			rec.Status,
			strconv.FormatFloat(rec.Sep0, 'f', 4, 64),
			strconv.FormatFloat(rec.Sep1, 'f', 4, 64),
			strconv.Itoa(rec.Queries),
			rec.Exponent,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
