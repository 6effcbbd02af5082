package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

// FilterOptions holds the raw flag values of the filter command.
type FilterOptions struct {
	Output           string
	RunID            string
	Category         string
	Decision         string
	Status           string
	BacktrackingOnly bool
	TimeStart        string
	TimeEnd          string
}

// BuildFilter converts the flag values into a trace.Filter.
func (o FilterOptions) BuildFilter() (trace.Filter, error) {
	filter := trace.Filter{
		RunID:            o.RunID,
		BacktrackingOnly: o.BacktrackingOnly,
	}

	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	if o.Decision != "" {
		d, err := ParseDecisionFlag(o.Decision)
		if err != nil {
			return filter, err
		}
		filter.Decision = &d
	}
	if o.Status != "" {
		s, err := ParseStatusFlag(o.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &s
	}
	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.TimeEnd = &t
	}
	return filter, nil
}

// RunFilter copies the events of path that match opts into opts.Output.
func RunFilter(path string, opts FilterOptions) error {
	filter, err := opts.BuildFilter()
	if err != nil {
		return err
	}

	reader, err := trace.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	encoder := trace.NewEncoder(f)
	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		count++
	}

	fmt.Fprintf(os.Stderr, "Wrote %d events to %s\n", count, opts.Output)
	return f.Close()
}
