package commands

import (
	"fmt"

	"github.com/mahdiidarabi/rsa-timing/internal/keyfile"
	"github.com/mahdiidarabi/rsa-timing/pkg/report"
	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

// ReportOptions holds the flag values of the report command.
type ReportOptions struct {
	Output       string
	KeyFile      string // Optional; enables the prefix accuracy chart
	Significance float64
	Tolerance    float64
	Title        string
	RunID        string
}

// RunReport renders the rounds of the trace file as an HTML page.
func RunReport(path string, opts ReportOptions) error {
	events, err := trace.ReadAll(path, trace.Filter{RunID: opts.RunID})
	if err != nil {
		return fmt.Errorf("failed to read trace file: %w", err)
	}

	collector := report.NewCollector(opts.Significance, opts.Tolerance)
	if opts.Title != "" {
		collector.WithTitle(opts.Title)
	}
	if opts.KeyFile != "" {
		pair, err := keyfile.Load(opts.KeyFile)
		if err != nil {
			return err
		}
		collector.WithTrueExponent(pair.Secret.D)
	}

	for _, e := range events {
		collector.Log(e)
	}
	return collector.RenderFile(opts.Output)
}
