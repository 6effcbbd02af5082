// Command timing-trace views and analyzes recorded key recovery runs.
//
// Trace files are written by the recovery command when it runs with the
// -trace flag.
//
// Usage:
//
//	timing-trace <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSONL or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show per-run statistics
//	report   Render an HTML report with separation charts
//
// Examples:
//
//	# View only ambiguous rounds
//	timing-trace view -decision ambiguous recovery.cbor
//
//	# Export to CSV
//	timing-trace export -format csv -o rounds.csv recovery.cbor
//
//	# Keep one run
//	timing-trace filter -run-id 3f2a9c1e-... -o run.cbor recovery.cbor
//
//	# Render a report graded against the victim key
//	timing-trace report -key fixtures/test_key_16bit.json -o report.html recovery.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mahdiidarabi/rsa-timing/cmd/timing-trace/commands"
	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

const usage = `timing-trace - Key Recovery Trace Analyzer

Usage:
  timing-trace <command> [flags] <file.cbor>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSONL or CSV format
  filter   Filter trace file and write to new file
  stats    Show per-run statistics
  report   Render an HTML report with separation charts

Use "timing-trace <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "report":
		runReport(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// tracePath returns the single positional argument or exits.
func tracePath(fs *flag.FlagSet) string {
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: trace file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `timing-trace view - View trace file in human-readable format

Usage:
  timing-trace view [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	opts := commands.FilterOptions{}
	fs.StringVar(&opts.RunID, "run-id", "", "Filter by run ID")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (round, result)")
	fs.StringVar(&opts.Decision, "decision", "", "Filter by decision (bit0, bit1, ambiguous)")
	fs.StringVar(&opts.Status, "status", "", "Filter by status (searching, cracked, failed)")
	fs.BoolVar(&opts.BacktrackingOnly, "backtracking", false, "Show only rounds that backtracked")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	filter, err := opts.BuildFilter()
	if err != nil {
		fail(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `timing-trace export - Export trace file to JSONL or CSV format

Usage:
  timing-trace export [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `timing-trace filter - Filter trace file and write to new file

Usage:
  timing-trace filter [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	opts := commands.FilterOptions{}
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.RunID, "run-id", "", "Filter by run ID")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (round, result)")
	fs.StringVar(&opts.Decision, "decision", "", "Filter by decision (bit0, bit1, ambiguous)")
	fs.StringVar(&opts.Status, "status", "", "Filter by status (searching, cracked, failed)")
	fs.BoolVar(&opts.BacktrackingOnly, "backtracking", false, "Keep only rounds that backtracked")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunFilter(path, opts); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `timing-trace stats - Show per-run statistics

Usage:
  timing-trace stats <file.cbor>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `timing-trace report - Render an HTML report with separation charts

Usage:
  timing-trace report [flags] <file.cbor>

Flags:
`)
		fs.PrintDefaults()
	}

	defaults := timingattack.DefaultAttackConfig()
	opts := commands.ReportOptions{}
	fs.StringVar(&opts.Output, "o", "report.html", "Output HTML file")
	fs.StringVar(&opts.KeyFile, "key", "", "Victim key file, enables the prefix accuracy chart")
	fs.Float64Var(&opts.Significance, "significance", defaults.SignificanceThreshold, "Significance threshold drawn on the separation chart")
	fs.Float64Var(&opts.Tolerance, "tolerance", defaults.EqualityTolerance, "Equality tolerance drawn on the separation chart")
	fs.StringVar(&opts.Title, "title", "", "Page title")
	fs.StringVar(&opts.RunID, "run-id", "", "Render only this run")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := tracePath(fs)

	if err := commands.RunReport(path, opts); err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "Report written to %s\n", opts.Output)
}
