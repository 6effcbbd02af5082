// Package trace records key recovery runs as a stream of events.
//
// It is separate from operational logging (slog): a trace is a complete
// machine-readable record of every round of a search, for later analysis
// with the timing-trace CLI or for rendering with pkg/report.
//
// # Basic Usage
//
//	// Log rounds to the console
//	observer := trace.Observe(trace.NewSlogAdapter(slog.Default()))
//
//	// Write a binary trace as well
//	file, _ := trace.NewFileLogger("attack.tlog")
//	defer file.Close()
//	observer = trace.Observe(trace.NewMultiLogger(
//	    trace.NewSlogAdapter(slog.Default()),
//	    file,
//	))
//
//	search.WithObserver(observer)
//
// # File Format
//
// Trace files are a sequence of CBOR-encoded Event values with integer
// keys, usually with the .tlog extension.
package trace
