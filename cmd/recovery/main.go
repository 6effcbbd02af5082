package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mahdiidarabi/rsa-timing/internal/calibrate"
	"github.com/mahdiidarabi/rsa-timing/internal/config"
	"github.com/mahdiidarabi/rsa-timing/internal/keyfile"
	"github.com/mahdiidarabi/rsa-timing/pkg/report"
	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
	"github.com/mahdiidarabi/rsa-timing/pkg/trace"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to a YAML config file (flags override its values)")
		keyFile       = flag.String("key", "", "Path to the victim key (JSON or YAML); a fresh key is generated otherwise")
		bits          = flag.Int("bits", 16, "Modulus size of a generated victim key")
		saveKey       = flag.String("save-key", "", "Write the victim key to this path (JSON or YAML)")
		samples       = flag.Int("samples", 32, "Ciphertexts per class and round")
		maxBacktracks = flag.Int("max-backtracks", 10, "Ambiguous rounds allowed before the run fails")
		significance  = flag.Float64("significance", 0.5, "Minimum separation of the accepted hypothesis, in microseconds")
		tolerance     = flag.Float64("tolerance", 0.3, "Maximum separation of the rejected hypothesis, in microseconds")
		probes        = flag.Int("probes", 1, "Ciphertexts a termination probe must decrypt correctly")
		blind         = flag.Bool("blind", false, "Enable the blinding countermeasure on the victim")
		synthetic     = flag.Bool("synthetic", false, "Time the victim with a synthetic clock instead of the wall clock")
		penalty       = flag.Duration("penalty", time.Microsecond, "Synthetic cost of one extra reduction")
		jitter        = flag.Duration("jitter", 0, "Synthetic timing noise bound")
		seed          = flag.Int64("seed", 0, "Seed for reproducible runs (0 = crypto/rand)")
		traceFile     = flag.String("trace", "", "Record round events to this CBOR trace file")
		reportFile    = flag.String("report", "", "Render an HTML report of the run to this file")
		logLevel      = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		doCalibrate   = flag.Bool("calibrate", false, "Measure classifier accuracy at known prefixes instead of attacking")
		trials        = flag.Int("trials", 200, "Calibration trials")
		numWorkers    = flag.Int("workers", 0, "Number of parallel calibration workers (0 = auto-detect based on CPU cores)")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the config file.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "key":
			cfg.Key.File = *keyFile
		case "bits":
			cfg.Key.Bits = *bits
		case "samples":
			cfg.Attack.SamplesPerClass = *samples
		case "max-backtracks":
			cfg.Attack.MaxBacktracks = *maxBacktracks
		case "significance":
			cfg.Attack.SignificanceThreshold = *significance
		case "tolerance":
			cfg.Attack.EqualityTolerance = *tolerance
		case "probes":
			cfg.Attack.ProbeCiphertexts = *probes
		case "blind":
			cfg.Attack.Blinding = *blind
		case "synthetic":
			cfg.Clock.Synthetic = *synthetic
		case "penalty":
			cfg.Clock.Penalty = *penalty
		case "jitter":
			cfg.Clock.Jitter = *jitter
		case "seed":
			cfg.Seed = *seed
		case "trace":
			cfg.Output.Trace = *traceFile
		case "report":
			cfg.Output.Report = *reportFile
		case "log-level":
			level, err := config.ParseLevel(*logLevel)
			if err != nil {
				flagErr = err
			}
			cfg.Output.LogLevel = level
		case "trials":
			cfg.Calibration.Trials = *trials
		case "workers":
			cfg.Calibration.Workers = *numWorkers
		}
	})
	if flagErr == nil {
		flagErr = cfg.Validate()
	}
	if flagErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", flagErr)
		flag.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, *saveKey, *doCalibrate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, saveKey string, doCalibrate bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Output.LogLevel}))

	pair, err := loadKey(cfg.Key)
	if err != nil {
		return err
	}
	fmt.Printf("Victim key: %d-bit modulus N = %s, e = %s\n", pair.Public.N.BitLen(), pair.Public.N, pair.Public.E)
	if saveKey != "" {
		if err := keyfile.Save(saveKey, pair); err != nil {
			return err
		}
		fmt.Printf("Saved key to %s\n", saveKey)
	}

	if doCalibrate {
		return runCalibration(ctx, cfg, pair)
	}

	var random timingattack.RandomSource = timingattack.CryptoRandom{}
	if cfg.Seed != 0 {
		random = timingattack.NewSeededRandom(cfg.Seed)
	}

	var fileLogger *trace.FileLogger
	if cfg.Output.Trace != "" {
		fileLogger, err = trace.NewFileLogger(cfg.Output.Trace)
		if err != nil {
			return err
		}
		defer fileLogger.Close()
	}
	var collector *report.Collector
	if cfg.Output.Report != "" {
		collector = report.NewCollector(cfg.Attack.SignificanceThreshold, cfg.Attack.EqualityTolerance).
			WithTrueExponent(pair.Secret.D)
	}
	sinks := []trace.Logger{trace.NewSlogAdapter(logger)}
	if fileLogger != nil {
		sinks = append(sinks, fileLogger)
	}
	if collector != nil {
		sinks = append(sinks, collector)
	}
	loggers := trace.NewMultiLogger(sinks...)

	events := trace.Observe(loggers)
	observer := timingattack.ObserverFunc(func(e timingattack.RoundEvent) {
		events.OnRound(e)
		fmt.Printf("Round %3d  %-9s  %s\n", e.Round, e.Decision, report.FormatProgress(e.Candidate, pair.Secret.D))
	})

	client := timingattack.NewClient().
		WithConfig(cfg.Attack).
		WithClock(cfg.Clock).
		WithRandom(random).
		WithObserver(observer)

	fmt.Printf("Attacking with %d samples per class, %d backtracks allowed (blinding %v)...\n",
		cfg.Attack.SamplesPerClass, cfg.Attack.MaxBacktracks, cfg.Attack.Blinding)

	result, err := client.AttackKey(ctx, pair)
	if err != nil {
		return err
	}
	loggers.Log(trace.FromReport(result, cfg.Attack.Blinding))

	r := result.Result
	switch {
	case result.Correct:
		fmt.Printf("\n[+] Recovered private exponent!\n")
		fmt.Printf("    d = %s (0x%s)\n", r.Exponent, r.Exponent.Text(16))
		fmt.Println("    ✓ Matches the victim key!")
	case r.Status == timingattack.Cracked:
		fmt.Printf("\n[!] Probe accepted d = %s, which differs from the victim key\n", r.Exponent)
	default:
		fmt.Printf("\n[-] Search failed after %d backtracks\n", r.Backtracks)
		fmt.Printf("    Last candidate: %s\n", report.FormatProgress(r.Candidate, pair.Secret.D))
	}
	fmt.Printf("    Rounds: %d, oracle queries: %d, elapsed: %s\n", r.Rounds, r.Queries, r.Elapsed.Round(time.Millisecond))

	if fileLogger != nil {
		if err := fileLogger.Close(); err != nil {
			return fmt.Errorf("failed to write trace: %w", err)
		}
		fmt.Printf("Trace written to %s\n", cfg.Output.Trace)
	}
	if collector != nil {
		if err := collector.RenderFile(cfg.Output.Report); err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", cfg.Output.Report)
	}
	return nil
}

func runCalibration(ctx context.Context, cfg config.Config, pair *timingattack.KeyPair) error {
	cc := calibrate.DefaultConfig(pair)
	cc.Attack = cfg.Attack
	cc.Clock = cfg.Clock
	cc.Trials = cfg.Calibration.Trials
	cc.Workers = cfg.Calibration.Workers
	cc.Seed = cfg.Seed
	cc.Progress = func(done, total int) {
		if done%50 == 0 || done == total {
			fmt.Printf("  %d/%d trials\n", done, total)
		}
	}

	fmt.Printf("Calibrating with %d trials (blinding %v)...\n", cc.Trials, cc.Attack.Blinding)
	result, err := calibrate.Run(ctx, cc)
	if err != nil {
		return err
	}

	fmt.Printf("\nAccuracy:   %.1f%%\n", 100*result.Accuracy())
	fmt.Printf("Correct:    %d\n", result.Correct)
	fmt.Printf("Wrong:      %d\n", result.Wrong)
	fmt.Printf("Ambiguous:  %d\n", result.Ambiguous)
	fmt.Printf("Separation: %.3f (true bit) / %.3f (false bit)\n", result.MeanSeparation[0], result.MeanSeparation[1])
	fmt.Printf("Queries:    %d in %s\n", result.Queries, result.Elapsed.Round(time.Millisecond))
	return nil
}

func loadKey(kc config.KeyConfig) (*timingattack.KeyPair, error) {
	if kc.File != "" {
		return keyfile.Load(kc.File)
	}
	return timingattack.NewPrimeKeyProvider().Generate(kc.Bits)
}
