package calibrate

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

// Config describes a calibration run.
type Config struct {
	// Key is the victim key; its exponent supplies the ground truth.
	Key *timingattack.KeyPair

	// Attack supplies samples per class, thresholds, unit, draw cap and
	// whether the oracle is blinded.
	Attack timingattack.AttackConfig

	// Clock times the oracle of every trial.
	Clock timingattack.ClockConfig

	// Trials is the number of classification rounds to run.
	Trials int

	// Workers is the number of parallel workers (0 = auto-detect based on CPU cores).
	Workers int

	// Seed makes trials reproducible: trial i draws from SeededRandom(Seed+i).
	// Zero draws from crypto/rand.
	Seed int64

	// Progress, if set, is called from the workers after every trial.
	Progress func(done, total int)
}

// DefaultConfig returns a calibration of 200 trials with the default attack
// parameters on a synthetic clock.
func DefaultConfig(key *timingattack.KeyPair) Config {
	clock := timingattack.DefaultClockConfig()
	clock.Synthetic = true
	return Config{
		Key:    key,
		Attack: timingattack.DefaultAttackConfig(),
		Clock:  clock,
		Trials: 200,
	}
}

// Result counts the classifier outcomes over all trials.
type Result struct {
	Trials    int
	Correct   int
	Wrong     int
	Ambiguous int
	Queries   int

	// MeanSeparation is the average separation of the true and the false
	// hypothesis, in the classifier unit.
	MeanSeparation [2]float64

	Elapsed time.Duration
}

// Accuracy is the fraction of trials classified as the true bit.
func (r *Result) Accuracy() float64 {
	if r.Trials == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Trials)
}

// WorkItem is one classification round at a known prefix.
type WorkItem struct {
	Trial     int
	Candidate *big.Int
	Want      timingattack.Decision
}

// outcome is what a worker reports for one trial.
type outcome struct {
	decision timingattack.Decision
	want     timingattack.Decision
	sep      [2]float64 // true hypothesis, false hypothesis
	queries  int
	err      error
}

// Run classifies Trials rounds at prefixes of the key's private exponent
// across Workers goroutines and reports how often the classifier was right.
// Every trial has its own oracle and random source.
func Run(ctx context.Context, config Config) (*Result, error) {
	if config.Key == nil {
		return nil, fmt.Errorf("%w: calibration needs a key", timingattack.ErrInvalidConfig)
	}
	if config.Trials <= 0 {
		return nil, fmt.Errorf("%w: trials must be positive, got %d", timingattack.ErrInvalidConfig, config.Trials)
	}
	if err := config.Attack.Validate(); err != nil {
		return nil, err
	}
	items, err := Prefixes(config.Key.Secret.D)
	if err != nil {
		return nil, err
	}

	numWorkers := config.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	workChan := make(chan WorkItem, numWorkers*10)
	outcomes := make(chan outcome, numWorkers*10)

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, config, workChan, outcomes, &done)
		}()
	}

	go func() {
		defer close(workChan)
		for trial := 0; trial < config.Trials; trial++ {
			item := items[trial%len(items)]
			item.Trial = trial
			select {
			case <-ctx.Done():
				return
			case workChan <- item:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	result := &Result{}
	var firstErr error
	for o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
				cancel()
			}
			continue
		}
		result.Trials++
		result.Queries += o.queries
		result.MeanSeparation[0] += o.sep[0]
		result.MeanSeparation[1] += o.sep[1]
		switch o.decision {
		case o.want:
			result.Correct++
		case timingattack.Ambiguous:
			result.Ambiguous++
		default:
			result.Wrong++
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if result.Trials > 0 {
		result.MeanSeparation[0] /= float64(result.Trials)
		result.MeanSeparation[1] /= float64(result.Trials)
	}
	result.Elapsed = time.Since(start)
	return result, nil
}

// worker processes work items from the work channel.
func worker(ctx context.Context, config Config, workChan <-chan WorkItem, outcomes chan<- outcome, done *int64) {
	for item := range workChan {
		if ctx.Err() != nil {
			return
		}
		o := trial(ctx, config, item)
		n := atomic.AddInt64(done, 1)
		if config.Progress != nil {
			config.Progress(int(n), config.Trials)
		}
		select {
		case outcomes <- o:
		case <-ctx.Done():
			return
		}
	}
}

func trial(ctx context.Context, config Config, item WorkItem) outcome {
	var random timingattack.RandomSource = timingattack.CryptoRandom{}
	if config.Seed != 0 {
		random = timingattack.NewSeededRandom(config.Seed + int64(item.Trial))
	}

	oracle, err := timingattack.NewDecryptionOracle(config.Key.Secret)
	if err != nil {
		return outcome{err: err}
	}
	oracle.WithClock(config.Clock.NewClock(random))
	if config.Attack.Blinding {
		oracle.WithBlinding(timingattack.NewBlinding(config.Key.Public, random))
	}

	batches, err := timingattack.NewCandidateSetGenerator(random).
		WithMaxDraws(config.Attack.MaxDraws).
		Generate(ctx, config.Key.Public, item.Candidate, config.Attack.SamplesPerClass)
	if err != nil {
		return outcome{err: fmt.Errorf("trial %d: %w", item.Trial, err)}
	}
	m, queries, err := timingattack.Measure(ctx, oracle, batches)
	if err != nil {
		return outcome{err: fmt.Errorf("trial %d: %w", item.Trial, err)}
	}

	verdict, err := timingattack.NewTimingClassifier(config.Attack.SignificanceThreshold, config.Attack.EqualityTolerance).
		WithUnit(config.Attack.Unit).
		Classify(m)
	if err != nil {
		return outcome{err: fmt.Errorf("trial %d: %w", item.Trial, err)}
	}

	trueBit := uint(0)
	if item.Want == timingattack.BitOne {
		trueBit = 1
	}
	return outcome{
		decision: verdict.Decision,
		want:     item.Want,
		sep:      [2]float64{verdict.Separation(trueBit), verdict.Separation(1 - trueBit)},
		queries:  queries,
	}
}

// Prefixes lists every round of a search for d whose outcome is decidable:
// the candidate d >> s and its next bit, for every s whose following
// squaring exists in the real exponentiation.
func Prefixes(d *big.Int) ([]WorkItem, error) {
	if d == nil || d.BitLen() < 3 {
		return nil, fmt.Errorf("%w: exponent needs at least 3 bits", timingattack.ErrInvalidConfig)
	}
	var items []WorkItem
	for shift := d.BitLen() - 1; shift >= 2; shift-- {
		want := timingattack.BitZero
		if d.Bit(shift-1) == 1 {
			want = timingattack.BitOne
		}
		items = append(items, WorkItem{
			Candidate: new(big.Int).Rsh(d, uint(shift)),
			Want:      want,
		})
	}
	return items, nil
}
