package timingattack

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// SearchState is the mutable state of one key recovery run.
// Backtracks never exceeds MaxBacktracks.
type SearchState struct {
	Candidate     *big.Int
	Backtracks    int
	MaxBacktracks int
	Round         int
	Queries       int
	Status        Status
}

// NewSearchState creates a state holding only the implicit leading 1.
func NewSearchState(maxBacktracks int) *SearchState {
	return &SearchState{
		Candidate:     big.NewInt(1),
		MaxBacktracks: maxBacktracks,
		Status:        Searching,
	}
}

// KeyRecoverySearch recovers the private exponent behind an oracle one bit
// at a time, backtracking when a round cannot be decided.
type KeyRecoverySearch struct {
	oracle     Oracle
	config     AttackConfig
	random     RandomSource
	generator  *CandidateSetGenerator
	classifier *TimingClassifier
	observer   ProgressObserver
	runID      string
}

// NewKeyRecoverySearch creates a search against oracle.
//
// Args:
//   - oracle: The timed decryption service under attack
//   - config: Attack parameters, validated here
//
// Returns:
//   - A search drawing from crypto/rand with a fresh run ID
//   - An error wrapping ErrInvalidConfig if config is rejected
func NewKeyRecoverySearch(oracle Oracle, config AttackConfig) (*KeyRecoverySearch, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: nil oracle", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s := &KeyRecoverySearch{
		oracle:     oracle,
		config:     config,
		classifier: NewTimingClassifier(config.SignificanceThreshold, config.EqualityTolerance).WithUnit(config.Unit),
		observer:   NoopObserver{},
		runID:      uuid.New().String(),
	}
	s.WithRandom(CryptoRandom{})
	return s, nil
}

// WithRandom sets the source of sampled and probe ciphertexts.
func (s *KeyRecoverySearch) WithRandom(random RandomSource) *KeyRecoverySearch {
	s.random = random
	s.generator = NewCandidateSetGenerator(random).WithMaxDraws(s.config.MaxDraws)
	return s
}

// WithObserver sets the receiver of round events. Pass nil to discard them.
func (s *KeyRecoverySearch) WithObserver(observer ProgressObserver) *KeyRecoverySearch {
	if observer == nil {
		observer = NoopObserver{}
	}
	s.observer = observer
	return s
}

// WithRunID overrides the generated run identifier.
func (s *KeyRecoverySearch) WithRunID(id string) *KeyRecoverySearch {
	s.runID = id
	return s
}

// RunID returns the identifier attached to every round event.
func (s *KeyRecoverySearch) RunID() string {
	return s.runID
}

// Run steps a fresh search until it cracks the key or exhausts its
// backtrack budget. A Failed result is returned without an error.
func (s *KeyRecoverySearch) Run(ctx context.Context) (*RecoveryResult, error) {
	start := time.Now()
	state := NewSearchState(s.config.MaxBacktracks)

	for !state.Status.Terminal() {
		if _, err := s.Step(ctx, state); err != nil {
			return nil, fmt.Errorf("failed at round %d: %w", state.Round+1, err)
		}
	}

	result := &RecoveryResult{
		RunID:      s.runID,
		Status:     state.Status,
		Candidate:  new(big.Int).Set(state.Candidate),
		Rounds:     state.Round,
		Backtracks: state.Backtracks,
		Queries:    state.Queries,
		Elapsed:    time.Since(start),
	}
	if state.Status == Cracked {
		result.Exponent = new(big.Int).Set(state.Candidate)
	}
	return result, nil
}

// Step executes one round on state: generate the four classes at the
// current candidate, measure them through the oracle, classify, extend or
// backtrack, then probe whether one more bit completes the exponent.
//
// An error leaves state as it was before the round, except for Queries.
// Stepping a terminal state returns ErrSearchFinished.
func (s *KeyRecoverySearch) Step(ctx context.Context, state *SearchState) (Verdict, error) {
	if state == nil {
		return Verdict{}, fmt.Errorf("%w: nil search state", ErrInvalidConfig)
	}
	if state.Status.Terminal() {
		return Verdict{}, ErrSearchFinished
	}

	pub := s.oracle.PublicKey()
	batches, err := s.generator.Generate(ctx, pub, state.Candidate, s.config.SamplesPerClass)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to generate ciphertext classes: %w", err)
	}

	measurements, queries, err := Measure(ctx, s.oracle, batches)
	state.Queries += queries
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to measure ciphertext classes: %w", err)
	}

	verdict, err := s.classifier.Classify(measurements)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to classify round: %w", err)
	}

	next := new(big.Int).Set(state.Candidate)
	backtracking := false
	switch verdict.Decision {
	case BitZero:
		next.Lsh(next, 1)
	case BitOne:
		next.Lsh(next, 1)
		next.SetBit(next, 0, 1)
	default:
		backtracking = true
		// The implicit leading 1 is never dropped.
		if next.Cmp(bigOne) > 0 {
			next.Rsh(next, 1)
		}
	}

	// The exponent length is unknown, so every round tests whether one
	// more bit finishes it.
	var cracked *big.Int
	for bit := uint(0); bit <= 1 && cracked == nil; bit++ {
		guess := new(big.Int).Lsh(next, 1)
		guess.SetBit(guess, 0, bit)
		ok, queries, err := ProbeExponent(s.oracle, s.random, guess, s.config.ProbeCiphertexts)
		state.Queries += queries
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to probe exponent: %w", err)
		}
		if ok {
			cracked = guess
		}
	}

	state.Round++
	if backtracking {
		state.Backtracks++
	}
	state.Candidate = next
	switch {
	case cracked != nil:
		state.Candidate = cracked
		state.Status = Cracked
	case state.Backtracks >= state.MaxBacktracks:
		state.Status = Failed
	}

	s.observer.OnRound(RoundEvent{
		Timestamp:    time.Now(),
		RunID:        s.runID,
		Round:        state.Round,
		Decision:     verdict.Decision,
		Candidate:    new(big.Int).Set(state.Candidate),
		Backtracking: backtracking,
		Backtracks:   state.Backtracks,
		Status:       state.Status,
		MeanExtra:    verdict.MeanExtra,
		MeanNoExtra:  verdict.MeanNoExtra,
		Queries:      state.Queries,
	})

	return verdict, nil
}

// Measure decrypts every ciphertext of batches once; each call yields
// exactly one sample in the class the ciphertext was drawn for. It returns
// the number of oracle calls made, also on error.
func Measure(ctx context.Context, oracle Oracle, batches Batches) (Measurements, int, error) {
	var m Measurements
	queries := 0
	for class, batch := range batches {
		m[class] = make([]TimingSample, 0, len(batch))
		for _, c := range batch {
			if err := ctx.Err(); err != nil {
				return Measurements{}, queries, err
			}
			dec, err := oracle.Decrypt(c)
			queries++
			if err != nil {
				return Measurements{}, queries, fmt.Errorf("%s: %w", Class(class), err)
			}
			m[class] = append(m[class], TimingSample{
				Ciphertext: c,
				Duration:   dec.Elapsed,
				Reductions: dec.Reductions,
			})
		}
	}
	return m, queries, nil
}

// ProbeExponent decrypts n fresh ciphertexts through the oracle and under
// guess, and reports whether every plaintext matched. It stops at the first
// mismatch and returns the number of oracle calls made.
func ProbeExponent(oracle Oracle, random RandomSource, guess *big.Int, n int) (bool, int, error) {
	if n <= 0 {
		return false, 0, fmt.Errorf("%w: probe needs at least one ciphertext", ErrInvalidConfig)
	}
	pub := oracle.PublicKey()
	queries := 0
	for i := 0; i < n; i++ {
		c, err := DrawCiphertext(random, pub.N, 0)
		if err != nil {
			return false, queries, err
		}
		dec, err := oracle.Decrypt(c)
		queries++
		if err != nil {
			return false, queries, err
		}
		want := new(big.Int).Exp(c, guess, pub.N)
		if dec.Plaintext.Cmp(want) != 0 {
			return false, queries, nil
		}
	}
	return true, queries, nil
}
