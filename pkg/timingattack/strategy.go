package timingattack

import (
	"fmt"
	"time"
)

// AttackConfig holds the tunable parameters of a key recovery run.
type AttackConfig struct {
	// SamplesPerClass is the batch size of each of the four classes.
	// Larger batches lower the false decision rate at a linear query cost.
	SamplesPerClass int

	// MaxBacktracks is the ambiguous-round budget; reaching it fails the run.
	MaxBacktracks int

	// SignificanceThreshold and EqualityTolerance feed the classifier, in Unit.
	SignificanceThreshold float64
	EqualityTolerance     float64

	// Unit is the duration one threshold unit stands for.
	Unit time.Duration

	// ProbeCiphertexts is how many fresh ciphertexts a termination probe
	// decrypts; all must match for the guess to be accepted.
	ProbeCiphertexts int

	// MaxDraws caps the generator per round (0 = sized from the modulus).
	MaxDraws int

	// Blinding turns on the countermeasure in oracles built by Client.
	Blinding bool
}

// DefaultAttackConfig returns the recommended starting point.
func DefaultAttackConfig() AttackConfig {
	return AttackConfig{
		SamplesPerClass:       32,
		MaxBacktracks:         10,
		SignificanceThreshold: 0.5,
		EqualityTolerance:     0.3,
		Unit:                  time.Microsecond,
		ProbeCiphertexts:      1,
		MaxDraws:              0,
	}
}

// Validate rejects parameters the search cannot run with.
func (c AttackConfig) Validate() error {
	if c.SamplesPerClass <= 0 {
		return fmt.Errorf("%w: samples per class must be positive, got %d", ErrInvalidConfig, c.SamplesPerClass)
	}
	if c.MaxBacktracks <= 0 {
		return fmt.Errorf("%w: max backtracks must be positive, got %d", ErrInvalidConfig, c.MaxBacktracks)
	}
	if c.SignificanceThreshold <= 0 || c.EqualityTolerance <= 0 {
		return fmt.Errorf("%w: thresholds must be positive", ErrInvalidConfig)
	}
	// Otherwise both hypotheses could be accepted at once.
	if c.EqualityTolerance > c.SignificanceThreshold {
		return fmt.Errorf("%w: equality tolerance %.3f exceeds significance threshold %.3f",
			ErrInvalidConfig, c.EqualityTolerance, c.SignificanceThreshold)
	}
	if c.Unit <= 0 {
		return fmt.Errorf("%w: unit must be positive", ErrInvalidConfig)
	}
	if c.ProbeCiphertexts <= 0 {
		return fmt.Errorf("%w: probe ciphertexts must be positive, got %d", ErrInvalidConfig, c.ProbeCiphertexts)
	}
	if c.MaxDraws < 0 {
		return fmt.Errorf("%w: max draws must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ClockConfig selects how the oracle times decryptions.
type ClockConfig struct {
	// Synthetic replaces the wall clock with Base + Penalty per reduction.
	Synthetic bool
	Base      time.Duration
	Penalty   time.Duration
	Jitter    time.Duration
}

// DefaultClockConfig returns a wall clock configuration with synthetic
// parameters ready for when Synthetic is switched on.
func DefaultClockConfig() ClockConfig {
	return ClockConfig{
		Synthetic: false,
		Base:      10 * time.Microsecond,
		Penalty:   time.Microsecond,
	}
}

// NewClock builds the configured clock. random feeds the synthetic jitter.
func (c ClockConfig) NewClock(random RandomSource) Clock {
	if !c.Synthetic {
		return WallClock{}
	}
	return &SyntheticClock{
		Base:    c.Base,
		Penalty: c.Penalty,
		Jitter:  c.Jitter,
		Random:  random,
	}
}
