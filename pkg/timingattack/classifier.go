package timingattack

import (
	"fmt"
	"math"
	"time"
)

// TimingClassifier turns the measured classes of a round into a decision.
type TimingClassifier struct {
	// SignificanceThreshold is the minimum mean gap, in Unit, between the
	// extra and no-extra classes of the hypothesis being accepted.
	SignificanceThreshold float64

	// EqualityTolerance is the largest mean gap, in Unit, the rejected
	// hypothesis may show.
	EqualityTolerance float64

	// Unit converts durations to the float scale the thresholds use.
	Unit time.Duration
}

// NewTimingClassifier creates a classifier measuring in microseconds.
func NewTimingClassifier(significance, tolerance float64) *TimingClassifier {
	return &TimingClassifier{
		SignificanceThreshold: significance,
		EqualityTolerance:     tolerance,
		Unit:                  time.Microsecond,
	}
}

// WithUnit sets the duration unit of the thresholds.
func (c *TimingClassifier) WithUnit(unit time.Duration) *TimingClassifier {
	c.Unit = unit
	return c
}

// Verdict is a decision with the class means it was based on.
type Verdict struct {
	Decision    Decision
	MeanExtra   [2]float64 // Per hypothesized bit, in Unit
	MeanNoExtra [2]float64 // Per hypothesized bit, in Unit
}

// Separation returns mean_extra - mean_noextra for the hypothesized bit.
func (v Verdict) Separation(bit uint) float64 {
	return v.MeanExtra[bit&1] - v.MeanNoExtra[bit&1]
}

// Classify compares the class means of both hypotheses.
//
// BitZero when hypothesis 0 separates by more than SignificanceThreshold
// while hypothesis 1 stays within EqualityTolerance, BitOne symmetrically,
// Ambiguous otherwise.
func (c *TimingClassifier) Classify(m Measurements) (Verdict, error) {
	if c.Unit <= 0 {
		return Verdict{}, fmt.Errorf("%w: classifier unit must be positive", ErrInvalidConfig)
	}

	var v Verdict
	for bit := uint(0); bit <= 1; bit++ {
		extra, err := Mean(m[ClassOf(bit, true)], c.Unit)
		if err != nil {
			return Verdict{}, fmt.Errorf("%s: %w", ClassOf(bit, true), err)
		}
		noExtra, err := Mean(m[ClassOf(bit, false)], c.Unit)
		if err != nil {
			return Verdict{}, fmt.Errorf("%s: %w", ClassOf(bit, false), err)
		}
		v.MeanExtra[bit] = extra
		v.MeanNoExtra[bit] = noExtra
	}

	sep0, sep1 := v.Separation(0), v.Separation(1)
	switch {
	case sep0 > c.SignificanceThreshold && math.Abs(sep1) < c.EqualityTolerance:
		v.Decision = BitZero
	case sep1 > c.SignificanceThreshold && math.Abs(sep0) < c.EqualityTolerance:
		v.Decision = BitOne
	default:
		v.Decision = Ambiguous
	}
	return v, nil
}

// Mean returns the average duration of samples expressed in unit.
func Mean(samples []TimingSample, unit time.Duration) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: no samples", ErrInvalidConfig)
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s.Duration) / float64(unit)
	}
	return sum / float64(len(samples)), nil
}
