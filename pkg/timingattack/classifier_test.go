package timingattack

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformClass returns n samples of the same duration.
func uniformClass(n int, d time.Duration) []TimingSample {
	samples := make([]TimingSample, n)
	for i := range samples {
		samples[i] = TimingSample{Duration: d}
	}
	return samples
}

func measurementsOf(h0Extra, h0NoExtra, h1Extra, h1NoExtra time.Duration) Measurements {
	var m Measurements
	m[Hyp0Extra] = uniformClass(8, h0Extra)
	m[Hyp0NoExtra] = uniformClass(8, h0NoExtra)
	m[Hyp1Extra] = uniformClass(8, h1Extra)
	m[Hyp1NoExtra] = uniformClass(8, h1NoExtra)
	return m
}

func TestTimingClassifier_Decisions(t *testing.T) {
	us := time.Microsecond
	tests := []struct {
		name string
		m    Measurements
		want Decision
	}{
		{name: "hypothesis 0 separates", m: measurementsOf(11*us, 10*us, 10*us+100*time.Nanosecond, 10*us), want: BitZero},
		{name: "hypothesis 1 separates", m: measurementsOf(10*us, 10*us, 11*us, 10*us), want: BitOne},
		{name: "neither separates", m: measurementsOf(10*us, 10*us, 10*us, 10*us), want: Ambiguous},
		{name: "both separate", m: measurementsOf(11*us, 10*us, 11*us, 10*us), want: Ambiguous},
		{name: "gap below threshold", m: measurementsOf(10*us+400*time.Nanosecond, 10*us, 10*us, 10*us), want: Ambiguous},
		{name: "negative gap on other side", m: measurementsOf(11*us, 10*us, 10*us, 10*us+500*time.Nanosecond), want: Ambiguous},
	}

	classifier := NewTimingClassifier(0.5, 0.3)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := classifier.Classify(tt.m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict.Decision, "sep0=%.3f sep1=%.3f", verdict.Separation(0), verdict.Separation(1))
		})
	}
}

func TestTimingClassifier_Unit(t *testing.T) {
	m := measurementsOf(11*time.Microsecond, 10*time.Microsecond, 10*time.Microsecond, 10*time.Microsecond)

	// One microsecond is 0.001 milliseconds, far below the threshold.
	verdict, err := NewTimingClassifier(0.5, 0.3).WithUnit(time.Millisecond).Classify(m)
	require.NoError(t, err)
	assert.Equal(t, Ambiguous, verdict.Decision)

	verdict, err = NewTimingClassifier(500, 300).WithUnit(time.Nanosecond).Classify(m)
	require.NoError(t, err)
	assert.Equal(t, BitZero, verdict.Decision)
	assert.InDelta(t, 1000.0, verdict.Separation(0), 1e-9)
}

func TestTimingClassifier_EmptyClass(t *testing.T) {
	m := measurementsOf(10, 10, 10, 10)
	m[Hyp1NoExtra] = nil

	_, err := NewTimingClassifier(0.5, 0.3).Classify(m)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// With timings that encode the extra reduction exactly, every round whose
// next squaring exists is classified as the true bit.
func TestSeparationProperty(t *testing.T) {
	pair := fixtureKey(t)
	oracle := syntheticOracle(t, pair, time.Microsecond)

	var correct, wrong, ambiguous int
	for seed := int64(1); seed <= 3; seed++ {
		c, w, a := classifyPrefixes(t, oracle, NewSeededRandom(seed), pair.Secret.D, 64)
		correct, wrong, ambiguous = correct+c, wrong+w, ambiguous+a
	}

	total := correct + wrong + ambiguous
	t.Logf("Separation: %d/%d correct, %d wrong, %d ambiguous", correct, total, wrong, ambiguous)
	assert.LessOrEqual(t, wrong, 2)
	assert.GreaterOrEqual(t, float64(correct)/float64(total), 0.85)
}

// Blinding decorrelates the oracle's timing from the predicted classes.
func TestBlindingDefeatsSeparation(t *testing.T) {
	pair := fixtureKey(t)
	oracle := syntheticOracle(t, pair, time.Microsecond).
		WithBlinding(NewBlinding(pair.Public, NewSeededRandom(100)))

	var correct, total int
	for seed := int64(1); seed <= 3; seed++ {
		c, w, a := classifyPrefixes(t, oracle, NewSeededRandom(seed), pair.Secret.D, 64)
		correct += c
		total += c + w + a
	}

	rate := float64(correct) / float64(total)
	t.Logf("Blinded accuracy: %d/%d", correct, total)
	assert.Less(t, rate, 0.6)
}

// With jittered timings some blinded rounds clear the thresholds by chance.
// Those decisions must be no better than a coin flip.
func TestBlindingDecisionsAreCoinFlips(t *testing.T) {
	pair := fixtureKey(t)
	oracle, err := NewDecryptionOracle(pair.Secret)
	if err != nil {
		t.Fatalf("Failed to create oracle: %v", err)
	}
	oracle.WithClock(&SyntheticClock{
		Base:    10 * time.Microsecond,
		Penalty: time.Microsecond,
		Jitter:  4 * time.Microsecond,
		Random:  NewSeededRandom(300),
	}).WithBlinding(NewBlinding(pair.Public, NewSeededRandom(301)))

	random := NewSeededRandom(302)
	var correct, wrong, ambiguous int
	for rep := 0; rep < 30; rep++ {
		c, w, a := classifyPrefixes(t, oracle, random, pair.Secret.D, 8)
		correct, wrong, ambiguous = correct+c, wrong+w, ambiguous+a
	}

	decided := correct + wrong
	t.Logf("Blinded jittered rounds: %d decided (%d correct), %d ambiguous", decided, correct, ambiguous)
	require.GreaterOrEqual(t, decided, 30, "too few decided rounds to judge accuracy")

	// 3.5 standard deviations of a fair binomial.
	accuracy := float64(correct) / float64(decided)
	halfWidth := 3.5 * 0.5 / math.Sqrt(float64(decided))
	assert.InDelta(t, 0.5, accuracy, halfWidth)
}

func TestMean(t *testing.T) {
	samples := []TimingSample{{Duration: time.Microsecond}, {Duration: 3 * time.Microsecond}}
	mean, err := Mean(samples, time.Microsecond)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mean, 1e-12)

	_, err = Mean(nil, time.Microsecond)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
