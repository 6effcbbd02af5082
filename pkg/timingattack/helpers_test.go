package timingattack

import (
	"math/big"
	"testing"
	"time"
)

// Fixture key: p = 227, q = 179, N = 40633, d = 40077 (16 bits).
const (
	fixtureP = 227
	fixtureQ = 179
	fixtureD = 40077
)

func fixtureKey(t *testing.T) *KeyPair {
	t.Helper()
	pair, err := NewKeyPair(big.NewInt(fixtureP), big.NewInt(fixtureQ), big.NewInt(DefaultPublicExponent))
	if err != nil {
		t.Fatalf("Failed to build fixture key: %v", err)
	}
	if pair.Secret.D.Int64() != fixtureD {
		t.Fatalf("Fixture private exponent mismatch. Got: %s, Expected: %d", pair.Secret.D, fixtureD)
	}
	return pair
}

// syntheticOracle times decryptions as 10µs plus penalty per extra reduction.
func syntheticOracle(t *testing.T, pair *KeyPair, penalty time.Duration) *DecryptionOracle {
	t.Helper()
	oracle, err := NewDecryptionOracle(pair.Secret)
	if err != nil {
		t.Fatalf("Failed to create oracle: %v", err)
	}
	return oracle.WithClock(&SyntheticClock{Base: 10 * time.Microsecond, Penalty: penalty})
}

// measureRound generates and measures one round the way the search does.
func measureRound(t *testing.T, oracle Oracle, random RandomSource, candidate *big.Int, samples int) Measurements {
	t.Helper()
	batches, err := NewCandidateSetGenerator(random).Generate(testContext(t), oracle.PublicKey(), candidate, samples)
	if err != nil {
		t.Fatalf("Failed to generate classes: %v", err)
	}
	m, queries, err := Measure(testContext(t), oracle, batches)
	if err != nil {
		t.Fatalf("Failed to measure: %v", err)
	}
	if queries != NumClasses*samples {
		t.Fatalf("Measured %d ciphertexts, expected %d", queries, NumClasses*samples)
	}
	return m
}

// classifyPrefixes classifies every round of d whose following squaring
// exists and counts correct, wrong and ambiguous decisions.
func classifyPrefixes(t *testing.T, oracle Oracle, random RandomSource, d *big.Int, samples int) (correct, wrong, ambiguous int) {
	t.Helper()
	classifier := NewTimingClassifier(0.5, 0.3)
	for shift := d.BitLen() - 1; shift >= 2; shift-- {
		candidate := new(big.Int).Rsh(d, uint(shift))
		want := BitZero
		if d.Bit(shift-1) == 1 {
			want = BitOne
		}
		verdict, err := classifier.Classify(measureRound(t, oracle, random, candidate, samples))
		if err != nil {
			t.Fatalf("Failed to classify: %v", err)
		}
		switch verdict.Decision {
		case want:
			correct++
		case Ambiguous:
			ambiguous++
		default:
			wrong++
		}
	}
	return correct, wrong, ambiguous
}
