package timingattack

import (
	"fmt"
	"math/big"
	"time"
)

// Decryption is what one oracle call reports. Only Elapsed is information
// a real attacker could observe; Plaintext and Reductions are kept for
// instrumentation and tests.
type Decryption struct {
	Plaintext  *big.Int
	Elapsed    time.Duration
	Reductions int
}

// Oracle is the attacker's view of the victim: the public key and a timed
// decryption service.
type Oracle interface {
	PublicKey() PublicKey
	Decrypt(ciphertext *big.Int) (Decryption, error)
}

// Clock times a single exponentiation.
type Clock interface {
	Measure(op func() (ExpResult, error)) (ExpResult, time.Duration, error)
}

// WallClock measures real elapsed time. time.Now carries a monotonic
// reading, so time.Since is immune to wall clock adjustments.
type WallClock struct{}

// Measure implements Clock.
func (WallClock) Measure(op func() (ExpResult, error)) (ExpResult, time.Duration, error) {
	start := time.Now()
	res, err := op()
	elapsed := time.Since(start)
	return res, elapsed, err
}

// SyntheticClock derives a deterministic duration from the reduction count:
// Base + Penalty per extra reduction, plus optional uniform jitter in
// [0, Jitter) drawn from Random.
type SyntheticClock struct {
	Base    time.Duration
	Penalty time.Duration
	Jitter  time.Duration
	Random  RandomSource
}

// Measure implements Clock.
func (c *SyntheticClock) Measure(op func() (ExpResult, error)) (ExpResult, time.Duration, error) {
	res, err := op()
	if err != nil {
		return res, 0, err
	}
	elapsed := c.Base + time.Duration(res.ExtraReductions)*c.Penalty
	if c.Jitter > 0 {
		if c.Random == nil {
			return res, 0, fmt.Errorf("%w: synthetic jitter needs a random source", ErrInvalidConfig)
		}
		j, err := c.Random.Uniform(new(big.Int), big.NewInt(int64(c.Jitter)))
		if err != nil {
			return res, 0, err
		}
		elapsed += time.Duration(j.Int64())
	}
	return res, elapsed, nil
}

// DecryptionOracle decrypts ciphertexts with the secret exponent using the
// instrumented exponentiation and reports how long each call took.
type DecryptionOracle struct {
	key      SecretKey
	clock    Clock
	blinding *Blinding
}

// NewDecryptionOracle creates an unblinded oracle timed by a WallClock.
func NewDecryptionOracle(key SecretKey) (*DecryptionOracle, error) {
	if key.N == nil || key.N.Cmp(bigOne) <= 0 {
		return nil, fmt.Errorf("%w: modulus must be greater than 1", ErrInvalidConfig)
	}
	if key.D == nil || key.D.Sign() < 0 {
		return nil, fmt.Errorf("%w: private exponent must be non-negative", ErrInvalidConfig)
	}
	return &DecryptionOracle{key: key, clock: WallClock{}}, nil
}

// WithClock sets the clock used to time exponentiations.
func (o *DecryptionOracle) WithClock(clock Clock) *DecryptionOracle {
	o.clock = clock
	return o
}

// WithBlinding enables the blinding countermeasure. Pass nil to disable it.
func (o *DecryptionOracle) WithBlinding(b *Blinding) *DecryptionOracle {
	o.blinding = b
	return o
}

// Blinded reports whether the blinding countermeasure is active.
func (o *DecryptionOracle) Blinded() bool {
	return o.blinding != nil
}

// PublicKey implements Oracle.
func (o *DecryptionOracle) PublicKey() PublicKey {
	return o.key.PublicKey
}

// Decrypt implements Oracle. The clock brackets the exponentiation only.
func (o *DecryptionOracle) Decrypt(ciphertext *big.Int) (Decryption, error) {
	if ciphertext == nil {
		return Decryption{}, fmt.Errorf("%w: nil ciphertext", ErrInvalidConfig)
	}

	input := ciphertext
	var rInv *big.Int
	if o.blinding != nil {
		blinded, inv, err := o.blinding.Blind(ciphertext)
		if err != nil {
			return Decryption{}, fmt.Errorf("failed to blind ciphertext: %w", err)
		}
		input, rInv = blinded, inv
	}

	res, elapsed, err := o.clock.Measure(func() (ExpResult, error) {
		return Exponentiate(input, o.key.N, o.key.D)
	})
	if err != nil {
		return Decryption{}, err
	}

	plaintext := res.Value
	if rInv != nil {
		plaintext = o.blinding.Unblind(plaintext, rInv)
	}

	return Decryption{
		Plaintext:  plaintext,
		Elapsed:    elapsed,
		Reductions: res.ExtraReductions,
	}, nil
}

// Compile-time interface satisfaction checks.
var (
	_ Oracle = (*DecryptionOracle)(nil)
	_ Clock  = WallClock{}
	_ Clock  = (*SyntheticClock)(nil)
)
