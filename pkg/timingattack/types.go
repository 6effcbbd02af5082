package timingattack

import (
	"fmt"
	"math/big"
	"time"
)

// PublicKey is the part of an RSA key the attacker knows.
// Functions in this package never mutate the integers it points to.
type PublicKey struct {
	N *big.Int // Modulus
	E *big.Int // Public exponent
}

// SecretKey is owned by the decryption oracle. The attacker side only ever
// sees it through the Oracle interface, which does not expose D.
type SecretKey struct {
	PublicKey
	D *big.Int // Private exponent
}

// KeyPair is a full RSA key as produced by a KeyProvider.
type KeyPair struct {
	Public PublicKey
	Secret SecretKey
	P      *big.Int
	Q      *big.Int
}

// Class identifies one of the four ciphertext batches built every round:
// the hypothesized next exponent bit crossed with whether an extra
// reduction is predicted at the following squaring.
type Class int

const (
	Hyp0Extra Class = iota
	Hyp0NoExtra
	Hyp1Extra
	Hyp1NoExtra
)

// NumClasses is the number of batches per round.
const NumClasses = 4

// ClassOf returns the class for a hypothesized bit and reduction prediction.
func ClassOf(bit uint, extra bool) Class {
	c := Class(2 * (bit & 1))
	if !extra {
		c++
	}
	return c
}

// Bit returns the hypothesized next bit of the class.
func (c Class) Bit() uint {
	return uint(c) / 2
}

// Extra reports whether the class predicts an extra reduction.
func (c Class) Extra() bool {
	return c%2 == 0
}

// String returns the class name.
func (c Class) String() string {
	if c < 0 || c >= NumClasses {
		return fmt.Sprintf("class(%d)", int(c))
	}
	if c.Extra() {
		return fmt.Sprintf("hyp%d_extra", c.Bit())
	}
	return fmt.Sprintf("hyp%d_noextra", c.Bit())
}

// Batches holds the ciphertexts of one round, indexed by Class.
type Batches [NumClasses][]*big.Int

// Full reports whether every class holds at least n ciphertexts.
func (b *Batches) Full(n int) bool {
	for _, batch := range b {
		if len(batch) < n {
			return false
		}
	}
	return true
}

// Sizes returns the current length of every class.
func (b *Batches) Sizes() [NumClasses]int {
	var sizes [NumClasses]int
	for i, batch := range b {
		sizes[i] = len(batch)
	}
	return sizes
}

// TimingSample is one measured oracle call.
type TimingSample struct {
	Ciphertext *big.Int
	Duration   time.Duration
	Reductions int // Diagnostic only; the attack decides on Duration
}

// Measurements holds the timing samples of one round, indexed by Class.
type Measurements [NumClasses][]TimingSample

// Decision is the classifier output for one round.
type Decision int

const (
	// Ambiguous means neither or both hypotheses separated; the previous
	// bit is probably wrong.
	Ambiguous Decision = iota
	// BitZero means the next exponent bit is 0.
	BitZero
	// BitOne means the next exponent bit is 1.
	BitOne
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Ambiguous:
		return "ambiguous"
	case BitZero:
		return "bit0"
	case BitOne:
		return "bit1"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Status is the state of a key recovery search.
type Status int

const (
	Searching Status = iota
	Cracked
	Failed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Searching:
		return "searching"
	case Cracked:
		return "cracked"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the search has finished.
func (s Status) Terminal() bool {
	return s == Cracked || s == Failed
}

// RecoveryResult summarizes a finished search.
type RecoveryResult struct {
	RunID      string        // Identifier shared by all round events of the run
	Status     Status        // Cracked or Failed
	Exponent   *big.Int      // Recovered private exponent, nil unless Cracked
	Candidate  *big.Int      // Last candidate prefix
	Rounds     int           // Rounds executed
	Backtracks int           // Ambiguous rounds
	Queries    int           // Oracle calls, probes included
	Elapsed    time.Duration // Wall time of the whole search
}
