package timingattack

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"
)

// DefaultDrawAttempts caps the retry loops of constrained draws.
const DefaultDrawAttempts = 64

// RandomSource supplies uniformly distributed integers.
type RandomSource interface {
	// Uniform returns an integer drawn uniformly from [low, high).
	Uniform(low, high *big.Int) (*big.Int, error)
}

// CryptoRandom draws from crypto/rand. It is safe for concurrent use.
type CryptoRandom struct{}

// Uniform implements RandomSource.
func (CryptoRandom) Uniform(low, high *big.Int) (*big.Int, error) {
	span, err := rangeSpan(low, high)
	if err != nil {
		return nil, err
	}
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, fmt.Errorf("%w: reading crypto/rand: %v", ErrEnvironment, err)
	}
	return n.Add(n, low), nil
}

// SeededRandom is a reproducible RandomSource backed by math/rand.
// It is not safe for concurrent use; give every goroutine its own.
type SeededRandom struct {
	rng *mrand.Rand
}

// NewSeededRandom creates a SeededRandom from a seed.
func NewSeededRandom(seed int64) *SeededRandom {
	return &SeededRandom{rng: mrand.New(mrand.NewSource(seed))}
}

// Uniform implements RandomSource.
func (s *SeededRandom) Uniform(low, high *big.Int) (*big.Int, error) {
	span, err := rangeSpan(low, high)
	if err != nil {
		return nil, err
	}
	n := new(big.Int).Rand(s.rng, span)
	return n.Add(n, low), nil
}

func rangeSpan(low, high *big.Int) (*big.Int, error) {
	if low == nil || high == nil {
		return nil, fmt.Errorf("%w: nil range bound", ErrInvalidConfig)
	}
	span := new(big.Int).Sub(high, low)
	if span.Sign() <= 0 {
		return nil, fmt.Errorf("%w: empty range [%s, %s)", ErrInvalidConfig, low, high)
	}
	return span, nil
}

// DrawCoprime draws from [low, high) until the value is coprime to n.
// After maxAttempts failed draws (DefaultDrawAttempts when <= 0) it gives up
// with an error wrapping ErrEnvironment.
func DrawCoprime(src RandomSource, low, high, n *big.Int, maxAttempts int) (*big.Int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultDrawAttempts
	}
	gcd := new(big.Int)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		r, err := src.Uniform(low, high)
		if err != nil {
			return nil, err
		}
		if gcd.GCD(nil, nil, r, n).Cmp(bigOne) == 0 {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: no value coprime to %s after %d attempts", ErrEnvironment, n, maxAttempts)
}

// DrawCiphertext draws a ciphertext from [0, n) that carries timing
// information: it is coprime to n and its square is not 1 mod n.
// Zero, the idempotents and the square roots of one sit on a fixed point
// of exponentiation, so every guessed exponent decrypts them the same way
// and their reduction pattern never depends on the secret bits.
func DrawCiphertext(src RandomSource, n *big.Int, maxAttempts int) (*big.Int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultDrawAttempts
	}
	zero := new(big.Int)
	gcd := new(big.Int)
	sq := new(big.Int)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		c, err := src.Uniform(zero, n)
		if err != nil {
			return nil, err
		}
		if gcd.GCD(nil, nil, c, n).Cmp(bigOne) != 0 {
			continue
		}
		sq.Mul(c, c)
		if sq.Mod(sq, n).Cmp(bigOne) == 0 {
			continue
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: no informative ciphertext modulo %s after %d attempts", ErrEnvironment, n, maxAttempts)
}
