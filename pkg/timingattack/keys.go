package timingattack

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultPublicExponent is the public exponent used for generated keys.
const DefaultPublicExponent = 65537

// MinKeyBits is the smallest modulus size PrimeKeyProvider generates.
const MinKeyBits = 10

// KeyProvider produces RSA key pairs.
type KeyProvider interface {
	// Generate returns a fresh key pair whose modulus has the given bit length.
	Generate(bits int) (*KeyPair, error)
}

// PrimeKeyProvider generates textbook RSA keys from two random primes of
// bits/2 bits each. The keys are deliberately tiny-friendly and are not
// meant for real use.
type PrimeKeyProvider struct {
	E           int64 // Public exponent (DefaultPublicExponent when zero)
	MaxAttempts int   // Prime pair attempts before giving up (100 when zero)
}

// NewPrimeKeyProvider creates a PrimeKeyProvider with default settings.
func NewPrimeKeyProvider() *PrimeKeyProvider {
	return &PrimeKeyProvider{E: DefaultPublicExponent, MaxAttempts: 100}
}

// Generate implements KeyProvider.
func (p *PrimeKeyProvider) Generate(bits int) (*KeyPair, error) {
	if bits < MinKeyBits {
		return nil, fmt.Errorf("%w: key size must be at least %d bits, got %d", ErrInvalidConfig, MinKeyBits, bits)
	}
	e := p.E
	if e == 0 {
		e = DefaultPublicExponent
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 100
	}

	primeBits := bits / 2
	for i := 0; i < attempts; i++ {
		prime1, err := rand.Prime(rand.Reader, primeBits)
		if err != nil {
			return nil, fmt.Errorf("%w: generating prime: %v", ErrEnvironment, err)
		}
		prime2, err := rand.Prime(rand.Reader, bits-primeBits)
		if err != nil {
			return nil, fmt.Errorf("%w: generating prime: %v", ErrEnvironment, err)
		}
		if prime1.Cmp(prime2) == 0 {
			continue
		}
		pair, err := NewKeyPair(prime1, prime2, big.NewInt(e))
		if err != nil {
			// gcd(e, phi) != 1 or a degenerate private exponent
			continue
		}
		return pair, nil
	}
	return nil, fmt.Errorf("%w: no usable %d-bit key after %d attempts", ErrEnvironment, bits, attempts)
}

// StaticKeyProvider always hands out the same key pair, for reproducible
// runs against a fixed victim.
type StaticKeyProvider struct {
	Pair *KeyPair
}

// Generate implements KeyProvider. A non-zero bits must match the modulus size.
func (p *StaticKeyProvider) Generate(bits int) (*KeyPair, error) {
	if p.Pair == nil {
		return nil, fmt.Errorf("%w: static key provider has no key", ErrInvalidConfig)
	}
	if bits != 0 && p.Pair.Public.N.BitLen() != bits {
		return nil, fmt.Errorf("%w: static key has %d bits, %d requested", ErrInvalidConfig, p.Pair.Public.N.BitLen(), bits)
	}
	return p.Pair, nil
}

// NewKeyPair derives an RSA key pair from two distinct primes and a public
// exponent. The private exponent is e^-1 mod (p-1)(q-1).
func NewKeyPair(p, q, e *big.Int) (*KeyPair, error) {
	if p == nil || q == nil || e == nil {
		return nil, fmt.Errorf("%w: p, q and e are required", ErrInvalidConfig)
	}
	if !p.ProbablyPrime(20) || !q.ProbablyPrime(20) {
		return nil, fmt.Errorf("%w: p and q must be prime", ErrInvalidConfig)
	}
	if p.Cmp(q) == 0 {
		return nil, fmt.Errorf("%w: p and q must differ", ErrInvalidConfig)
	}
	if e.Cmp(bigOne) <= 0 {
		return nil, fmt.Errorf("%w: public exponent must be greater than 1", ErrInvalidConfig)
	}

	pMinusOne := new(big.Int).Sub(p, bigOne)
	qMinusOne := new(big.Int).Sub(q, bigOne)
	phi := new(big.Int).Mul(pMinusOne, qMinusOne)

	d := new(big.Int).ModInverse(e, phi)
	if d == nil {
		return nil, fmt.Errorf("%w: public exponent %s is not invertible modulo phi", ErrInvalidConfig, e)
	}
	if d.Cmp(bigOne) <= 0 {
		return nil, fmt.Errorf("%w: degenerate private exponent", ErrInvalidConfig)
	}

	n := new(big.Int).Mul(p, q)
	pub := PublicKey{N: n, E: new(big.Int).Set(e)}
	return &KeyPair{
		Public: pub,
		Secret: SecretKey{PublicKey: pub, D: d},
		P:      new(big.Int).Set(p),
		Q:      new(big.Int).Set(q),
	}, nil
}

// Validate checks that the pair is internally consistent: N = P·Q when the
// primes are known, and e·d ≡ 1 modulo lcm(P-1, Q-1).
func (k *KeyPair) Validate() error {
	if k == nil || k.Public.N == nil || k.Public.E == nil || k.Secret.D == nil {
		return fmt.Errorf("%w: incomplete key pair", ErrInvalidConfig)
	}
	if k.Public.N.Cmp(bigOne) <= 0 {
		return fmt.Errorf("%w: modulus must be greater than 1", ErrInvalidConfig)
	}
	if k.Secret.D.Sign() < 0 {
		return fmt.Errorf("%w: private exponent must be non-negative", ErrInvalidConfig)
	}
	if k.Secret.N == nil || k.Secret.N.Cmp(k.Public.N) != 0 {
		return fmt.Errorf("%w: secret and public modulus differ", ErrInvalidConfig)
	}
	if k.P == nil || k.Q == nil {
		return nil
	}
	if new(big.Int).Mul(k.P, k.Q).Cmp(k.Public.N) != 0 {
		return fmt.Errorf("%w: N is not P*Q", ErrInvalidConfig)
	}
	pMinusOne := new(big.Int).Sub(k.P, bigOne)
	qMinusOne := new(big.Int).Sub(k.Q, bigOne)
	gcd := new(big.Int).GCD(nil, nil, pMinusOne, qMinusOne)
	lambda := new(big.Int).Mul(pMinusOne, qMinusOne)
	lambda.Div(lambda, gcd)
	ed := new(big.Int).Mul(k.Public.E, k.Secret.D)
	if ed.Mod(ed, lambda).Cmp(bigOne) != 0 {
		return fmt.Errorf("%w: e*d is not 1 modulo lambda(N)", ErrInvalidConfig)
	}
	return nil
}
