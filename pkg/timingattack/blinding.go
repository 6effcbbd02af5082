package timingattack

import (
	"fmt"
	"math/big"
)

// Blinding is the RSA blinding countermeasure. Every ciphertext is
// multiplied by r^e for a fresh random r before decryption and the result
// is multiplied by r^-1 afterwards, so the exponentiation runs on a value
// the attacker cannot predict.
type Blinding struct {
	key         PublicKey
	random      RandomSource
	maxAttempts int
}

// NewBlinding creates a Blinding for key drawing factors from random.
func NewBlinding(key PublicKey, random RandomSource) *Blinding {
	if random == nil {
		random = CryptoRandom{}
	}
	return &Blinding{key: key, random: random, maxAttempts: DefaultDrawAttempts}
}

// WithMaxAttempts caps the draws spent looking for a factor coprime to N.
func (b *Blinding) WithMaxAttempts(n int) *Blinding {
	b.maxAttempts = n
	return b
}

// Blind returns c·r^e mod N and r^-1 mod N for a freshly drawn r.
// A factor is never reused across calls.
func (b *Blinding) Blind(c *big.Int) (blinded, rInv *big.Int, err error) {
	n := b.key.N
	r, err := DrawCoprime(b.random, bigTwo, n, n, b.maxAttempts)
	if err != nil {
		return nil, nil, err
	}
	rInv = new(big.Int).ModInverse(r, n)
	if rInv == nil {
		return nil, nil, fmt.Errorf("%w: blinding factor %s has no inverse", ErrEnvironment, r)
	}

	factor := new(big.Int).Exp(r, b.key.E, n)
	blinded = new(big.Int).Mul(c, factor)
	blinded.Mod(blinded, n)
	return blinded, rInv, nil
}

// Unblind returns x·rInv mod N.
func (b *Blinding) Unblind(x, rInv *big.Int) *big.Int {
	out := new(big.Int).Mul(x, rInv)
	return out.Mod(out, b.key.N)
}
