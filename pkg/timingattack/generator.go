package timingattack

import (
	"context"
	"fmt"
	"math"
	"math/big"
)

// MinModulus is the largest modulus the generator rejects. Below it the
// no-extra classes cannot be filled and rejection sampling never converges.
const MinModulus = 4

// drawsPerRoot scales the automatic draw budget. A uniformly distributed
// residue avoids the next reduction with probability about 1/sqrt(N), so
// each no-extra sample costs sqrt(N) draws on average.
const drawsPerRoot = 16

// ctxCheckInterval is how many draws pass between context checks.
const ctxCheckInterval = 256

// CandidateSetGenerator builds the four ciphertext classes of a round by
// simulating the victim's exponentiation up to the recovered prefix.
type CandidateSetGenerator struct {
	random   RandomSource
	maxDraws int
}

// NewCandidateSetGenerator creates a generator drawing from random.
func NewCandidateSetGenerator(random RandomSource) *CandidateSetGenerator {
	if random == nil {
		random = CryptoRandom{}
	}
	return &CandidateSetGenerator{random: random}
}

// WithMaxDraws caps the ciphertexts drawn per Generate call.
// Zero sizes the budget from the modulus.
func (g *CandidateSetGenerator) WithMaxDraws(n int) *CandidateSetGenerator {
	g.maxDraws = n
	return g
}

// Generate draws random ciphertexts and sorts them into the four classes
// until each holds samplesPerClass entries. The bit-0 classes are filled
// first, then the bit-1 classes from fresh draws; no ciphertext appears in
// more than one class.
//
// For every draw c it computes m = c^candidate mod N, the value the victim
// holds after the recovered prefix, then the next squaring v = m² mod N and,
// under the bit-1 hypothesis, v·c mod N. A class predicts an extra
// reduction when the square of that value reaches N, which is exactly the
// test Exponentiate applies at the following step.
func (g *CandidateSetGenerator) Generate(ctx context.Context, key PublicKey, candidate *big.Int, samplesPerClass int) (Batches, error) {
	if key.N == nil || key.N.Cmp(big.NewInt(MinModulus)) <= 0 {
		return Batches{}, fmt.Errorf("%w: modulus must exceed %d", ErrInvalidConfig, MinModulus)
	}
	if candidate == nil || candidate.Sign() <= 0 {
		return Batches{}, fmt.Errorf("%w: candidate exponent must be positive", ErrInvalidConfig)
	}
	if samplesPerClass <= 0 {
		return Batches{}, fmt.Errorf("%w: samples per class must be positive, got %d", ErrInvalidConfig, samplesPerClass)
	}

	var batches Batches
	for i := range batches {
		batches[i] = make([]*big.Int, 0, samplesPerClass)
	}

	// The classes are disjoint: each hypothesis is filled from its own
	// draws and a ciphertext already placed is never reused.
	used := make(map[string]struct{})
	limit := g.drawLimit(key.N, samplesPerClass)
	draws := 0
	for bit := uint(0); bit <= 1; bit++ {
		extraClass, plainClass := ClassOf(bit, true), ClassOf(bit, false)
		for len(batches[extraClass]) < samplesPerClass || len(batches[plainClass]) < samplesPerClass {
			if draws >= limit {
				return Batches{}, fmt.Errorf("%w: classes not filled after %d draws (sizes %v)", ErrEnvironment, limit, batches.Sizes())
			}
			if draws%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return Batches{}, err
				}
			}
			draws++

			c, err := DrawCiphertext(g.random, key.N, 0)
			if err != nil {
				return Batches{}, err
			}
			id := c.Text(16)
			if _, ok := used[id]; ok {
				continue
			}
			extra, err := Predict(key, candidate, c)
			if err != nil {
				return Batches{}, err
			}
			class := ClassOf(bit, extra[bit])
			if len(batches[class]) < samplesPerClass {
				batches[class] = append(batches[class], c)
				used[id] = struct{}{}
			}
		}
	}

	return batches, nil
}

// Predict reports, for both hypotheses of the bit following candidate,
// whether decrypting c triggers an extra reduction at the next squaring.
func Predict(key PublicKey, candidate, c *big.Int) ([2]bool, error) {
	var extra [2]bool

	res, err := Exponentiate(c, key.N, candidate)
	if err != nil {
		return extra, err
	}

	v := new(big.Int).Mul(res.Value, res.Value)
	v.Mod(v, key.N)
	extra[0] = squareReaches(v, key.N)

	v.Mul(v, c)
	v.Mod(v, key.N)
	extra[1] = squareReaches(v, key.N)

	return extra, nil
}

func squareReaches(v, n *big.Int) bool {
	sq := new(big.Int).Mul(v, v)
	return sq.Cmp(n) >= 0
}

func (g *CandidateSetGenerator) drawLimit(n *big.Int, samplesPerClass int) int {
	if g.maxDraws > 0 {
		return g.maxDraws
	}
	root := new(big.Int).Sqrt(n)
	root.Add(root, bigOne)
	root.Mul(root, big.NewInt(int64(drawsPerRoot)))
	root.Mul(root, big.NewInt(int64(samplesPerClass)))
	if !root.IsInt64() || root.Int64() > math.MaxInt {
		return math.MaxInt
	}
	return int(root.Int64())
}
