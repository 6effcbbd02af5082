package timingattack

import (
	"fmt"
	"math/big"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// ExpResult is the outcome of an instrumented exponentiation.
type ExpResult struct {
	Value           *big.Int // base^exponent mod modulus
	ExtraReductions int      // Products that reached the modulus and had to be reduced
	HighBits        int      // Multiply steps, i.e. set exponent bits after the leading one
}

// Exponentiate computes base^exponent mod modulus with left-to-right
// square-and-multiply, counting extra reductions.
//
// The leading exponent bit is implicit: the accumulator starts at base and
// scanning begins at the second most significant bit. Every square and
// every multiply is reduced only when the product is >= modulus, and each
// such reduction is counted. This conditional subtraction is the event the
// timing attack observes.
//
// Args:
//   - base: Value to exponentiate. Values outside [0, modulus) are normalized first
//   - modulus: Must be greater than 1
//   - exponent: Must be non-negative
//
// Returns:
//   - ExpResult, or an error wrapping ErrInvalidConfig for bad inputs
func Exponentiate(base, modulus, exponent *big.Int) (ExpResult, error) {
	if modulus == nil || modulus.Cmp(bigOne) <= 0 {
		return ExpResult{}, fmt.Errorf("%w: modulus must be greater than 1", ErrInvalidConfig)
	}
	if exponent == nil || exponent.Sign() < 0 {
		return ExpResult{}, fmt.Errorf("%w: exponent must be non-negative", ErrInvalidConfig)
	}
	if base == nil {
		return ExpResult{}, fmt.Errorf("%w: base is nil", ErrInvalidConfig)
	}

	var res ExpResult
	if exponent.Sign() == 0 {
		res.Value = big.NewInt(1)
		return res, nil
	}

	c := new(big.Int).Set(base)
	if c.Sign() < 0 {
		c.Mod(c, modulus)
	} else if reduce(c, modulus) {
		res.ExtraReductions++
	}

	x := new(big.Int).Set(c)
	for i := exponent.BitLen() - 2; i >= 0; i-- {
		x.Mul(x, x)
		if reduce(x, modulus) {
			res.ExtraReductions++
		}
		if exponent.Bit(i) == 1 {
			x.Mul(x, c)
			if reduce(x, modulus) {
				res.ExtraReductions++
			}
			res.HighBits++
		}
	}

	res.Value = x
	return res, nil
}

// reduce replaces v with v mod modulus when v >= modulus and reports
// whether it did.
func reduce(v, modulus *big.Int) bool {
	if v.Cmp(modulus) < 0 {
		return false
	}
	v.Mod(v, modulus)
	return true
}
