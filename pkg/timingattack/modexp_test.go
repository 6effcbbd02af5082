package timingattack

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func TestExponentiate_MatchesBigIntExp(t *testing.T) {
	random := NewSeededRandom(7)
	moduli := []int64{2, 3, 97, 40633, 65521, 1 << 40}

	for _, m := range moduli {
		modulus := big.NewInt(m)
		for i := 0; i < 200; i++ {
			base, err := random.Uniform(big.NewInt(-m), big.NewInt(3*m))
			require.NoError(t, err)
			exponent, err := random.Uniform(big.NewInt(0), big.NewInt(1<<20))
			require.NoError(t, err)

			res, err := Exponentiate(base, modulus, exponent)
			require.NoError(t, err)

			want := new(big.Int).Mod(base, modulus)
			want.Exp(want, exponent, modulus)
			if res.Value.Cmp(want) != 0 {
				t.Fatalf("%s^%s mod %s: got %s, expected %s", base, exponent, modulus, res.Value, want)
			}
		}
	}
}

func TestExponentiate_CountsReductions(t *testing.T) {
	tests := []struct {
		name       string
		base       int64
		modulus    int64
		exponent   int64
		value      int64
		reductions int
		highBits   int
	}{
		// 3^5 mod 7: x=3, square 9 -> 2 (reduced), square 4, multiply 12 -> 5 (reduced)
		{name: "square and multiply", base: 3, modulus: 7, exponent: 5, value: 5, reductions: 2, highBits: 1},
		{name: "base above modulus", base: 10, modulus: 7, exponent: 1, value: 3, reductions: 1},
		{name: "negative base", base: -4, modulus: 7, exponent: 2, value: 2, reductions: 1},
		{name: "no reduction", base: 2, modulus: 1000, exponent: 7, value: 128, reductions: 0, highBits: 2},
		{name: "zero exponent", base: 5, modulus: 7, exponent: 0, value: 1},
		{name: "zero exponent base above modulus", base: 9, modulus: 7, exponent: 0, value: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Exponentiate(big.NewInt(tt.base), big.NewInt(tt.modulus), big.NewInt(tt.exponent))
			require.NoError(t, err)
			assert.Equal(t, tt.value, res.Value.Int64())
			assert.Equal(t, tt.reductions, res.ExtraReductions)
			assert.Equal(t, tt.highBits, res.HighBits)
		})
	}
}

func TestExponentiate_DoesNotMutateInputs(t *testing.T) {
	base, modulus, exponent := big.NewInt(12345), big.NewInt(40633), big.NewInt(40077)
	_, err := Exponentiate(base, modulus, exponent)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), base.Int64())
	assert.Equal(t, int64(40633), modulus.Int64())
	assert.Equal(t, int64(40077), exponent.Int64())
}

func TestExponentiate_InvalidInputs(t *testing.T) {
	tests := []struct {
		name                     string
		base, modulus, exponent *big.Int
	}{
		{name: "modulus one", base: big.NewInt(2), modulus: big.NewInt(1), exponent: big.NewInt(3)},
		{name: "modulus zero", base: big.NewInt(2), modulus: big.NewInt(0), exponent: big.NewInt(3)},
		{name: "negative exponent", base: big.NewInt(2), modulus: big.NewInt(7), exponent: big.NewInt(-1)},
		{name: "nil base", base: nil, modulus: big.NewInt(7), exponent: big.NewInt(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Exponentiate(tt.base, tt.modulus, tt.exponent)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
