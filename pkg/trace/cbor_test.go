package trace

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

func TestEncodeDecodeRoundEvent(t *testing.T) {
	// Candidates outgrow 64 bits on real key sizes.
	candidate, ok := new(big.Int).SetString("1011001110001111000011111000001111110000001111111", 2)
	require.True(t, ok)
	candidate.Lsh(candidate, 40)

	event := roundEvent("run-1", 7, timingattack.BitOne, 0, timingattack.Searching)
	event.Round.Candidate = candidate

	data, err := EncodeEvent(event)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, "run-1", decoded.RunID)
	require.NotNil(t, decoded.Round)
	assert.Nil(t, decoded.Result)
	assert.Equal(t, 0, decoded.Round.Candidate.Cmp(candidate))
	assert.Equal(t, timingattack.BitOne, decoded.Round.Decision)
	assert.Equal(t, event.Round.MeanExtra, decoded.Round.MeanExtra)
	assert.InDelta(t, 1.0, decoded.Round.Separation(0), 1e-9)
}

func TestEncodeDecodeResultEvent(t *testing.T) {
	correct := true
	event := Event{
		Timestamp: time.Now(),
		RunID:     "run-2",
		Category:  CategoryResult,
		Result: &ResultData{
			Status:      timingattack.Cracked,
			Exponent:    big.NewInt(40077),
			Rounds:      17,
			Backtracks:  1,
			Queries:     4400,
			Elapsed:     1500 * time.Millisecond,
			ModulusBits: 16,
			Correct:     &correct,
		},
	}

	data, err := EncodeEvent(event)
	require.NoError(t, err)
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)

	require.NotNil(t, decoded.Result)
	assert.Equal(t, timingattack.Cracked, decoded.Result.Status)
	assert.Equal(t, int64(40077), decoded.Result.Exponent.Int64())
	assert.Nil(t, decoded.Result.Candidate)
	assert.Equal(t, 1500*time.Millisecond, decoded.Result.Elapsed)
	require.NotNil(t, decoded.Result.Correct)
	assert.True(t, *decoded.Result.Correct)
}

func TestEncodeIsDeterministic(t *testing.T) {
	event := roundEvent("run-1", 3, timingattack.BitZero, 0b1001, timingattack.Searching)
	a, err := EncodeEvent(event)
	require.NoError(t, err)
	b, err := EncodeEvent(event)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00})
	assert.Error(t, err)
}
