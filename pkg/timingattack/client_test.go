package timingattack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticClockConfig() ClockConfig {
	return ClockConfig{Synthetic: true, Base: 10 * time.Microsecond, Penalty: time.Microsecond}
}

func TestClient_AttackKey(t *testing.T) {
	pair := fixtureKey(t)
	rounds := 0

	client := NewClient().
		WithConfig(endToEndConfig()).
		WithClock(syntheticClockConfig()).
		WithKeyProvider(&StaticKeyProvider{Pair: pair}).
		WithRandom(NewSeededRandom(2024)).
		WithObserver(ObserverFunc(func(RoundEvent) { rounds++ }))

	report, err := client.Attack(testContext(t), 16)
	if err != nil {
		t.Fatalf("Failed to attack key: %v", err)
	}

	require.NotNil(t, report.Result)
	assert.True(t, report.Correct, "status %s, exponent %v", report.Result.Status, report.Result.Exponent)
	assert.Same(t, pair, report.Key)
	assert.Equal(t, report.Result.Rounds, rounds)

	t.Logf("Recovered d = %s in %d rounds", report.Result.Exponent, report.Result.Rounds)
}

func TestClient_BlindedAttackFails(t *testing.T) {
	pair := fixtureKey(t)
	config := endToEndConfig()
	config.SamplesPerClass = 16
	config.MaxBacktracks = 4
	config.Blinding = true

	client := NewClient().
		WithConfig(config).
		WithClock(syntheticClockConfig()).
		WithRandom(NewSeededRandom(5))

	oracle, err := client.NewOracle(pair)
	require.NoError(t, err)
	assert.True(t, oracle.Blinded())

	report, err := client.AttackKey(testContext(t), pair)
	require.NoError(t, err)
	assert.Equal(t, Failed, report.Result.Status)
	assert.False(t, report.Correct)
	assert.Equal(t, 4, report.Result.Backtracks)
}

func TestClient_Errors(t *testing.T) {
	_, err := NewClient().Attack(testContext(t), MinKeyBits-2)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient().AttackKey(testContext(t), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	config := DefaultAttackConfig()
	config.ProbeCiphertexts = 0
	_, err = NewClient().WithConfig(config).AttackKey(testContext(t), fixtureKey(t))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
