package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default config rejected: %v", err)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Overlay(t *testing.T) {
	data := []byte(`
seed: 7
attack:
  samples_per_class: 64
  significance_threshold: 0.6
  unit: 2us
  blinding: true
clock:
  synthetic: true
  penalty: 500ns
key:
  file: key.json
output:
  trace: run.cbor
  log_level: debug
calibration:
  workers: 3
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 64, cfg.Attack.SamplesPerClass)
	assert.Equal(t, 0.6, cfg.Attack.SignificanceThreshold)
	assert.Equal(t, 2*time.Microsecond, cfg.Attack.Unit)
	assert.True(t, cfg.Attack.Blinding)
	assert.True(t, cfg.Clock.Synthetic)
	assert.Equal(t, 500*time.Nanosecond, cfg.Clock.Penalty)
	assert.Equal(t, "key.json", cfg.Key.File)
	assert.Equal(t, "run.cbor", cfg.Output.Trace)
	assert.Equal(t, slog.LevelDebug, cfg.Output.LogLevel)
	assert.Equal(t, 3, cfg.Calibration.Workers)

	// Untouched fields keep their defaults.
	def := Default()
	assert.Equal(t, def.Attack.MaxBacktracks, cfg.Attack.MaxBacktracks)
	assert.Equal(t, def.Attack.EqualityTolerance, cfg.Attack.EqualityTolerance)
	assert.Equal(t, def.Clock.Base, cfg.Clock.Base)
	assert.Equal(t, def.Calibration.Trials, cfg.Calibration.Trials)
}

func TestParse_ExplicitZeroOverrides(t *testing.T) {
	cfg, err := Parse([]byte("attack:\n  max_draws: 0\nclock:\n  penalty: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Attack.MaxDraws)
	assert.Equal(t, time.Duration(0), cfg.Clock.Penalty)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "malformed", data: "attack: [1, 2"},
		{name: "bad duration", data: "attack:\n  unit: fast\n"},
		{name: "duration mapping", data: "clock:\n  base: {a: 1}\n"},
		{name: "tolerance above significance", data: "attack:\n  equality_tolerance: 0.9\n"},
		{name: "small key", data: "key:\n  bits: 4\n"},
		{name: "negative jitter", data: "clock:\n  jitter: -1us\n"},
		{name: "bad level", data: "output:\n  log_level: loud\n"},
		{name: "no trials", data: "calibration:\n  trials: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParse_KeyFileSkipsBits(t *testing.T) {
	cfg, err := Parse([]byte("key:\n  bits: 4\n  file: k.yaml\n"))
	require.NoError(t, err)
	assert.Equal(t, "k.yaml", cfg.Key.File)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "fixtures", "attack.yaml"))
	if err != nil {
		t.Fatalf("Failed to load fixture config: %v", err)
	}
	assert.True(t, cfg.Clock.Synthetic)
	assert.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("attack:\n  samples_per_class: 0\n"), 0o600))
	_, err = Load(bad)
	assert.ErrorIs(t, err, timingattack.ErrInvalidConfig)
}

func TestParseLevel(t *testing.T) {
	for s, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
}
