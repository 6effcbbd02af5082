// Package config loads run settings for the recovery tool from YAML.
//
// Every field is optional; values present in the file overlay Default().
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mahdiidarabi/rsa-timing/pkg/timingattack"
)

// Config is the resolved configuration of one recovery run.
type Config struct {
	Attack      timingattack.AttackConfig
	Clock       timingattack.ClockConfig
	Key         KeyConfig
	Output      OutputConfig
	Calibration CalibrationConfig
	Seed        int64
}

// KeyConfig selects the victim key: loaded from File when set, generated
// with Bits otherwise.
type KeyConfig struct {
	Bits int
	File string
}

// OutputConfig names the optional artifacts of a run.
type OutputConfig struct {
	Trace    string
	Report   string
	LogLevel slog.Level
}

// CalibrationConfig sizes a calibration run.
type CalibrationConfig struct {
	Trials  int
	Workers int
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Attack: timingattack.DefaultAttackConfig(),
		Clock:  timingattack.DefaultClockConfig(),
		Key:    KeyConfig{Bits: 16},
		Output: OutputConfig{LogLevel: slog.LevelInfo},
		Calibration: CalibrationConfig{
			Trials: 200,
		},
	}
}

// Duration accepts Go duration strings ("1us", "250ns") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// file mirrors the YAML layout. Pointers distinguish absent fields from zero.
type file struct {
	Seed   *int64 `yaml:"seed"`
	Attack struct {
		SamplesPerClass       *int      `yaml:"samples_per_class"`
		MaxBacktracks         *int      `yaml:"max_backtracks"`
		SignificanceThreshold *float64  `yaml:"significance_threshold"`
		EqualityTolerance     *float64  `yaml:"equality_tolerance"`
		Unit                  *Duration `yaml:"unit"`
		ProbeCiphertexts      *int      `yaml:"probe_ciphertexts"`
		MaxDraws              *int      `yaml:"max_draws"`
		Blinding              *bool     `yaml:"blinding"`
	} `yaml:"attack"`
	Clock struct {
		Synthetic *bool     `yaml:"synthetic"`
		Base      *Duration `yaml:"base"`
		Penalty   *Duration `yaml:"penalty"`
		Jitter    *Duration `yaml:"jitter"`
	} `yaml:"clock"`
	Key struct {
		Bits *int    `yaml:"bits"`
		File *string `yaml:"file"`
	} `yaml:"key"`
	Output struct {
		Trace    *string `yaml:"trace"`
		Report   *string `yaml:"report"`
		LogLevel *string `yaml:"log_level"`
	} `yaml:"output"`
	Calibration struct {
		Trials  *int `yaml:"trials"`
		Workers *int `yaml:"workers"`
	} `yaml:"calibration"`
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse overlays the YAML document data onto Default and validates the result.
func Parse(data []byte) (Config, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("%w: %v", timingattack.ErrInvalidConfig, err)
	}

	cfg := Default()
	setInt64(&cfg.Seed, f.Seed)

	setInt(&cfg.Attack.SamplesPerClass, f.Attack.SamplesPerClass)
	setInt(&cfg.Attack.MaxBacktracks, f.Attack.MaxBacktracks)
	setFloat(&cfg.Attack.SignificanceThreshold, f.Attack.SignificanceThreshold)
	setFloat(&cfg.Attack.EqualityTolerance, f.Attack.EqualityTolerance)
	setDuration(&cfg.Attack.Unit, f.Attack.Unit)
	setInt(&cfg.Attack.ProbeCiphertexts, f.Attack.ProbeCiphertexts)
	setInt(&cfg.Attack.MaxDraws, f.Attack.MaxDraws)
	setBool(&cfg.Attack.Blinding, f.Attack.Blinding)

	setBool(&cfg.Clock.Synthetic, f.Clock.Synthetic)
	setDuration(&cfg.Clock.Base, f.Clock.Base)
	setDuration(&cfg.Clock.Penalty, f.Clock.Penalty)
	setDuration(&cfg.Clock.Jitter, f.Clock.Jitter)

	setInt(&cfg.Key.Bits, f.Key.Bits)
	setString(&cfg.Key.File, f.Key.File)

	setString(&cfg.Output.Trace, f.Output.Trace)
	setString(&cfg.Output.Report, f.Output.Report)
	if f.Output.LogLevel != nil {
		level, err := ParseLevel(*f.Output.LogLevel)
		if err != nil {
			return Config{}, err
		}
		cfg.Output.LogLevel = level
	}

	setInt(&cfg.Calibration.Trials, f.Calibration.Trials)
	setInt(&cfg.Calibration.Workers, f.Calibration.Workers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that the attack packages do not check themselves.
func (c Config) Validate() error {
	if err := c.Attack.Validate(); err != nil {
		return err
	}
	if c.Key.File == "" && c.Key.Bits < timingattack.MinKeyBits {
		return fmt.Errorf("%w: key bits must be at least %d, got %d",
			timingattack.ErrInvalidConfig, timingattack.MinKeyBits, c.Key.Bits)
	}
	if c.Clock.Base < 0 || c.Clock.Penalty < 0 || c.Clock.Jitter < 0 {
		return fmt.Errorf("%w: clock durations must not be negative", timingattack.ErrInvalidConfig)
	}
	if c.Calibration.Trials <= 0 {
		return fmt.Errorf("%w: calibration trials must be positive", timingattack.ErrInvalidConfig)
	}
	if c.Calibration.Workers < 0 {
		return fmt.Errorf("%w: calibration workers must not be negative", timingattack.ErrInvalidConfig)
	}
	return nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", timingattack.ErrInvalidConfig, s)
	}
	return level, nil
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = time.Duration(*src)
	}
}
