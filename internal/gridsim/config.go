package gridsim

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Store selects the primary store of the simulated cache.
const (
	StoreHash   = "hash"
	StoreSorted = "sorted"
)

// ErrGridTooSmall is returned when the grid cannot hold every robot.
var ErrGridTooSmall = errors.New("gridsim: grid too small for robot count")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config describes a simulation run.
type Config struct {
	Width  int   `yaml:"width" validate:"required,min=1,max=4096"`
	Height int   `yaml:"height" validate:"required,min=1,max=4096"`
	Robots int   `yaml:"robots" validate:"required,min=1"`
	Steps  int   `yaml:"steps" validate:"min=0"`
	Seed   int64 `yaml:"seed"`

	// MoveChance is the probability that an idle robot picks a new target
	// in a step.
	MoveChance float64 `yaml:"move_chance" validate:"gte=0,lte=1"`

	Store    string `yaml:"store" validate:"oneof=hash sorted"`
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	// VerifyEvery runs a consistency check every n steps. Zero checks only
	// at the end of the run.
	VerifyEvery int `yaml:"verify_every" validate:"min=0"`

	// SpawnSkew biases Spawn towards the grid centre with a Zipf
	// distribution over free cells ordered by distance. Zero spawns
	// uniformly; otherwise it must exceed 1.
	SpawnSkew float64 `yaml:"spawn_skew" validate:"eq=0|gt=1"`

	// StepRate limits Run to this many steps per second. Zero runs
	// unthrottled.
	StepRate float64 `yaml:"step_rate" validate:"gte=0"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Width:      16,
		Height:     16,
		Robots:     32,
		Steps:      100,
		Seed:       42,
		MoveChance: 0.6,
		SpawnSkew:  1.5,
		Store:      StoreSorted,
		LogLevel:   "warn",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig and validates the
// result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and that the grid can hold every robot.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Robots > c.Width*c.Height {
		return fmt.Errorf("%w: %d robots on %dx%d", ErrGridTooSmall, c.Robots, c.Width, c.Height)
	}
	return nil
}

// Level parses LogLevel. An empty level means warn.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
