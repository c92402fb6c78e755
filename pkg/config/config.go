// Package config loads and validates zonedb settings from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"zonedb/pkg/logging"
	"zonedb/pkg/primitives"
	"zonedb/pkg/word"
)

// Config is the full set of engine and tool settings.
type Config struct {
	// DataDir holds one file per zone.
	DataDir string `yaml:"data_dir" validate:"required"`

	// Database location on the medium.
	Unit   int `yaml:"unit" validate:"gte=0,lte=63"`
	Start  int `yaml:"start" validate:"gte=0,lte=1023"`
	Length int `yaml:"length" validate:"gte=1,lte=985"`

	// Verbose turns on debug logging of zone traffic.
	Verbose bool `yaml:"verbose"`

	// ZeroDate stamps records with date 0 instead of the current day.
	ZeroDate bool `yaml:"zero_date"`

	// PasswordCost is the bcrypt cost for substore passwords.
	PasswordCost int `yaml:"password_cost" validate:"gte=4,lte=31"`

	Log LogConfig `yaml:"log"`
}

// LogConfig mirrors logging.Config in YAML form.
type LogConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

var validate = validator.New()

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		DataDir:      "zones",
		Length:       8,
		PasswordCost: 10,
		Log: LogConfig{
			Level:      "WARN",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and that the zone range fits on one unit.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Start+c.Length > primitives.MaxZones {
		return fmt.Errorf("invalid config: zones %d..%d run past the end of unit %d",
			c.Start, c.Start+c.Length-1, c.Unit)
	}
	return nil
}

// DBDesc packs the configured zone range.
func (c *Config) DBDesc() word.DBDesc {
	return word.NewDBDesc(primitives.Unit(c.Unit), primitives.ZoneNumber(c.Start), c.Length)
}

// Logging converts the log section; Verbose forces debug level.
func (c *Config) Logging() logging.Config {
	level := logging.LogLevel(c.Log.Level)
	if c.Verbose {
		level = logging.LevelDebug
	}
	return logging.Config{
		Level:      level,
		OutputPath: c.Log.File,
		Format:     c.Log.Format,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
