// Package config loads famtree settings from defaults, an optional YAML file
// and FAMTREE_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/bcowgill/d3-family-tree/internal/logging"
	"github.com/bcowgill/d3-family-tree/internal/validation"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FAMTREE_"

// Parse modes.
const (
	ModeFailFast = "failfast"
	ModeCollect  = "collect"
)

// Output formats.
const (
	OutputJSON = "json"
	OutputText = "text"
)

// Config holds all famtree settings.
type Config struct {
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Parse   ParseConfig   `yaml:"parse" envPrefix:"PARSE_"`
	Output  OutputConfig  `yaml:"output" envPrefix:"OUTPUT_"`
	Store   StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Archive ArchiveConfig `yaml:"archive" envPrefix:"ARCHIVE_"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// ParseConfig controls how input lines are decoded.
type ParseConfig struct {
	Mode         string `yaml:"mode" env:"MODE"`
	LinkChildren bool   `yaml:"link_children" env:"LINK_CHILDREN"`
	MaxFileSize  int64  `yaml:"max_file_size" env:"MAX_FILE_SIZE"`
}

// OutputConfig controls how decoded trees are written.
type OutputConfig struct {
	Format string `yaml:"format" env:"FORMAT"`
	Indent bool   `yaml:"indent" env:"INDENT"`
}

// StoreConfig points at the SQLite database. Empty disables persistence.
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// ArchiveConfig points at the input archive. Empty disables archiving.
type ArchiveConfig struct {
	Dir string `yaml:"dir" env:"DIR"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Parse: ParseConfig{
			Mode:        ModeFailFast,
			MaxFileSize: validation.MaxFileSize,
		},
		Output: OutputConfig{
			Format: OutputJSON,
			Indent: true,
		},
	}
}

// Load reads defaults, then the YAML file at path, then the environment.
// An empty path skips the file. A named file must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv overlays FAMTREE_* environment variables onto target.
// Unset variables leave fields untouched.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	switch c.Parse.Mode {
	case ModeFailFast, ModeCollect:
	default:
		return fmt.Errorf("parse.mode: unknown mode %q", c.Parse.Mode)
	}
	if c.Parse.MaxFileSize < 0 {
		return fmt.Errorf("parse.max_file_size: must not be negative")
	}
	switch c.Output.Format {
	case OutputJSON, OutputText:
	default:
		return fmt.Errorf("output.format: unknown format %q", c.Output.Format)
	}
	return nil
}

// InitLogging configures the global logger from the log section.
func (c *Config) InitLogging() error {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
