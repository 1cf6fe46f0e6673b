// Package config loads yinglong.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/yinglong/internal/infer"
	"github.com/roach88/yinglong/internal/verilog"
)

// FileNames are the configuration files Load looks for, in order.
var FileNames = []string{"yinglong.toml", ".yinglong.toml"}

// Config is the top-level configuration.
type Config struct {
	Lower LowerConfig `toml:"lower"`
	Cache CacheConfig `toml:"cache"`
}

// LowerConfig controls inference and lowering.
type LowerConfig struct {
	// Workers bounds parallel checking and lowering (0 = GOMAXPROCS).
	Workers int `toml:"workers"`

	// ParallelThreshold is the sibling count below which passes stay
	// sequential (0 = pass.DefaultThreshold).
	ParallelThreshold int `toml:"parallel_threshold"`

	// Registers enables clocked always blocks for RegDef.
	Registers bool `toml:"registers"`

	// PositionComments appends "// @[file:line:col]" to emitted lines.
	PositionComments bool `toml:"position_comments"`
}

// CacheConfig controls the SQLite artifact cache.
type CacheConfig struct {
	Enabled bool `toml:"enabled"`

	// Path is the database file (relative to the working directory if not
	// absolute).
	Path string `toml:"path"`
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Lower: LowerConfig{
			Workers:           0, // auto
			ParallelThreshold: 0,
			Registers:         false,
			PositionComments:  true,
		},
		Cache: CacheConfig{
			Enabled: false,
			Path:    ".yinglong/cache.db",
		},
	}
}

// Load finds and loads the configuration file in dir.
// Returns DefaultConfig if no config file is found.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. Keys missing from the
// file keep their default values; unknown keys are an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parsing config file: %s", strict.String())
		}
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Lower.Workers < 0 {
		return fmt.Errorf("lower.workers must be >= 0, got %d", c.Lower.Workers)
	}
	if c.Lower.ParallelThreshold < 0 {
		return fmt.Errorf("lower.parallel_threshold must be >= 0, got %d", c.Lower.ParallelThreshold)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache.path is required when cache.enabled is true")
	}
	return nil
}

// InferOptions returns the inference options this configuration selects.
func (c *Config) InferOptions() []infer.Option {
	return []infer.Option{
		infer.WithWorkers(c.Lower.Workers),
		infer.WithParallelThreshold(c.Lower.ParallelThreshold),
	}
}

// LowerOptions returns the lowering options this configuration selects.
func (c *Config) LowerOptions() []verilog.Option {
	return []verilog.Option{
		verilog.WithWorkers(c.Lower.Workers),
		verilog.WithParallelThreshold(c.Lower.ParallelThreshold),
		verilog.WithRegisters(c.Lower.Registers),
		verilog.WithPositionComments(c.Lower.PositionComments),
	}
}
