// Package config loads computation settings from the environment.
package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/born-ml/lower/internal/parallel"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix, e.g. LOWER_MODE.
const Prefix = "LOWER"

// Execution modes.
const (
	ModeCompiled  = "compiled"
	ModeImmediate = "immediate"
)

// Config holds the knobs a computation reads at construction.
type Config struct {
	Mode       string `envconfig:"MODE" default:"compiled"`
	EnableBF16 bool   `envconfig:"ENABLE_BF16" default:"false"`
	Workers    int    `envconfig:"WORKERS" default:"0"`
	MinChunk   int    `envconfig:"MIN_CHUNK" default:"64"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat  string `envconfig:"LOG_FORMAT" default:"console"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Mode:      ModeCompiled,
		MinChunk:  64,
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load reads the configuration from LOWER_* environment variables and
// validates it.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the values for consistency.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case ModeCompiled, ModeImmediate:
	default:
		return fmt.Errorf("invalid mode: %q (must be %s or %s)", c.Mode, ModeCompiled, ModeImmediate)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid workers: %d (must be >= 0)", c.Workers)
	}
	if c.MinChunk <= 0 {
		return fmt.Errorf("invalid min_chunk: %d (must be positive)", c.MinChunk)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format: %q (must be json or console)", c.LogFormat)
	}
	return nil
}

// Immediate reports whether the configured mode is immediate.
func (c *Config) Immediate() bool {
	return strings.ToLower(c.Mode) == ModeImmediate
}

// Parallel returns the kernel worker configuration. Zero workers means one
// per CPU.
func (c *Config) Parallel() parallel.Config {
	workers := c.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return parallel.Config{
		Enabled:      workers > 1,
		NumWorkers:   workers,
		MinChunkSize: c.MinChunk,
	}
}
