// Package config loads the optimizer's TOML configuration: which passes
// to run, whether to verify the IR between passes, and how to dump the
// result.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the whole configuration file.
type Config struct {
	Passes Passes `toml:"passes"`
	Dump   Dump   `toml:"dump"`
}

// Passes selects and instruments optimization passes.
type Passes struct {
	// Disabled lists pass names to skip; unknown names are rejected at
	// pipeline setup, not here, since the registry owns the names.
	Disabled []string `toml:"disabled"`
	// CheckIR verifies the control-flow graph after every pass.
	CheckIR bool `toml:"check_ir"`
}

// Dump controls how the optimized region is rendered.
type Dump struct {
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Dump formats.
const (
	FormatText = "text"
	FormatDot  = "dot"
	FormatJSON = "json"
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Passes: Passes{CheckIR: true},
		Dump:   Dump{Format: FormatText},
	}
}

// Load reads a TOML configuration file on top of the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML configuration on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Dump.Format {
	case FormatText, FormatDot, FormatJSON:
		return nil
	}
	return fmt.Errorf("config: unknown dump format %q", c.Dump.Format)
}
