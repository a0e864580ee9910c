// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package app

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
)

// Config is the host configuration, read from a TOML file.
type Config struct {
	// StatePath locates the persisted file tree.
	StatePath string `toml:"state_path"`

	// DrainBudget caps how many main+sub tasks run per tick.
	DrainBudget int `toml:"drain_budget"`

	// CPUWorkers sizes the cpu pool. Zero means the default.
	CPUWorkers int `toml:"cpu_workers"`

	// LogLevel is an hclog level name (trace, debug, info, warn, error).
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		StatePath:   "kingtaker.bin",
		DrainBudget: 1000,
		LogLevel:    "info",
	}
}

// LoadConfig reads path. A missing file yields the defaults; a present
// file overrides only the keys it sets.
func LoadConfig(afs afero.Fs, path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := afero.ReadFile(afs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DrainBudget <= 0 {
		cfg.DrainBudget = 1000
	}
	return cfg, nil
}
