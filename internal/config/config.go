// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package config loads the TOML build description spec.md §6 defines:
// which headers to traverse, how to bucket them into partitions, and
// where to write the resulting WinMD.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/saferwall/bnd-winmd/internal/bnderr"
)

// Output is the `[output]` table.
type Output struct {
	Name     string `toml:"name"`
	File     string `toml:"file"`
	Validate bool   `toml:"validate"`
}

// Partition is one `[[partition]]` entry.
type Partition struct {
	Namespace string   `toml:"namespace"`
	Library   string   `toml:"library"`
	Headers   []string `toml:"headers"`
	Traverse  []string `toml:"traverse"`
}

// Config is the full decoded `bnd-winmd.toml`.
type Config struct {
	IncludePaths []string    `toml:"include_paths"`
	Output       Output      `toml:"output"`
	Partitions   []Partition `toml:"partition"`
}

// Load reads and validates the TOML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bnderr.New(bnderr.Config, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, bnderr.New(bnderr.Config, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Output.Name == "" {
		return bnderr.Newf(bnderr.Config, "output.name is required")
	}
	if c.Output.File == "" {
		return bnderr.Newf(bnderr.Config, "output.file is required")
	}
	if len(c.Partitions) == 0 {
		return bnderr.Newf(bnderr.Config, "at least one [[partition]] is required")
	}
	for i, p := range c.Partitions {
		if p.Namespace == "" {
			return bnderr.Newf(bnderr.Config, "partition[%d]: namespace is required", i)
		}
		if p.Library == "" {
			return bnderr.Newf(bnderr.Config, "partition[%d] (%s): library is required", i, p.Namespace)
		}
		if len(p.Headers) == 0 {
			return bnderr.Newf(bnderr.Config, "partition[%d] (%s): at least one header is required", i, p.Namespace)
		}
	}
	return nil
}

// ApplyOutputOverride replaces Output.File when override is non-empty,
// the -o/--output CLI flag's effect on output.file (spec §6).
func (c *Config) ApplyOutputOverride(override string) {
	if override != "" {
		c.Output.File = override
	}
}
