// Copyright 2025 The Skiff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads application settings from a YAML file with
// environment variable overrides. Environment wins over file, file wins
// over defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/skiff-dev/skiff"
)

// Config holds application settings. Fields map to YAML keys and to
// SKIFF_* environment variables.
type Config struct {
	Title   string `yaml:"title" envconfig:"TITLE"`
	Version string `yaml:"version" envconfig:"VERSION"`
	Debug   bool   `yaml:"debug" envconfig:"DEBUG"`

	Server Server `yaml:"server"`
}

// Server holds listener settings.
type Server struct {
	Addr              string        `yaml:"addr" envconfig:"SERVER_ADDR"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" envconfig:"SERVER_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Title:   "Skiff",
		Version: "0.1.0",
		Server: Server{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Load reads the YAML file at path, applies SKIFF_* environment
// overrides and validates the result. An empty path skips the file and
// loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("SKIFF", cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics on error. Intended for main().
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"read_header_timeout": c.Server.ReadHeaderTimeout,
		"read_timeout":        c.Server.ReadTimeout,
		"write_timeout":       c.Server.WriteTimeout,
		"idle_timeout":        c.Server.IdleTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("server %s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Options converts the configuration into application options.
//
//	app := skiff.MustNew(config.MustLoad("config.yaml").Options()...)
func (c *Config) Options() []skiff.Option {
	return []skiff.Option{
		skiff.WithTitle(c.Title),
		skiff.WithVersion(c.Version),
		skiff.WithDebug(c.Debug),
		skiff.WithServerTimeouts(
			c.Server.ReadHeaderTimeout,
			c.Server.ReadTimeout,
			c.Server.WriteTimeout,
			c.Server.IdleTimeout,
		),
	}
}
