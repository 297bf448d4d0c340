// Package config loads server configuration from a YAML file with
// LINETALK_* environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Config drives cmd/server.
type Config struct {
	// Port is the TCP chat port.
	Port int `yaml:"port"`
	// DualStack makes the TCP listener accept IPv6 as well as IPv4.
	DualStack bool `yaml:"dual_stack"`
	// WSAddress is the WebSocket listen address; empty disables the
	// WebSocket transport.
	WSAddress string `yaml:"ws_address"`
	// History is the SQLite path for the message log; empty disables
	// recording.
	History string `yaml:"history"`
	// MaxConns caps simultaneous TCP connections; zero means unlimited.
	MaxConns int `yaml:"max_conns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:      9000,
		DualStack: true,
		WSAddress: ":9001",
	}
}

// Load overlays the YAML file at path, then the environment, on top of the
// defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if cfg.Port <= 0 {
		return nil, fmt.Errorf("config: port must be positive, got %d", cfg.Port)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LINETALK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("LINETALK_DUAL_STACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DualStack = b
		}
	}
	if v := os.Getenv("LINETALK_WS_ADDRESS"); v != "" {
		c.WSAddress = v
	}
	if v := os.Getenv("LINETALK_HISTORY"); v != "" {
		c.History = v
	}
	if v := os.Getenv("LINETALK_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConns = n
		}
	}
}
