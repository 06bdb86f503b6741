// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// DefaultConfigPath is where managed hosts keep the settings file.
const DefaultConfigPath = "/Library/Application Support/Onboard/onboard.hjson"

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return l.Parse(data)
}

// Parse parses HJSON (or plain JSON) settings.
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// FindConfig returns the first settings file that exists: onboard.hjson
// or onboard.json in the current directory, then DefaultConfigPath.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		filepath.Join(".", "onboard.hjson"),
		filepath.Join(".", "onboard.json"),
		DefaultConfigPath,
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for onboard.hjson, onboard.json, %s)", DefaultConfigPath)
}

// ApplyDefaults sets default values for missing config fields.
func ApplyDefaults(cfg *Config) {
	if cfg.StateDir == "" {
		cfg.StateDir = "/var/tmp/onboard"
	}
	if cfg.AppsFile == "" {
		cfg.AppsFile = "/Library/Application Support/Onboard/apps.csv"
	}

	// Renderer defaults
	if cfg.Renderer.Binary == "" {
		cfg.Renderer.Binary = "/usr/local/bin/dialog"
	}
	if cfg.Renderer.CommandFile == "" {
		cfg.Renderer.CommandFile = "/var/tmp/dialog.log"
	}
	if cfg.Renderer.PTY == "" {
		cfg.Renderer.PTY = PTYAuto
	}
	if len(cfg.Renderer.VersionArgs) == 0 {
		cfg.Renderer.VersionArgs = []string{"--version"}
	}

	// Monitor defaults
	if cfg.Monitor.PollInterval == "" {
		cfg.Monitor.PollInterval = "10s"
	}
	if cfg.Monitor.MaxRetries == 0 {
		cfg.Monitor.MaxRetries = 180
	}
	if cfg.Monitor.JitterUnits == 0 {
		cfg.Monitor.JitterUnits = 10
	}
	if cfg.Monitor.JitterUnit == "" {
		cfg.Monitor.JitterUnit = "1s"
	}
	if cfg.Monitor.InitialLookback == "" {
		cfg.Monitor.InitialLookback = "3d"
	}
	if cfg.Monitor.Match == "" {
		cfg.Monitor.Match = MatchLiteral
	}
	if cfg.Monitor.SuccessEvaluation == "" {
		cfg.Monitor.SuccessEvaluation = EvaluateImmediate
	}

	// Orchestrator defaults
	if cfg.Orchestrator.CountMismatch == "" {
		cfg.Orchestrator.CountMismatch = MismatchAdvisory
	}

	// Log source defaults (macOS installer log)
	if cfg.LogSource.Type == "" {
		cfg.LogSource.Type = "file"
	}
	if cfg.LogSource.Type == "file" && cfg.LogSource.Path == "" {
		cfg.LogSource.Path = "/var/log/install.log"
	}
	if cfg.LogSource.TimestampPattern == "" {
		cfg.LogSource.TimestampPattern = `^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}[+-]\d{2})`
	}
	if cfg.LogSource.TimestampLayout == "" {
		cfg.LogSource.TimestampLayout = "2006-01-02 15:04:05-07"
	}
	if cfg.LogSource.MaxLines == 0 {
		cfg.LogSource.MaxLines = 200000
	}
	if cfg.LogSource.QueryTimeout == "" {
		cfg.LogSource.QueryTimeout = "1m"
	}

	// Session defaults
	if cfg.Session.Timeout == "" {
		cfg.Session.Timeout = "30m"
	}
	if cfg.Session.Poll == "" {
		cfg.Session.Poll = "2s"
	}

	// Reboot defaults
	if len(cfg.Reboot.Command) == 0 {
		cfg.Reboot.Command = []string{"/sbin/shutdown", "-r", "now"}
	}
}
