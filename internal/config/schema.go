// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON settings loading and the tracked-app table.
package config

import (
	"strings"
	"time"
)

// Config is the root settings structure for onboard.
type Config struct {
	AppsFile     string             `json:"apps_file"`
	StateDir     string             `json:"state_dir"`
	Debug        bool               `json:"debug"`
	Logging      LoggingConfig      `json:"logging"`
	Renderer     RendererConfig     `json:"renderer"`
	Monitor      MonitorConfig      `json:"monitor"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	LogSource    LogSourceConfig    `json:"log_source"`
	Session      SessionConfig      `json:"session"`
	Reboot       RebootConfig       `json:"reboot"`
	Status       StatusConfig       `json:"status"`
}

// LoggingConfig configures process logging.
type LoggingConfig struct {
	File string `json:"file"` // Append process logs here in addition to stderr
}

// RendererConfig describes the external dialog renderer.
type RendererConfig struct {
	Binary            string   `json:"binary"`
	Args              []string `json:"args"`
	DebugArgs         []string `json:"debug_args"`           // Replace args when debug mode is on
	CommandFile       string   `json:"command_file"`         // Append-only command stream read by the renderer
	ItemsFile         string   `json:"items_file"`           // Renderer item list (JSON/HJSON) used for the expected count
	ExpectedItems     int      `json:"expected_items"`       // Explicit expected count, overrides items_file
	MinVersion        string   `json:"min_version"`          // Minimum renderer version, empty to skip
	VersionArgs       []string `json:"version_args"`         // Args that make the renderer print its version
	NoRebootExitCodes []int    `json:"no_reboot_exit_codes"` // Renderer exit codes meaning "do not restart"
	PTY               string   `json:"pty"`                  // "auto", "always" or "never"
}

// MonitorConfig configures every app monitor.
type MonitorConfig struct {
	PollInterval      string `json:"poll_interval"`
	MaxRetries        int    `json:"max_retries"`
	JitterUnits       int    `json:"jitter_units"`
	JitterUnit        string `json:"jitter_unit"`
	InitialLookback   string `json:"initial_lookback"` // Duration, or "boot" for time since boot
	FollowupLookback  string `json:"followup_lookback"`
	Match             string `json:"match"`              // "literal" or "regex"
	SuccessEvaluation string `json:"success_evaluation"` // "immediate" or "next_poll"
}

// OrchestratorConfig configures the aggregate decision.
type OrchestratorConfig struct {
	CountMismatch string `json:"count_mismatch"` // "advisory" or "fatal"
}

// LogSourceConfig describes where installation evidence is read from.
type LogSourceConfig struct {
	Type             string   `json:"type"` // "file" or "command"
	Path             string   `json:"path"`
	Command          []string `json:"command"`
	TimestampPattern string   `json:"timestamp_pattern"` // Regex whose first group is the line timestamp
	TimestampLayout  string   `json:"timestamp_layout"`  // Go time layout for the captured timestamp
	MaxLines         int      `json:"max_lines"`
	QueryTimeout     string   `json:"query_timeout"` // Upper bound on one command query
}

// SessionConfig configures the desktop-session wait.
type SessionConfig struct {
	WaitFor []string `json:"wait_for"` // Process names that must be running
	Timeout string   `json:"timeout"`
	Poll    string   `json:"poll"`
}

// RebootConfig configures the terminal restart.
type RebootConfig struct {
	Command []string `json:"command"`
	Delay   string   `json:"delay"`
}

// StatusConfig configures the local status API.
type StatusConfig struct {
	Listen      string `json:"listen"`       // host:port, empty disables the API
	AllowRemote bool   `json:"allow_remote"` // Serve clients other than loopback
}

// Match modes for log patterns.
const (
	MatchLiteral = "literal"
	MatchRegex   = "regex"
)

// Success evaluation policies.
const (
	EvaluateImmediate = "immediate"
	EvaluateNextPoll  = "next_poll"
)

// Count mismatch policies.
const (
	MismatchAdvisory = "advisory"
	MismatchFatal    = "fatal"
)

// Renderer pty modes. Auto uses a pty only when stdin is not a terminal.
const (
	PTYAuto   = "auto"
	PTYAlways = "always"
	PTYNever  = "never"
)

// LookbackBoot selects a first-poll window reaching back to system boot.
const LookbackBoot = "boot"

// ParseDuration parses a duration string, returning a default if empty.
// Supports "d" suffix for days.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		d, err := time.ParseDuration(days + "h")
		if err != nil {
			return defaultVal
		}
		return d * 24
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
