// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		apps_file: "/etc/onboard/apps.csv"
		state_dir: "/var/tmp/onboard-test"
		renderer: {
			binary: "/usr/local/bin/dialog"
			args: ["--commandfile", "{{.CommandFile}}", "--listitem"]
			command_file: "/var/tmp/dialog.log"
			expected_items: 4
			no_reboot_exit_codes: [2, 3]
		}
		monitor: {
			poll_interval: "5s"
			max_retries: 30
			match: "regex"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "/etc/onboard/apps.csv", cfg.AppsFile)
	assert.Equal(t, "/var/tmp/onboard-test", cfg.StateDir)
	assert.Equal(t, "/usr/local/bin/dialog", cfg.Renderer.Binary)
	assert.Equal(t, []string{"--commandfile", "{{.CommandFile}}", "--listitem"}, cfg.Renderer.Args)
	assert.Equal(t, 4, cfg.Renderer.ExpectedItems)
	assert.Equal(t, []int{2, 3}, cfg.Renderer.NoRebootExitCodes)
	assert.Equal(t, "5s", cfg.Monitor.PollInterval)
	assert.Equal(t, 30, cfg.Monitor.MaxRetries)
	assert.Equal(t, MatchRegex, cfg.Monitor.Match)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// Comments, unquoted strings and no commas
	configContent := `{
		// Line comment
		state_dir: /var/tmp/onboard

		# Hash comment
		debug: true
		session: {
			wait_for: [
				Finder
				Dock
			]
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "/var/tmp/onboard", cfg.StateDir)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"Finder", "Dock"}, cfg.Session.WaitFor)
}

func TestLoader_Load_Defaults(t *testing.T) {
	path := writeTestConfig(t, `{}`)
	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "/var/tmp/onboard", cfg.StateDir)
	assert.Equal(t, "/usr/local/bin/dialog", cfg.Renderer.Binary)
	assert.Equal(t, "/var/tmp/dialog.log", cfg.Renderer.CommandFile)
	assert.Equal(t, []string{"--version"}, cfg.Renderer.VersionArgs)
	assert.Equal(t, PTYAuto, cfg.Renderer.PTY)
	assert.Equal(t, "10s", cfg.Monitor.PollInterval)
	assert.Equal(t, 180, cfg.Monitor.MaxRetries)
	assert.Equal(t, 10, cfg.Monitor.JitterUnits)
	assert.Equal(t, "3d", cfg.Monitor.InitialLookback)
	assert.Equal(t, MatchLiteral, cfg.Monitor.Match)
	assert.Equal(t, EvaluateImmediate, cfg.Monitor.SuccessEvaluation)
	assert.Equal(t, MismatchAdvisory, cfg.Orchestrator.CountMismatch)
	assert.Equal(t, "file", cfg.LogSource.Type)
	assert.Equal(t, "/var/log/install.log", cfg.LogSource.Path)
	assert.Equal(t, "1m", cfg.LogSource.QueryTimeout)
	assert.Equal(t, []string{"/sbin/shutdown", "-r", "now"}, cfg.Reboot.Command)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestLoader_Load_CommandSourceKeepsEmptyPath(t *testing.T) {
	path := writeTestConfig(t, `{
		log_source: {
			type: command
			command: ["/usr/bin/log", "show", "--start", "{{.Start}}"]
		}
	}`)
	cfg, err := NewLoader().LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "command", cfg.LogSource.Type)
	assert.Empty(t, cfg.LogSource.Path)
	assert.Len(t, cfg.LogSource.Command, 4)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/onboard.hjson")
	assert.Error(t, err)
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	path := writeTestConfig(t, `{ state_dir: [ }`)
	loader := NewLoader()
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "onboard.hjson"), []byte("{}"), 0644))

	loader := NewLoader()
	path, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Equal(t, "onboard.hjson", filepath.Base(path))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
	}{
		{"", 7 * time.Second},
		{"10s", 10 * time.Second},
		{"5m", 5 * time.Minute},
		{"3d", 72 * time.Hour},
		{"1.5d", 36 * time.Hour},
		{"bogus", 7 * time.Second},
		{"xd", 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDuration(tt.input, 7*time.Second))
		})
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	path := writeTestConfig(t, content)
	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "onboard.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
