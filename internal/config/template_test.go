// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateExpander_Expand(t *testing.T) {
	expander := NewTemplateExpander()
	ctx := &TemplateContext{
		StateDir:    "/var/tmp/onboard",
		CommandFile: "/var/tmp/dialog.log",
		ItemsFile:   "/etc/onboard/items.json",
	}

	tests := []struct {
		template string
		expected string
	}{
		{"--commandfile={{.CommandFile}}", "--commandfile=/var/tmp/dialog.log"},
		{"{{.StateDir}}/renderer.out", "/var/tmp/onboard/renderer.out"},
		{"{{.ItemsFile | quote}}", `"/etc/onboard/items.json"`},
		{"{{default \"none\" .AppsFile}}", "none"},
		{"{{if .Debug}}--verbose{{end}}", ""},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			result, err := expander.Expand(tt.template, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestTemplateExpander_Expand_Errors(t *testing.T) {
	expander := NewTemplateExpander()

	_, err := expander.Expand("{{.Unclosed", &TemplateContext{})
	assert.Error(t, err)

	_, err = expander.Expand("{{.Missing}}", &TemplateContext{})
	assert.Error(t, err)

	_, err = expander.Expand("{{.Start}}", map[string]string{})
	assert.Error(t, err)
}

func TestTemplateExpander_ExpandConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Debug = true
	cfg.Renderer.Args = []string{"--commandfile", "{{.CommandFile}}"}
	cfg.Renderer.DebugArgs = []string{"{{if .Debug}}--debug{{end}}"}
	cfg.Reboot.Command = []string{"/bin/sh", "-c", "touch {{.StateDir}}/rebooted"}
	cfg.LogSource.Command = []string{"log", "show", "--start", "{{.Start}}"}

	expanded, err := NewTemplateExpander().ExpandConfig(cfg, NewTemplateContext(cfg))
	require.NoError(t, err)

	assert.Equal(t, []string{"--commandfile", "/var/tmp/dialog.log"}, expanded.Renderer.Args)
	assert.Equal(t, []string{"--debug"}, expanded.Renderer.DebugArgs)
	assert.Equal(t, "touch /var/tmp/onboard/rebooted", expanded.Reboot.Command[2])
	assert.Equal(t, "{{.Start}}", expanded.LogSource.Command[3])

	// Original is untouched
	assert.Equal(t, "{{.CommandFile}}", cfg.Renderer.Args[1])
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Google Chrome", "google-chrome"},
		{"Microsoft_Office/365", "microsoft-office-365"},
		{"zoom.us", "zoom-us"},
		{"special!@#chars", "specialchars"},
		{"", ""},
		{"-leading-trailing-", "leading-trailing"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"simple"`, Quote("simple"))
	assert.Equal(t, `"with \"quotes\""`, Quote(`with "quotes"`))
}
