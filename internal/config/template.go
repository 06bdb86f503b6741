// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

// TemplateExpander handles Go text/template variable expansion in config values.
type TemplateExpander struct {
	funcMap template.FuncMap
}

// NewTemplateExpander creates a new template expander with built-in functions.
func NewTemplateExpander() *TemplateExpander {
	return &TemplateExpander{
		funcMap: template.FuncMap{
			"slugify": Slugify,
			"replace": Replace,
			"upper":   strings.ToUpper,
			"lower":   strings.ToLower,
			"default": Default,
			"quote":   Quote,
		},
	}
}

// TemplateContext is the data available to settings templates.
type TemplateContext struct {
	StateDir    string
	AppsFile    string
	CommandFile string
	ItemsFile   string
	Debug       bool
}

// NewTemplateContext builds the template data from loaded settings.
func NewTemplateContext(cfg *Config) *TemplateContext {
	return &TemplateContext{
		StateDir:    cfg.StateDir,
		AppsFile:    cfg.AppsFile,
		CommandFile: cfg.Renderer.CommandFile,
		ItemsFile:   cfg.Renderer.ItemsFile,
		Debug:       cfg.Debug,
	}
}

// Expand expands template variables in a string value.
// Data may be any value; templates refer to its exported fields.
func (e *TemplateExpander) Expand(value string, data any) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("").Funcs(e.funcMap).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ExpandArgs expands every element of an argument list.
func (e *TemplateExpander) ExpandArgs(args []string, data any) ([]string, error) {
	if len(args) == 0 {
		return args, nil
	}
	out := make([]string, len(args))
	for i, arg := range args {
		v, err := e.Expand(arg, data)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ExpandConfig returns a copy of cfg with templates in command arguments
// expanded. Log source commands are left alone: their placeholders are
// filled per query.
func (e *TemplateExpander) ExpandConfig(cfg *Config, ctx *TemplateContext) (*Config, error) {
	expanded := *cfg
	var err error

	if expanded.Renderer.Args, err = e.ExpandArgs(cfg.Renderer.Args, ctx); err != nil {
		return nil, fmt.Errorf("renderer.args: %w", err)
	}
	if expanded.Renderer.DebugArgs, err = e.ExpandArgs(cfg.Renderer.DebugArgs, ctx); err != nil {
		return nil, fmt.Errorf("renderer.debug_args: %w", err)
	}
	if expanded.Reboot.Command, err = e.ExpandArgs(cfg.Reboot.Command, ctx); err != nil {
		return nil, fmt.Errorf("reboot.command: %w", err)
	}

	return &expanded, nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]+`)
	slugDashes  = regexp.MustCompile(`-+`)
)

// Slugify converts a string to a filesystem-friendly slug.
func Slugify(s string) string {
	s = strings.ToLower(s)

	// Replace common separators with hyphens
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, " ", "-")

	s = slugInvalid.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")

	return strings.Trim(s, "-")
}

// Replace replaces all occurrences of old with new in s.
func Replace(old, new, s string) string {
	return strings.ReplaceAll(s, old, new)
}

// Default returns the value if non-empty, otherwise the default.
func Default(defaultVal, value string) string {
	if value == "" {
		return defaultVal
	}
	return value
}

// Quote adds shell-safe quotes around a string.
func Quote(s string) string {
	escaped := strings.ReplaceAll(s, `"`, `\"`)
	return `"` + escaped + `"`
}
