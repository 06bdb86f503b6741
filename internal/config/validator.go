// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateRenderer(cfg, errs)
	v.validateMonitor(cfg, errs)
	v.validateOrchestrator(cfg, errs)
	v.validateLogSource(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if cfg.AppsFile == "" {
		errs.Add("apps_file", "is required")
	}
	if cfg.StateDir == "" {
		errs.Add("state_dir", "is required")
	}
}

func (v *Validator) validateRenderer(cfg *Config, errs *ValidationError) {
	if cfg.Renderer.Binary == "" {
		errs.Add("renderer.binary", "is required")
	}
	if cfg.Renderer.CommandFile == "" {
		errs.Add("renderer.command_file", "is required")
	}
	if cfg.Renderer.ExpectedItems < 0 {
		errs.Add("renderer.expected_items", "must not be negative")
	}
	switch cfg.Renderer.PTY {
	case PTYAuto, PTYAlways, PTYNever:
	default:
		errs.Add("renderer.pty", fmt.Sprintf("invalid pty mode '%s', must be one of: auto, always, never", cfg.Renderer.PTY))
	}
}

func (v *Validator) validateMonitor(cfg *Config, errs *ValidationError) {
	if cfg.Monitor.MaxRetries <= 0 {
		errs.Add("monitor.max_retries", "must be greater than 0")
	}
	if cfg.Monitor.JitterUnits < 0 {
		errs.Add("monitor.jitter_units", "must not be negative")
	}

	switch cfg.Monitor.Match {
	case MatchLiteral, MatchRegex:
	default:
		errs.Add("monitor.match", fmt.Sprintf("invalid match mode '%s', must be one of: literal, regex", cfg.Monitor.Match))
	}

	switch cfg.Monitor.SuccessEvaluation {
	case EvaluateImmediate, EvaluateNextPoll:
	default:
		errs.Add("monitor.success_evaluation", fmt.Sprintf("invalid policy '%s', must be one of: immediate, next_poll", cfg.Monitor.SuccessEvaluation))
	}
}

func (v *Validator) validateOrchestrator(cfg *Config, errs *ValidationError) {
	switch cfg.Orchestrator.CountMismatch {
	case MismatchAdvisory, MismatchFatal:
	default:
		errs.Add("orchestrator.count_mismatch", fmt.Sprintf("invalid policy '%s', must be one of: advisory, fatal", cfg.Orchestrator.CountMismatch))
	}
}

func (v *Validator) validateLogSource(cfg *Config, errs *ValidationError) {
	switch cfg.LogSource.Type {
	case "file":
		if cfg.LogSource.Path == "" {
			errs.Add("log_source.path", "is required for file sources")
		}
	case "command":
		if len(cfg.LogSource.Command) == 0 {
			errs.Add("log_source.command", "is required for command sources")
		}
	default:
		errs.Add("log_source.type", fmt.Sprintf("invalid type '%s', must be one of: file, command", cfg.LogSource.Type))
	}

	if cfg.LogSource.TimestampPattern != "" {
		re, err := regexp.Compile(cfg.LogSource.TimestampPattern)
		if err != nil {
			errs.Add("log_source.timestamp_pattern", fmt.Sprintf("invalid regex: %s", err))
		} else if re.NumSubexp() < 1 {
			errs.Add("log_source.timestamp_pattern", "must contain a capture group")
		}
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	validateDuration("monitor.poll_interval", cfg.Monitor.PollInterval, errs)
	validateDuration("monitor.jitter_unit", cfg.Monitor.JitterUnit, errs)
	validateDuration("monitor.followup_lookback", cfg.Monitor.FollowupLookback, errs)
	if cfg.Monitor.InitialLookback != LookbackBoot {
		validateDuration("monitor.initial_lookback", cfg.Monitor.InitialLookback, errs)
	}
	validateDuration("session.timeout", cfg.Session.Timeout, errs)
	validateDuration("session.poll", cfg.Session.Poll, errs)
	validateDuration("reboot.delay", cfg.Reboot.Delay, errs)
	validateDuration("log_source.query_timeout", cfg.LogSource.QueryTimeout, errs)
	if cfg.LogSource.QueryTimeout != "" && ParseDuration(cfg.LogSource.QueryTimeout, time.Minute) <= 0 {
		errs.Add("log_source.query_timeout", "must be greater than zero")
	}
}

func validateDuration(field, value string, errs *ValidationError) {
	if value == "" {
		return
	}
	s := value
	if strings.HasSuffix(s, "d") {
		s = strings.TrimSuffix(s, "d") + "h"
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration format: %s", err))
	} else if d < 0 {
		errs.Add(field, "must be positive")
	}
}
