// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package monitor waits for one tracked application to finish installing.
//
// The decision logic is a pure state machine (Machine.Step); Monitor drives
// it by polling the log on a schedule and acting on phase transitions.
package monitor

import (
	"github.com/wingedpig/onboard/internal/config"
)

// Phase is the monitor's position in NotStarted -> Installing -> Succeeded|Failed.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInstalling Phase = "installing"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Evaluation controls when sticky success hits are combined.
type Evaluation string

const (
	// EvaluateImmediate combines hits in the same poll they are observed.
	EvaluateImmediate Evaluation = config.EvaluateImmediate
	// EvaluateNextPoll combines hits at the top of the following poll.
	EvaluateNextPoll Evaluation = config.EvaluateNextPoll
)

// State is a monitor's private runtime record.
type State struct {
	Phase       Phase
	Attempt     int
	StartHits   []bool
	SuccessHits []bool // sticky: never reset once true
}

// Observation is one poll's per-pattern results. A short or nil slice
// counts the missing patterns as not observed.
type Observation struct {
	Start   []bool
	Success []bool
}

// Machine holds the fixed inputs of the transition function.
type Machine struct {
	StartMode    config.Mode
	SuccessMode  config.Mode
	StartCount   int
	SuccessCount int
	MaxRetries   int
	Evaluation   Evaluation
}

// NewMachine builds the transition function for an app.
func NewMachine(app config.TrackedApp, maxRetries int, eval Evaluation) Machine {
	return Machine{
		StartMode:    app.StartMode,
		SuccessMode:  app.SuccessMode,
		StartCount:   len(app.StartPatterns),
		SuccessCount: len(app.SuccessPatterns),
		MaxRetries:   maxRetries,
		Evaluation:   eval,
	}
}

// Initial returns the starting state.
func (m Machine) Initial() State {
	return State{
		Phase:       PhaseNotStarted,
		StartHits:   make([]bool, m.StartCount),
		SuccessHits: make([]bool, m.SuccessCount),
	}
}

// Pending reports whether next_poll evaluation will succeed on the next
// Step without needing a new observation.
func (m Machine) Pending(s State) bool {
	return m.Evaluation == EvaluateNextPoll && !s.Phase.Terminal() && Combine(m.SuccessMode, s.SuccessHits)
}

// Step applies one poll's observation. It never mutates s.
//
// Every step consumes one attempt. Success is evaluated before start, and
// start only while NotStarted. Reaching MaxRetries without success fails
// the app.
func (m Machine) Step(s State, obs Observation) State {
	if s.Phase.Terminal() {
		return s
	}
	next := s.clone()
	next.Attempt++

	if m.Evaluation == EvaluateNextPoll && Combine(m.SuccessMode, next.SuccessHits) {
		next.Phase = PhaseSucceeded
		return next
	}

	merge(next.SuccessHits, obs.Success)
	if m.Evaluation != EvaluateNextPoll && Combine(m.SuccessMode, next.SuccessHits) {
		next.Phase = PhaseSucceeded
		return next
	}

	if next.Phase == PhaseNotStarted {
		merge(next.StartHits, obs.Start)
		if Combine(m.StartMode, next.StartHits) {
			next.Phase = PhaseInstalling
		}
	}

	if next.Attempt >= m.MaxRetries {
		// Last chance for hits recorded but not yet combined.
		if Combine(m.SuccessMode, next.SuccessHits) {
			next.Phase = PhaseSucceeded
		} else {
			next.Phase = PhaseFailed
		}
	}
	return next
}

// Combine reduces per-pattern hits with mode. All over no patterns is false.
func Combine(mode config.Mode, hits []bool) bool {
	switch mode {
	case config.ModeAll:
		if len(hits) == 0 {
			return false
		}
		for _, h := range hits {
			if !h {
				return false
			}
		}
		return true
	default:
		for _, h := range hits {
			if h {
				return true
			}
		}
		return false
	}
}

func merge(sticky, observed []bool) {
	for i := range sticky {
		if i < len(observed) && observed[i] {
			sticky[i] = true
		}
	}
}

func (s State) clone() State {
	c := s
	c.StartHits = append([]bool(nil), s.StartHits...)
	c.SuccessHits = append([]bool(nil), s.SuccessHits...)
	return c
}
