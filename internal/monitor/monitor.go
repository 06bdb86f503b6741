// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/wingedpig/onboard/internal/config"
	"github.com/wingedpig/onboard/internal/events"
	"github.com/wingedpig/onboard/internal/logs"
	"github.com/wingedpig/onboard/internal/markers"
)

// Settings are the polling parameters shared by every monitor of a run.
type Settings struct {
	PollInterval     time.Duration
	MaxRetries       int
	JitterUnits      int           // Startup jitter is rand[0, JitterUnits] * JitterUnit
	JitterUnit       time.Duration
	InitialLookback  time.Duration // First poll window, <= 0 for all history
	FollowupLookback time.Duration // Later poll window, 0 for 2 * PollInterval
	Evaluation       Evaluation
	Match            string // "literal" or "regex"
}

// SettingsFromConfig converts monitor settings. InitialLookback must be
// resolved separately (see ResolveLookback).
func SettingsFromConfig(cfg config.MonitorConfig) Settings {
	return Settings{
		PollInterval:     config.ParseDuration(cfg.PollInterval, 10*time.Second),
		MaxRetries:       cfg.MaxRetries,
		JitterUnits:      cfg.JitterUnits,
		JitterUnit:       config.ParseDuration(cfg.JitterUnit, time.Second),
		FollowupLookback: config.ParseDuration(cfg.FollowupLookback, 0),
		Evaluation:       Evaluation(cfg.SuccessEvaluation),
		Match:            cfg.Match,
	}
}

// Result is a monitor's outcome.
type Result struct {
	App        string    `json:"app" yaml:"app"`
	Phase      Phase     `json:"phase" yaml:"phase"`
	Attempts   int       `json:"attempts" yaml:"attempts"`
	Resumed    bool      `json:"resumed,omitempty" yaml:"resumed,omitempty"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
}

// Monitor polls the log for one tracked app. A Monitor owns its state
// exclusively and is run once.
type Monitor struct {
	app      config.TrackedApp
	settings Settings
	machine  Machine
	start    []logs.Pattern
	success  []logs.Pattern
	matcher  *logs.Matcher
	store    markers.Store
	bus      events.Publisher

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	randn func(n int) int
}

// New creates a monitor for app. It fails if a pattern does not compile.
func New(app config.TrackedApp, settings Settings, matcher *logs.Matcher, store markers.Store, bus events.Publisher) (*Monitor, error) {
	start, err := logs.CompileAll(settings.Match, app.StartPatterns)
	if err != nil {
		return nil, fmt.Errorf("app %s start patterns: %w", app.Name, err)
	}
	success, err := logs.CompileAll(settings.Match, app.SuccessPatterns)
	if err != nil {
		return nil, fmt.Errorf("app %s success patterns: %w", app.Name, err)
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 1
	}
	if settings.FollowupLookback <= 0 {
		settings.FollowupLookback = 2 * settings.PollInterval
	}

	return &Monitor{
		app:      app,
		settings: settings,
		machine:  NewMachine(app, settings.MaxRetries, settings.Evaluation),
		start:    start,
		success:  success,
		matcher:  matcher,
		store:    store,
		bus:      bus,
		now:      time.Now,
		sleep:    sleepContext,
		randn:    rand.IntN,
	}, nil
}

// App returns the monitored app.
func (m *Monitor) App() config.TrackedApp {
	return m.app
}

// Run polls until the app reaches a terminal phase or ctx is done.
// A cancelled run returns the last non-terminal phase with ctx's error.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	res := Result{App: m.app.Name, Phase: PhaseNotStarted, StartedAt: m.now()}

	done, err := m.store.Exists(markers.AppSuccess(m.app.Name))
	if err != nil {
		log.Printf("Monitor[%s]: cannot read success marker: %v", m.app.Name, err)
	}
	if done {
		log.Printf("Monitor[%s]: already succeeded in a previous run", m.app.Name)
		res.Phase = PhaseSucceeded
		res.Resumed = true
		res.FinishedAt = m.now()
		m.publish(ctx, events.EventAppSucceeded, map[string]interface{}{
			events.PayloadResumed: true,
		})
		return res, nil
	}

	if m.settings.JitterUnits > 0 && m.settings.JitterUnit > 0 {
		jitter := time.Duration(m.randn(m.settings.JitterUnits+1)) * m.settings.JitterUnit
		if err := m.sleep(ctx, jitter); err != nil {
			res.FinishedAt = m.now()
			return res, err
		}
	}

	state := m.machine.Initial()
	var lastPoll time.Time
	for {
		window := m.settings.InitialLookback
		if !lastPoll.IsZero() {
			window = m.followupWindow(lastPoll)
		}
		lastPoll = m.now()

		var obs Observation
		if !m.machine.Pending(state) {
			obs = m.observe(ctx, state, window)
		}
		if err := ctx.Err(); err != nil {
			res.Phase = state.Phase
			res.Attempts = state.Attempt
			res.FinishedAt = m.now()
			return res, err
		}

		next := m.machine.Step(state, obs)
		m.transition(ctx, state, next)
		state = next

		if state.Phase.Terminal() {
			res.Phase = state.Phase
			res.Attempts = state.Attempt
			res.FinishedAt = m.now()
			return res, nil
		}

		if err := m.sleep(ctx, m.settings.PollInterval); err != nil {
			res.Phase = state.Phase
			res.Attempts = state.Attempt
			res.FinishedAt = m.now()
			return res, err
		}
	}
}

// followupWindow covers at least the time since the previous poll began.
func (m *Monitor) followupWindow(lastPoll time.Time) time.Duration {
	window := m.settings.FollowupLookback
	if gap := m.now().Sub(lastPoll) + m.settings.PollInterval; gap > window {
		window = gap
	}
	return window
}

// observe queries the patterns whose result can still change the state.
func (m *Monitor) observe(ctx context.Context, s State, window time.Duration) Observation {
	since := logs.WindowStart(m.now(), window)
	obs := Observation{Success: make([]bool, len(m.success))}
	shortCircuit := m.app.SuccessMode == config.ModeAny && m.settings.Evaluation != EvaluateNextPoll

	for i, p := range m.success {
		if s.SuccessHits[i] {
			continue
		}
		if m.matcher.MatchesSince(ctx, p, since) {
			obs.Success[i] = true
			log.Printf("Monitor[%s]: success pattern %q matched", m.app.Name, p.String())
			if shortCircuit {
				return obs
			}
		}
	}

	if s.Phase != PhaseNotStarted {
		return obs
	}
	if m.settings.Evaluation != EvaluateNextPoll {
		merged := append([]bool(nil), s.SuccessHits...)
		merge(merged, obs.Success)
		if Combine(m.app.SuccessMode, merged) {
			return obs
		}
	}

	obs.Start = make([]bool, len(m.start))
	for i, p := range m.start {
		if s.StartHits[i] {
			continue
		}
		if m.matcher.MatchesSince(ctx, p, since) {
			obs.Start[i] = true
			if m.app.StartMode == config.ModeAny {
				break
			}
		}
	}
	return obs
}

// transition performs the side effects of moving from prev to next.
func (m *Monitor) transition(ctx context.Context, prev, next State) {
	if prev.Phase == next.Phase {
		return
	}
	payload := map[string]interface{}{events.PayloadAttempt: next.Attempt}

	switch next.Phase {
	case PhaseInstalling:
		log.Printf("Monitor[%s]: installing (attempt %d)", m.app.Name, next.Attempt)
		m.publish(ctx, events.EventAppInstalling, payload)

	case PhaseSucceeded:
		log.Printf("Monitor[%s]: succeeded after %d attempts", m.app.Name, next.Attempt)
		if _, err := m.store.Touch(markers.AppSuccess(m.app.Name)); err != nil {
			log.Printf("Monitor[%s]: failed to write success marker: %v", m.app.Name, err)
		}
		if err := m.store.Remove(markers.AppFail(m.app.Name)); err != nil {
			log.Printf("Monitor[%s]: failed to clear stale fail marker: %v", m.app.Name, err)
		}
		m.publish(ctx, events.EventAppSucceeded, payload)

	case PhaseFailed:
		log.Printf("Monitor[%s]: failed, no success after %d attempts", m.app.Name, next.Attempt)
		if _, err := m.store.Touch(markers.AppFail(m.app.Name)); err != nil {
			log.Printf("Monitor[%s]: failed to write fail marker: %v", m.app.Name, err)
		}
		m.publish(ctx, events.EventAppFailed, payload)
	}
}

func (m *Monitor) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if m.bus == nil {
		return
	}
	// Terminal updates must reach observers even while shutting down.
	err := m.bus.Publish(context.WithoutCancel(ctx), events.Event{
		Type:    eventType,
		App:     m.app.Name,
		Payload: payload,
	})
	if err != nil {
		log.Printf("Monitor[%s]: failed to publish %s: %v", m.app.Name, eventType, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
