// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wingedpig/onboard/internal/events"
)

// AppStatus is the last known state of one app.
type AppStatus struct {
	App       string    `json:"app" yaml:"app"`
	Phase     Phase     `json:"phase" yaml:"phase"`
	Attempt   int       `json:"attempt" yaml:"attempt"`
	Resumed   bool      `json:"resumed,omitempty" yaml:"resumed,omitempty"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// RunStatus is a point-in-time view of the run built from events.
type RunStatus struct {
	RunID         string      `json:"run_id" yaml:"run_id"`
	State         string      `json:"state" yaml:"state"` // running, completed, failed, incomplete
	Total         int         `json:"total" yaml:"total"`
	CountMismatch bool        `json:"count_mismatch" yaml:"count_mismatch"`
	Apps          []AppStatus `json:"apps" yaml:"apps"`
}

// Tracker follows monitor and run events to answer status queries.
type Tracker struct {
	mu     sync.RWMutex
	status RunStatus
	apps   map[string]*AppStatus
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{apps: make(map[string]*AppStatus)}
}

// Subscribe attaches the tracker to bus.
func (t *Tracker) Subscribe(bus events.EventBus) error {
	_, err := bus.Subscribe("app.*|run.*", t.handle)
	return err
}

func (t *Tracker) handle(ctx context.Context, e events.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.RunID != "" {
		t.status.RunID = e.RunID
	}

	switch e.Type {
	case events.EventRunStarted:
		t.status.State = "running"
		t.status.Total = events.PayloadInt(e.Payload, events.PayloadTotal)
		for _, name := range events.PayloadStrings(e.Payload, events.PayloadApps) {
			t.app(name, e.Timestamp)
		}
	case events.EventRunCountMismatch:
		t.status.CountMismatch = true
	case events.EventRunCompleted:
		t.status.State = "completed"
	case events.EventRunFailed:
		t.status.State = "failed"
	case events.EventRunIncomplete:
		t.status.State = "incomplete"

	case events.EventAppPending:
		t.app(e.App, e.Timestamp)
	case events.EventAppInstalling:
		t.setPhase(e, PhaseInstalling)
	case events.EventAppSucceeded:
		t.setPhase(e, PhaseSucceeded)
	case events.EventAppFailed:
		t.setPhase(e, PhaseFailed)
	}
	return nil
}

func (t *Tracker) app(name string, at time.Time) *AppStatus {
	a, ok := t.apps[name]
	if !ok {
		a = &AppStatus{App: name, Phase: PhaseNotStarted, UpdatedAt: at}
		t.apps[name] = a
	}
	return a
}

func (t *Tracker) setPhase(e events.Event, phase Phase) {
	a := t.app(e.App, e.Timestamp)
	a.Phase = phase
	a.Attempt = events.PayloadInt(e.Payload, events.PayloadAttempt)
	a.Resumed, _ = e.Payload[events.PayloadResumed].(bool)
	a.UpdatedAt = e.Timestamp
}

// Snapshot returns the current status, apps sorted by name.
func (t *Tracker) Snapshot() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.status
	s.Apps = make([]AppStatus, 0, len(t.apps))
	for _, a := range t.apps {
		s.Apps = append(s.Apps, *a)
	}
	sort.Slice(s.Apps, func(i, j int) bool { return s.Apps[i].App < s.Apps[j].App })
	return s
}
