// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator runs one monitor per tracked app and turns their
// outcomes into a single completion decision.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/onboard/internal/config"
	"github.com/wingedpig/onboard/internal/events"
	"github.com/wingedpig/onboard/internal/logs"
	"github.com/wingedpig/onboard/internal/markers"
	"github.com/wingedpig/onboard/internal/monitor"
)

// ErrCountMismatch is returned under the fatal count-mismatch policy.
var ErrCountMismatch = errors.New("tracked app count does not match expected item count")

// Options configures an Orchestrator.
type Options struct {
	RunID         string // Generated when empty
	Settings      monitor.Settings
	Matcher       *logs.Matcher
	Store         markers.Store
	Bus           events.Publisher
	CountMismatch string // config.MismatchAdvisory or config.MismatchFatal
}

// Skipped is a table row that produced no monitor.
type Skipped struct {
	Line   int    `json:"line" yaml:"line"`
	App    string `json:"app,omitempty" yaml:"app,omitempty"`
	Reason string `json:"reason" yaml:"reason"`
}

// Outcome is the aggregate result of a run.
type Outcome struct {
	RunID         string           `json:"run_id" yaml:"run_id"`
	Valid         int              `json:"valid" yaml:"valid"`
	Expected      int              `json:"expected" yaml:"expected"`
	CountMismatch bool             `json:"count_mismatch" yaml:"count_mismatch"`
	AllSucceeded  bool             `json:"all_succeeded" yaml:"all_succeeded"`
	Failed        []string         `json:"failed,omitempty" yaml:"failed,omitempty"`
	DoneWritten   bool             `json:"done_written" yaml:"done_written"`
	Skipped       []Skipped        `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Results       []monitor.Result `json:"results" yaml:"results"`
	StartedAt     time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time        `json:"finished_at" yaml:"finished_at"`
}

// Orchestrator spawns and joins app monitors.
type Orchestrator struct {
	opts Options
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.CountMismatch == "" {
		opts.CountMismatch = config.MismatchAdvisory
	}
	return &Orchestrator{opts: opts}
}

// RunID returns the run identifier stamped on the outcome.
func (o *Orchestrator) RunID() string {
	return o.opts.RunID
}

// Run monitors every valid row concurrently and blocks until all of them
// reach a terminal phase. There is no timeout at this layer; each monitor
// bounds itself with MaxRetries. A cancelled ctx stops the monitors and
// returns ctx's error without an aggregate decision.
func (o *Orchestrator) Run(ctx context.Context, rows []config.AppRow, expected int) (Outcome, error) {
	out := Outcome{RunID: o.opts.RunID, Expected: expected, StartedAt: time.Now()}

	var monitors []*monitor.Monitor
	for _, row := range rows {
		if !row.Valid {
			out.Skipped = append(out.Skipped, Skipped{Line: row.Line, App: row.App.Name, Reason: row.Reason})
			continue
		}
		m, err := monitor.New(row.App, o.opts.Settings, o.opts.Matcher, o.opts.Store, o.opts.Bus)
		if err != nil {
			log.Printf("Orchestrator: skipping row %d: %v", row.Line, err)
			out.Skipped = append(out.Skipped, Skipped{Line: row.Line, App: row.App.Name, Reason: err.Error()})
			continue
		}
		monitors = append(monitors, m)
	}
	out.Valid = len(monitors)
	out.CountMismatch = out.Valid != expected

	names := make([]string, len(monitors))
	for i, m := range monitors {
		names[i] = m.App().Name
	}
	log.Printf("Orchestrator: run %s monitoring %d apps (expected %d)", out.RunID, out.Valid, expected)
	o.publish(ctx, events.Event{Type: events.EventRunStarted, Payload: map[string]interface{}{
		events.PayloadApps:  names,
		events.PayloadTotal: out.Valid,
	}})

	if out.CountMismatch && o.opts.CountMismatch == config.MismatchFatal {
		o.warnMismatch(ctx, out)
		err := fmt.Errorf("%w: %d valid rows, %d expected", ErrCountMismatch, out.Valid, expected)
		o.publish(ctx, events.Event{Type: events.EventRunFailed, Payload: map[string]interface{}{
			events.PayloadReason: err.Error(),
		}})
		out.FinishedAt = time.Now()
		return out, err
	}

	for _, name := range names {
		o.publish(ctx, events.Event{Type: events.EventAppPending, App: name})
	}

	// Monitors never fail each other: only cancellation is returned.
	var g errgroup.Group
	out.Results = make([]monitor.Result, len(monitors))
	for i, m := range monitors {
		g.Go(func() error {
			res, err := m.Run(ctx)
			out.Results[i] = res
			return err
		})
	}

	if out.CountMismatch {
		o.warnMismatch(ctx, out)
	}

	if err := g.Wait(); err != nil {
		out.FinishedAt = time.Now()
		log.Printf("Orchestrator: run %s interrupted: %v", out.RunID, err)
		return out, err
	}

	return o.aggregate(ctx, out)
}

func (o *Orchestrator) aggregate(ctx context.Context, out Outcome) (Outcome, error) {
	out.AllSucceeded = true
	for _, r := range out.Results {
		if r.Phase != monitor.PhaseSucceeded {
			out.AllSucceeded = false
		}
	}

	fails, err := o.opts.Store.List(markers.SuffixFail)
	if err != nil {
		out.FinishedAt = time.Now()
		return out, fmt.Errorf("scan fail markers: %w", err)
	}
	for _, k := range fails {
		out.Failed = append(out.Failed, markers.AppName(k))
	}

	switch {
	case len(out.Failed) > 0:
		out.AllSucceeded = false
		log.Printf("Orchestrator: run %s finished with failures: %v", out.RunID, out.Failed)
		o.publish(ctx, events.Event{Type: events.EventRunFailed, Payload: map[string]interface{}{
			events.PayloadFailed: out.Failed,
		}})

	case out.AllSucceeded && !out.CountMismatch:
		if _, err := o.opts.Store.Touch(markers.KeyDone); err != nil {
			out.FinishedAt = time.Now()
			return out, fmt.Errorf("write done marker: %w", err)
		}
		out.DoneWritten = true
		log.Printf("Orchestrator: run %s completed, all %d apps installed", out.RunID, out.Valid)
		o.publish(ctx, events.Event{Type: events.EventRunCompleted})

	default:
		log.Printf("Orchestrator: run %s finished without failures but incomplete (valid %d, expected %d)", out.RunID, out.Valid, out.Expected)
		o.publish(ctx, events.Event{Type: events.EventRunIncomplete, Payload: map[string]interface{}{
			events.PayloadValid:    out.Valid,
			events.PayloadExpected: out.Expected,
		}})
	}

	out.FinishedAt = time.Now()
	return out, nil
}

func (o *Orchestrator) warnMismatch(ctx context.Context, out Outcome) {
	log.Printf("Orchestrator: %d valid rows but %d items expected (policy %s)", out.Valid, out.Expected, o.opts.CountMismatch)
	o.publish(ctx, events.Event{Type: events.EventRunCountMismatch, Payload: map[string]interface{}{
		events.PayloadValid:    out.Valid,
		events.PayloadExpected: out.Expected,
	}})
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if o.opts.Bus == nil {
		return
	}
	if e.RunID == "" {
		e.RunID = o.opts.RunID
	}
	if err := o.opts.Bus.Publish(context.WithoutCancel(ctx), e); err != nil {
		log.Printf("Orchestrator: failed to publish %s: %v", e.Type, err)
	}
}
