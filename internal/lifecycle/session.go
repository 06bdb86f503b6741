// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"log"
	"path/filepath"
	"time"

	ps "github.com/mitchellh/go-ps"
)

// SessionWaiter waits for a desktop session by polling the process table
// for named processes.
type SessionWaiter struct {
	Names   []string
	Timeout time.Duration // Zero waits until ctx is done
	Poll    time.Duration

	processes func() ([]ps.Process, error)
}

// NewSessionWaiter creates a waiter for the given process names.
func NewSessionWaiter(names []string, timeout, poll time.Duration) *SessionWaiter {
	if poll <= 0 {
		poll = time.Second
	}
	return &SessionWaiter{Names: names, Timeout: timeout, Poll: poll, processes: ps.Processes}
}

// Wait returns once every named process is running. Reaching the timeout
// is logged and reports false without an error; only ctx ends the wait
// with an error.
func (w *SessionWaiter) Wait(ctx context.Context) (bool, error) {
	if len(w.Names) == 0 {
		return true, nil
	}

	var deadline <-chan time.Time
	if w.Timeout > 0 {
		timer := time.NewTimer(w.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(w.Poll)
	defer ticker.Stop()

	for {
		missing := w.missing()
		if len(missing) == 0 {
			log.Printf("Lifecycle: desktop session ready")
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline:
			log.Printf("Lifecycle: session wait timed out after %s, still missing %v", w.Timeout, missing)
			return false, nil
		case <-ticker.C:
		}
	}
}

func (w *SessionWaiter) missing() []string {
	procs, err := w.processes()
	if err != nil {
		log.Printf("Lifecycle: cannot list processes: %v", err)
		return w.Names
	}

	running := make(map[string]bool, len(procs))
	for _, p := range procs {
		running[filepath.Base(p.Executable())] = true
	}

	var missing []string
	for _, name := range w.Names {
		if !running[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
