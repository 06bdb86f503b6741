// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle guards a run: prerequisites and re-entry checks before
// it starts, lock release and the terminal restart after it ends.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"

	version "github.com/hashicorp/go-version"
	"golang.org/x/sys/unix"

	"github.com/wingedpig/onboard/internal/markers"
)

var (
	// ErrRendererMissing means the renderer binary is absent or not executable.
	ErrRendererMissing = errors.New("renderer binary missing or not executable")

	// ErrRendererTooOld means the renderer is below the configured minimum version.
	ErrRendererTooOld = errors.New("renderer version too old")

	// ErrAlreadyDone means a previous run completed; there is nothing to do.
	ErrAlreadyDone = errors.New("onboarding already completed")

	// ErrAlreadyRunning means the lock marker is present.
	ErrAlreadyRunning = errors.New("another instance is running")
)

// Benign reports whether err means "exit successfully without work".
func Benign(err error) bool {
	return errors.Is(err, ErrAlreadyDone) || errors.Is(err, ErrAlreadyRunning)
}

// Versioner reports the renderer version.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	Store             markers.Store
	RendererBinary    string
	MinVersion        string // Empty skips the version check
	Versioner         Versioner
	Rebooter          Rebooter
	Debug             bool // Debug from settings or flags; the debug marker also enables it
	NoRebootExitCodes []int
}

// Guard runs the pre- and post-flight checks around a run.
type Guard struct {
	opts   GuardOptions
	access func(path string) error
}

// NewGuard creates a guard.
func NewGuard(opts GuardOptions) *Guard {
	return &Guard{opts: opts, access: executable}
}

// Preflight checks, in order: the renderer is executable, the renderer
// version is acceptable, no done marker, no lock marker. The lock check is
// a presence test only; two simultaneous cold starts can both pass it.
func (g *Guard) Preflight(ctx context.Context) error {
	if err := g.access(g.opts.RendererBinary); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRendererMissing, g.opts.RendererBinary, err)
	}
	if err := g.checkVersion(ctx); err != nil {
		return err
	}

	done, err := g.opts.Store.Exists(markers.KeyDone)
	if err != nil {
		return fmt.Errorf("check done marker: %w", err)
	}
	if done {
		return ErrAlreadyDone
	}

	locked, err := g.opts.Store.Exists(markers.KeyLock)
	if err != nil {
		return fmt.Errorf("check lock marker: %w", err)
	}
	if locked {
		return ErrAlreadyRunning
	}
	return nil
}

func (g *Guard) checkVersion(ctx context.Context) error {
	if g.opts.MinVersion == "" {
		return nil
	}
	want, err := version.NewVersion(g.opts.MinVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum renderer version %q: %w", g.opts.MinVersion, err)
	}
	if g.opts.Versioner == nil {
		return fmt.Errorf("%w: cannot determine version", ErrRendererTooOld)
	}
	raw, err := g.opts.Versioner.Version(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRendererTooOld, err)
	}
	have, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: unparseable version %q", ErrRendererTooOld, raw)
	}
	if have.LessThan(want) {
		return fmt.Errorf("%w: have %s, need %s", ErrRendererTooOld, have, want)
	}
	log.Printf("Lifecycle: renderer version %s (minimum %s)", have, want)
	return nil
}

// Acquire writes the lock marker.
func (g *Guard) Acquire() error {
	if _, err := g.opts.Store.Touch(markers.KeyLock); err != nil {
		return fmt.Errorf("write lock marker: %w", err)
	}
	return nil
}

// Debug reports whether debug mode is on.
func (g *Guard) Debug() bool {
	if g.opts.Debug {
		return true
	}
	on, err := g.opts.Store.Exists(markers.KeyDebug)
	if err != nil {
		log.Printf("Lifecycle: cannot read debug marker: %v", err)
	}
	return on
}

// Release removes the lock marker and every per-app fail marker. It keeps
// going past errors and returns the first one.
func (g *Guard) Release() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	keep(g.opts.Store.Remove(markers.KeyLock))

	fails, err := g.opts.Store.List(markers.SuffixFail)
	keep(err)
	for _, k := range fails {
		keep(g.opts.Store.Remove(k))
	}
	if first != nil {
		log.Printf("Lifecycle: release incomplete: %v", first)
	}
	return first
}

// Exit describes how the run ended, for the restart decision.
type Exit struct {
	RendererExitCode int
	RendererRan      bool
	Interrupted      bool
}

// Postflight releases the run and restarts the machine unless debug mode
// is on, the run was interrupted, or the renderer exited with a code that
// asks not to restart. It reports whether a restart was requested.
func (g *Guard) Postflight(ctx context.Context, exit Exit) (bool, error) {
	releaseErr := g.Release()

	switch {
	case g.Debug():
		log.Printf("Lifecycle: debug mode, skipping restart")
		return false, releaseErr
	case exit.Interrupted:
		log.Printf("Lifecycle: run interrupted, skipping restart")
		return false, releaseErr
	case exit.RendererRan && slices.Contains(g.opts.NoRebootExitCodes, exit.RendererExitCode):
		log.Printf("Lifecycle: renderer exit code %d defers restart", exit.RendererExitCode)
		return false, releaseErr
	case g.opts.Rebooter == nil:
		log.Printf("Lifecycle: no restart configured")
		return false, releaseErr
	}

	if err := g.opts.Rebooter.Reboot(context.WithoutCancel(ctx)); err != nil {
		return false, errors.Join(releaseErr, fmt.Errorf("restart: %w", err))
	}
	return true, releaseErr
}

func executable(path string) error {
	if path == "" {
		return errors.New("no path configured")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return errors.New("is a directory")
	}
	return unix.Access(path, unix.X_OK)
}
