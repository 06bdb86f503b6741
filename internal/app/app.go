// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires settings, the log source, monitors, the renderer and
// the lifecycle guard into one onboarding run.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/onboard/internal/api"
	"github.com/wingedpig/onboard/internal/config"
	"github.com/wingedpig/onboard/internal/events"
	"github.com/wingedpig/onboard/internal/lifecycle"
	"github.com/wingedpig/onboard/internal/logs"
	"github.com/wingedpig/onboard/internal/markers"
	"github.com/wingedpig/onboard/internal/monitor"
	"github.com/wingedpig/onboard/internal/orchestrator"
	"github.com/wingedpig/onboard/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitFatal = 1
)

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Debug      bool
	StatusAddr string // Overrides status.listen when set
	Version    string
}

// Renderer is the dialog process the app launches and waits for.
type Renderer interface {
	Start(ctx context.Context) error
	Wait() (int, error)
}

// SessionWaiter blocks until the desktop session is ready.
type SessionWaiter interface {
	Wait(ctx context.Context) (bool, error)
}

// App is the main application container.
type App struct {
	config   *config.Config
	version  string
	store    markers.Store
	eventBus *events.Bus
	tracker  *monitor.Tracker
	gateway  *ui.Gateway
	renderer Renderer
	guard    *lifecycle.Guard
	session  SessionWaiter
	source   logs.Source
	bootTime monitor.BootTimeFunc
	logFile  io.Closer
}

// New loads and validates settings and builds every component. Nothing is
// started and no marker is touched.
func New(opts Options) (*App, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Debug {
		cfg.Debug = true
	}
	if opts.StatusAddr != "" {
		cfg.Status.Listen = opts.StatusAddr
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	expander := config.NewTemplateExpander()
	cfg, err = expander.ExpandConfig(cfg, config.NewTemplateContext(cfg))
	if err != nil {
		return nil, fmt.Errorf("expand config: %w", err)
	}

	app := &App{config: cfg, version: opts.Version}

	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		log.SetOutput(io.MultiWriter(os.Stderr, f))
		app.logFile = f
	}

	store, err := markers.NewFileStore(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	app.store = store

	source, err := logs.NewSource(cfg.LogSource)
	if err != nil {
		return nil, fmt.Errorf("log source: %w", err)
	}
	app.source = source

	app.eventBus = events.NewBus(events.BusConfig{})
	app.tracker = monitor.NewTracker()
	app.gateway = ui.NewGateway(ui.NewCommandFile(cfg.Renderer.CommandFile))

	renderer := ui.NewRenderer(cfg.Renderer, false)
	app.guard = lifecycle.NewGuard(lifecycle.GuardOptions{
		Store:          store,
		RendererBinary: cfg.Renderer.Binary,
		MinVersion:     cfg.Renderer.MinVersion,
		Versioner:      renderer,
		Rebooter: &lifecycle.CommandRebooter{
			Command: cfg.Reboot.Command,
			Delay:   config.ParseDuration(cfg.Reboot.Delay, 0),
		},
		Debug:             cfg.Debug,
		NoRebootExitCodes: cfg.Renderer.NoRebootExitCodes,
	})
	if app.guard.Debug() {
		renderer = ui.NewRenderer(cfg.Renderer, true)
	}
	app.renderer = renderer

	app.session = lifecycle.NewSessionWaiter(cfg.Session.WaitFor,
		config.ParseDuration(cfg.Session.Timeout, 30*time.Minute),
		config.ParseDuration(cfg.Session.Poll, 2*time.Second))

	return app, nil
}

// Config returns the expanded settings.
func (app *App) Config() *config.Config {
	return app.config
}

// Close releases the log file, if any.
func (app *App) Close() error {
	app.eventBus.Close()
	if app.logFile != nil {
		log.SetOutput(os.Stderr)
		return app.logFile.Close()
	}
	return nil
}

// Run performs one onboarding run and returns the process exit code.
// Cancelling ctx stops monitoring; the lock is still released.
func (app *App) Run(ctx context.Context) int {
	cfg := app.config
	log.Printf("Onboard %s starting (debug: %v)", app.version, app.guard.Debug())

	rows, err := config.LoadAppsFile(cfg.AppsFile)
	if err != nil {
		log.Printf("Fatal: %v", err)
		return ExitFatal
	}

	if err := app.guard.Preflight(ctx); err != nil {
		if lifecycle.Benign(err) {
			log.Printf("Lifecycle: %v, nothing to do", err)
			return ExitOK
		}
		log.Printf("Fatal: %v", err)
		return ExitFatal
	}
	if err := app.guard.Acquire(); err != nil {
		log.Printf("Fatal: %v", err)
		return ExitFatal
	}

	var exit lifecycle.Exit
	defer func() {
		if _, err := app.guard.Postflight(ctx, exit); err != nil {
			log.Printf("Lifecycle: postflight: %v", err)
		}
	}()

	code := app.run(ctx, rows, &exit)
	if ctx.Err() != nil {
		exit.Interrupted = true
	}
	return code
}

func (app *App) run(ctx context.Context, rows []config.AppRow, exit *lifecycle.Exit) int {
	cfg := app.config

	if _, err := app.session.Wait(ctx); err != nil {
		log.Printf("Lifecycle: session wait ended: %v", err)
		return ExitFatal
	}

	if err := app.tracker.Subscribe(app.eventBus); err != nil {
		log.Printf("Fatal: %v", err)
		return ExitFatal
	}
	if err := app.gateway.Subscribe(app.eventBus); err != nil {
		log.Printf("Fatal: %v", err)
		return ExitFatal
	}

	if w, ok := app.source.(interface {
		Start(context.Context) error
		Stop() error
	}); ok {
		if err := w.Start(ctx); err != nil {
			log.Printf("Logs: watch unavailable, re-reading on every query: %v", err)
		} else {
			defer w.Stop()
		}
	}

	if cfg.Status.Listen != "" {
		srv := api.NewServer(cfg.Status.Listen, api.Dependencies{
			EventBus:    app.eventBus,
			Tracker:     app.tracker,
			Store:       app.store,
			AllowRemote: cfg.Status.AllowRemote,
			Verbose:     cfg.Debug,
		})
		if err := srv.Start(); err != nil {
			log.Printf("API: status server disabled: %v", err)
		} else {
			defer srv.Shutdown(context.Background())
		}
	}

	settings := monitor.SettingsFromConfig(cfg.Monitor)
	lookback, err := monitor.ResolveLookback(cfg.Monitor.InitialLookback, time.Now(), app.bootTime)
	if err != nil {
		log.Printf("Monitor: cannot resolve initial lookback, searching all history: %v", err)
	}
	settings.InitialLookback = lookback

	expected := app.expectedItems(rows)

	orch := orchestrator.New(orchestrator.Options{
		Settings:      settings,
		Matcher:       logs.NewMatcher(app.source),
		Store:         app.store,
		Bus:           app.eventBus,
		CountMismatch: cfg.Orchestrator.CountMismatch,
	})
	app.eventBus.SetRunID(orch.RunID())

	if err := app.renderer.Start(ctx); err != nil {
		log.Printf("Fatal: %v", err)
		return ExitFatal
	}

	var (
		g       errgroup.Group
		out     orchestrator.Outcome
		runErr  error
		rendErr error
	)
	g.Go(func() error {
		out, runErr = orch.Run(ctx, rows, expected)
		return nil
	})
	g.Go(func() error {
		exit.RendererExitCode, rendErr = app.renderer.Wait()
		exit.RendererRan = rendErr == nil
		return nil
	})
	g.Wait()

	if rendErr != nil {
		log.Printf("Renderer: %v", rendErr)
	}
	if err := orchestrator.WriteReport(filepath.Join(cfg.StateDir, orchestrator.ReportFile), out); err != nil {
		log.Printf("Orchestrator: cannot write report: %v", err)
	}

	switch {
	case errors.Is(runErr, orchestrator.ErrCountMismatch):
		log.Printf("Fatal: %v", runErr)
		return ExitFatal
	case runErr != nil:
		log.Printf("Run stopped: %v", runErr)
		return ExitFatal
	}
	return ExitOK
}

// expectedItems prefers the explicit setting, then the renderer's item
// file, then the number of valid rows.
func (app *App) expectedItems(rows []config.AppRow) int {
	cfg := app.config.Renderer
	if cfg.ExpectedItems > 0 {
		return cfg.ExpectedItems
	}
	valid := len(config.ValidApps(rows))
	if cfg.ItemsFile != "" {
		n, err := ui.CountItems(cfg.ItemsFile)
		if err == nil {
			return n
		}
		log.Printf("Gateway: %v, expecting %d items", err, valid)
	}
	return valid
}
