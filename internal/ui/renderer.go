// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/creack/pty"

	"github.com/wingedpig/onboard/internal/config"
)

// Renderer runs the external dialog process.
type Renderer struct {
	binary      string
	args        []string
	versionArgs []string
	usePTY      bool // Run under a pseudo-terminal and log its screen output

	mu       sync.Mutex
	cmd      *exec.Cmd
	ptmx     *os.File
	waitDone chan struct{}
	exitCode int
	waitErr  error
}

// NewRenderer creates a renderer from settings. In debug mode the debug
// args replace the normal args when any are configured.
func NewRenderer(cfg config.RendererConfig, debug bool) *Renderer {
	args := cfg.Args
	if debug && len(cfg.DebugArgs) > 0 {
		args = cfg.DebugArgs
	}
	return &Renderer{
		binary:      cfg.Binary,
		args:        args,
		versionArgs: cfg.VersionArgs,
		usePTY:      wantPTY(cfg.PTY),
	}
}

func wantPTY(mode string) bool {
	switch mode {
	case config.PTYAlways:
		return true
	case config.PTYNever:
		return false
	default:
		return !isTerminal(os.Stdin)
	}
}

// Binary returns the renderer executable path.
func (r *Renderer) Binary() string {
	return r.binary
}

// Version runs the renderer with its version args and returns the first
// line it prints.
func (r *Renderer) Version(ctx context.Context) (string, error) {
	if len(r.versionArgs) == 0 {
		return "", fmt.Errorf("renderer version args not configured")
	}
	out, err := exec.CommandContext(ctx, r.binary, r.versionArgs...).Output()
	if err != nil {
		return "", fmt.Errorf("run %s %s: %w", r.binary, strings.Join(r.versionArgs, " "), err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}

// Start launches the renderer. Cancelling ctx kills it.
func (r *Renderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("renderer already started")
	}

	cmd := exec.CommandContext(ctx, r.binary, r.args...)
	log.Printf("Renderer: starting %s %v (pty: %v)", r.binary, r.args, r.usePTY)

	if r.usePTY {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return fmt.Errorf("start renderer with pty: %w", err)
		}
		r.ptmx = ptmx
		go logOutput(ptmx)
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start renderer: %w", err)
		}
	}

	r.cmd = cmd
	r.waitDone = make(chan struct{})
	go r.waitForExit()
	return nil
}

func (r *Renderer) waitForExit() {
	err := r.cmd.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ptmx != nil {
		r.ptmx.Close()
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		r.exitCode = 0
	case errors.As(err, &exitErr):
		r.exitCode = exitErr.ExitCode()
	default:
		r.exitCode = -1
		r.waitErr = err
	}
	log.Printf("Renderer: exited with code %d", r.exitCode)
	close(r.waitDone)
}

// Wait blocks until the renderer exits and returns its exit code.
// A renderer killed by a signal reports -1.
func (r *Renderer) Wait() (int, error) {
	r.mu.Lock()
	done := r.waitDone
	r.mu.Unlock()
	if done == nil {
		return 0, fmt.Errorf("renderer not started")
	}

	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode, r.waitErr
}

func logOutput(rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			log.Printf("Renderer: %s", line)
		}
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
