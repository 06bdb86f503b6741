// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/wingedpig/onboard/internal/config"
)

// CommandStartLayout formats the query start time for command templates.
const CommandStartLayout = "2006-01-02 15:04:05"

// CommandQuery is the template data for command arguments.
type CommandQuery struct {
	Start   string // since, formatted with CommandStartLayout; epoch when unbounded
	Since   time.Time
	Pattern string
}

// CommandSource runs a command per query and scans its stdout, e.g.
// ["/usr/bin/log", "show", "--style", "syslog", "--start", "{{.Start}}"].
type CommandSource struct {
	sourceBase
	command  []string
	timeout  time.Duration
	ts       *TimestampParser
	expander *config.TemplateExpander
}

const defaultQueryTimeout = time.Minute

// waitDelay bounds how long Wait lingers on inherited pipes after a kill.
const waitDelay = time.Second

// NewCommandSource creates a new command-based log source.
func NewCommandSource(cfg config.LogSourceConfig) (*CommandSource, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("command source requires command")
	}
	ts, err := NewTimestampParser(cfg.TimestampPattern, cfg.TimestampLayout)
	if err != nil {
		return nil, err
	}
	return &CommandSource{
		command:  cfg.Command,
		timeout:  config.ParseDuration(cfg.QueryTimeout, defaultQueryTimeout),
		ts:       ts,
		expander: config.NewTemplateExpander(),
	}, nil
}

// Name returns the source name.
func (s *CommandSource) Name() string {
	return fmt.Sprintf("command:%s", strings.Join(s.command, " "))
}

// Query runs the command and reports whether its output matches p.
// Lines carrying a timestamp older than since are ignored.
func (s *CommandSource) Query(ctx context.Context, p Pattern, since time.Time) (bool, error) {
	s.countQuery()

	start := since
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	args, err := s.expander.ExpandArgs(s.command, CommandQuery{
		Start:   start.Local().Format(CommandStartLayout),
		Since:   since,
		Pattern: p.String(),
	})
	if err != nil {
		return false, fmt.Errorf("expand command: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// New process group; cancel kills the command and everything it spawned.
	cmd := exec.CommandContext(qctx, args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = waitDelay
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.setError(err)
		return false, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		s.setError(err)
		return false, fmt.Errorf("starting command: %w", err)
	}
	stop := context.AfterFunc(qctx, func() { stdout.Close() })
	defer stop()

	matched, lines, scanErr := s.scan(stdout, p, since)
	s.addLines(lines)
	if matched {
		// Stop the command early; its exit status no longer matters.
		cancel()
		cmd.Wait()
		s.setConnected()
		return true, nil
	}

	waitErr := cmd.Wait()
	if qctx.Err() != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		err := fmt.Errorf("query timed out after %s", s.timeout)
		s.setError(err)
		return false, err
	}
	if scanErr != nil {
		s.setError(scanErr)
		return false, fmt.Errorf("reading: %w", scanErr)
	}
	if waitErr != nil {
		s.setError(waitErr)
		return false, fmt.Errorf("command exited: %w", waitErr)
	}

	s.setConnected()
	return false, nil
}

func (s *CommandSource) scan(r io.Reader, p Pattern, since time.Time) (bool, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lines := 0
	for scanner.Scan() {
		lines++
		line := scanner.Text()
		if !since.IsZero() {
			if t, ok := s.ts.Parse(line); ok && t.Before(since) {
				continue
			}
		}
		if p.Match(line) {
			return true, lines, nil
		}
	}
	return false, lines, scanner.Err()
}
