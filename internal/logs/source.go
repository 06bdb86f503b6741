// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logs answers "has this pattern appeared since time T" against the
// system installation log.
package logs

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/wingedpig/onboard/internal/config"
)

// Source is a read-only, queryable log.
type Source interface {
	// Name returns the source name.
	Name() string

	// Query reports whether any line at or after since matches the pattern.
	// A zero since means the whole available history.
	Query(ctx context.Context, p Pattern, since time.Time) (bool, error)

	// Status returns the current source status.
	Status() SourceStatus
}

// SourceStatus represents the health of a log source.
type SourceStatus struct {
	Connected bool      `json:"connected" yaml:"connected"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
	LastError time.Time `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	Queries   int64     `json:"queries" yaml:"queries"`
	LinesRead int64     `json:"lines_read" yaml:"lines_read"`
}

// SourceType represents the type of log source.
type SourceType string

const (
	SourceTypeFile    SourceType = "file"
	SourceTypeCommand SourceType = "command"
)

// NewSource creates a new Source from configuration.
func NewSource(cfg config.LogSourceConfig) (Source, error) {
	switch SourceType(cfg.Type) {
	case SourceTypeFile:
		return NewFileSource(cfg)
	case SourceTypeCommand:
		return NewCommandSource(cfg)
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}

// sourceBase tracks status shared by every source.
type sourceBase struct {
	statusMu sync.RWMutex
	status   SourceStatus
}

func (s *sourceBase) Status() SourceStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

func (s *sourceBase) setConnected() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Connected = true
	s.status.Error = ""
}

func (s *sourceBase) setError(err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.Connected = false
	s.status.Error = err.Error()
	s.status.LastError = time.Now()
}

func (s *sourceBase) countQuery() {
	s.statusMu.Lock()
	s.status.Queries++
	s.statusMu.Unlock()
}

func (s *sourceBase) addLines(n int) {
	s.statusMu.Lock()
	s.status.LinesRead += int64(n)
	s.statusMu.Unlock()
}

// TimestampParser extracts line timestamps.
type TimestampParser struct {
	re     *regexp.Regexp
	layout string
}

// NewTimestampParser compiles a timestamp pattern whose first capture
// group is parsed with layout. Layouts without a zone parse as local time.
func NewTimestampParser(pattern, layout string) (*TimestampParser, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("timestamp pattern needs a capture group")
	}
	if layout == "" {
		layout = time.RFC3339
	}
	return &TimestampParser{re: re, layout: layout}, nil
}

// Parse returns the line's timestamp, or false if the line has none.
func (p *TimestampParser) Parse(line string) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	m := p.re.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(p.layout, m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
