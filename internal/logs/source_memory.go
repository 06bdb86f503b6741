// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemorySource is an in-memory Source, used for tests and dry runs.
type MemorySource struct {
	sourceBase
	mu       sync.Mutex
	lines    []indexedLine
	failNext int
	queries  map[string]int
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{queries: make(map[string]int)}
}

// Name returns the source name.
func (s *MemorySource) Name() string {
	return "memory"
}

// Append adds a line logged at t.
func (s *MemorySource) Append(t time.Time, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, indexedLine{at: t, text: text})
}

// FailNext makes the next n queries return an error.
func (s *MemorySource) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Queries returns how many times a pattern was queried.
func (s *MemorySource) Queries(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[pattern]
}

// Query reports whether a line at or after since matches p.
func (s *MemorySource) Query(ctx context.Context, p Pattern, since time.Time) (bool, error) {
	s.countQuery()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries[p.String()]++
	if s.failNext > 0 {
		s.failNext--
		err := fmt.Errorf("memory source: injected failure")
		s.setError(err)
		return false, err
	}

	for _, l := range s.lines {
		if !since.IsZero() && l.at.Before(since) {
			continue
		}
		if p.Match(l.text) {
			return true, nil
		}
	}
	return false, nil
}
