// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"context"
	"log"
	"time"
)

// Matcher answers whether a pattern occurred within a lookback window.
// Query errors are reported as "no match"; the caller retries on its own
// schedule.
type Matcher struct {
	source Source
	now    func() time.Time
}

// NewMatcher creates a matcher over src.
func NewMatcher(src Source) *Matcher {
	return &Matcher{source: src, now: time.Now}
}

// Source returns the underlying source.
func (m *Matcher) Source() Source {
	return m.source
}

// Matches reports whether p occurred within window. A window <= 0 searches
// the whole available history.
func (m *Matcher) Matches(ctx context.Context, p Pattern, window time.Duration) bool {
	return m.MatchesSince(ctx, p, WindowStart(m.now(), window))
}

// MatchesSince reports whether p occurred at or after since. A zero since
// searches the whole available history.
func (m *Matcher) MatchesSince(ctx context.Context, p Pattern, since time.Time) bool {
	ok, err := m.source.Query(ctx, p, since)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Logs: query %q on %s failed, treating as no match: %v", p.String(), m.source.Name(), err)
		}
		return false
	}
	return ok
}

// WindowStart returns the start of a window ending at now. A window <= 0 yields
// the zero time.
func WindowStart(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return time.Time{}
	}
	return now.Add(-window)
}
