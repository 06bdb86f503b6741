// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		raw     string
		line    string
		matches bool
	}{
		{"literal match", "literal", "Installed Zoom", "installd: Installed Zoom.pkg", true},
		{"literal is not regex", "literal", "Zoom.*pkg", "Installed Zoom.app.pkg", false},
		{"literal default mode", "", "Zoom", "Zoom", true},
		{"regex match", "regex", `Installed (Zoom|Slack)`, "Installed Slack", true},
		{"regex anchored", "regex", `^done$`, "not done", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.mode, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.matches, p.Match(tt.line))
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile("regex", "([")
	assert.Error(t, err)

	_, err = Compile("literal", "")
	assert.Error(t, err)

	_, err = Compile("glob", "x")
	assert.Error(t, err)

	_, err = CompileAll("regex", []string{"ok", "(["})
	assert.Error(t, err)

	ps, err := CompileAll("literal", []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, ps, 2)
	assert.Equal(t, "b", ps[1].String())
}

func TestMatcher_Window(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	src := NewMemorySource()
	src.Append(now.Add(-2*time.Hour), "Installed Zoom")
	src.Append(now.Add(-5*time.Minute), "Installed Slack")

	m := NewMatcher(src)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, m.Matches(ctx, literalPattern("Installed Slack"), 10*time.Minute))
	assert.False(t, m.Matches(ctx, literalPattern("Installed Zoom"), 10*time.Minute))
	assert.True(t, m.Matches(ctx, literalPattern("Installed Zoom"), 3*time.Hour))
	assert.True(t, m.Matches(ctx, literalPattern("Installed Zoom"), 0))
}

func TestMatcher_MatchesSince(t *testing.T) {
	logged := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	src := NewMemorySource()
	src.Append(logged, "Installed Zoom")

	// The matcher's own clock plays no part in an absolute query.
	m := NewMatcher(src)
	m.now = func() time.Time { return logged.Add(1000 * time.Hour) }
	ctx := context.Background()

	assert.True(t, m.MatchesSince(ctx, literalPattern("Installed Zoom"), logged.Add(-time.Hour)))
	assert.False(t, m.MatchesSince(ctx, literalPattern("Installed Zoom"), logged.Add(time.Hour)))
	assert.True(t, m.MatchesSince(ctx, literalPattern("Installed Zoom"), time.Time{}))
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(-time.Hour), WindowStart(now, time.Hour))
	assert.True(t, WindowStart(now, 0).IsZero())
	assert.True(t, WindowStart(now, -time.Second).IsZero())
}

func TestMatcher_ErrorIsNegative(t *testing.T) {
	src := NewMemorySource()
	src.Append(time.Now(), "Installed Zoom")
	src.FailNext(1)

	m := NewMatcher(src)
	ctx := context.Background()

	assert.False(t, m.Matches(ctx, literalPattern("Installed Zoom"), 0))
	assert.True(t, m.Matches(ctx, literalPattern("Installed Zoom"), 0))
	assert.Equal(t, 2, src.Queries("Installed Zoom"))
	assert.Same(t, Source(src), m.Source())
}

func TestMatcher_CancelledContext(t *testing.T) {
	src := NewMemorySource()
	src.Append(time.Now(), "Installed Zoom")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, NewMatcher(src).Matches(ctx, literalPattern("Installed Zoom"), 0))
}
