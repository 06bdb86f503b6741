// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package logs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/onboard/internal/config"
)

func newTestCommandSource(t *testing.T, script string) *CommandSource {
	t.Helper()
	return newTimedCommandSource(t, script, "")
}

func newTimedCommandSource(t *testing.T, script, timeout string) *CommandSource {
	t.Helper()
	src, err := NewCommandSource(config.LogSourceConfig{
		Type:             "command",
		Command:          []string{"/bin/sh", "-c", script},
		TimestampPattern: testTimestampPattern,
		TimestampLayout:  "2006-01-02 15:04:05-07",
		QueryTimeout:     timeout,
	})
	require.NoError(t, err)
	return src
}

func TestCommandSource_Query(t *testing.T) {
	src := newTestCommandSource(t, "printf 'installd: Installing Zoom\\ninstalld: Installed Zoom\\n'")

	assert.True(t, query(t, src, "Installed Zoom", time.Time{}))
	assert.False(t, query(t, src, "Installed Slack", time.Time{}))
	assert.True(t, src.Status().Connected)
}

func TestCommandSource_TemplateArgs(t *testing.T) {
	src := newTestCommandSource(t, "[ '{{.Pattern}}' = 'Zoom' ] && [ '{{.Start}}' = '2024-01-10 11:00:00' ] && echo Zoom")

	since := time.Date(2024, 1, 10, 11, 0, 0, 0, time.Local)
	assert.True(t, query(t, src, "Zoom", since))
}

func TestCommandSource_SkipsOlderLines(t *testing.T) {
	src := newTestCommandSource(t, "printf '2024-01-10 10:00:00+00 Installed Zoom\\n'")

	assert.True(t, query(t, src, "Installed Zoom", time.Time{}))
	assert.False(t, query(t, src, "Installed Zoom", time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC)))
}

func TestCommandSource_CommandFailure(t *testing.T) {
	src := newTestCommandSource(t, "exit 3")

	_, err := src.Query(context.Background(), literalPattern("x"), time.Time{})
	require.Error(t, err)
	assert.False(t, src.Status().Connected)
}

func TestCommandSource_StopsEarlyOnMatch(t *testing.T) {
	src := newTestCommandSource(t, "echo 'Installed Zoom'; sleep 30")

	start := time.Now()
	assert.True(t, query(t, src, "Installed Zoom", time.Time{}))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandSource_KillsBackgroundChildrenOnMatch(t *testing.T) {
	src := newTestCommandSource(t, "sleep 30 & echo 'Installed Zoom'; wait")

	start := time.Now()
	assert.True(t, query(t, src, "Installed Zoom", time.Time{}))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandSource_QueryTimeout(t *testing.T) {
	src := newTimedCommandSource(t, "sleep 30 & sleep 30", "300ms")

	start := time.Now()
	_, err := src.Query(context.Background(), literalPattern("Installed Zoom"), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, src.Status().Connected)
}

func TestCommandSource_TimeoutWithOrphanedOutput(t *testing.T) {
	// The shell exits at once but leaves a child holding stdout open.
	src := newTimedCommandSource(t, "sleep 30 & echo nothing", "300ms")

	start := time.Now()
	_, err := src.Query(context.Background(), literalPattern("Installed Zoom"), time.Time{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandSource_ParentCancel(t *testing.T) {
	src := newTestCommandSource(t, "sleep 30")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := src.Query(ctx, literalPattern("x"), time.Time{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNewCommandSource_RequiresCommand(t *testing.T) {
	_, err := NewCommandSource(config.LogSourceConfig{Type: "command"})
	assert.Error(t, err)
}
