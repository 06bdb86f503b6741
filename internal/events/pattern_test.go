// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern   string
		eventType string
		want      bool
	}{
		{"*", "app.pending", true},
		{"app.pending", "app.pending", true},
		{"app.pending", "app.failed", false},
		{"app.*", "app.succeeded", true},
		{"app.*", "application.succeeded", false},
		{"app.*", "run.started", false},
		{"*.failed", "app.failed", true},
		{"*.failed", "run.failed", true},
		{"*.failed", "run.completed", false},
		{"app.failed|run.*", "run.completed", true},
		{"app.failed|run.*", "app.failed", true},
		{"app.failed|run.*", "app.pending", false},
		{"app.* | run.failed", "run.failed", true},
		{"*", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.eventType, func(t *testing.T) {
			p, err := ParsePattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.eventType))
			assert.Equal(t, tt.want, MatchType(tt.pattern, tt.eventType))
		})
	}
}

func TestParsePattern_Invalid(t *testing.T) {
	for _, raw := range []string{"", "  ", "app*", "a.*.b", "*.*", "app.*|", "|run.*"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParsePattern(raw)
			assert.Error(t, err)
			assert.False(t, MatchType(raw, "app.pending"))
		})
	}
}

func TestPattern_String(t *testing.T) {
	p, err := ParsePattern("app.*|run.failed")
	require.NoError(t, err)
	assert.Equal(t, "app.*|run.failed", p.String())
}
