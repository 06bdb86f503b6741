// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/onboard/internal/config"
	"github.com/wingedpig/onboard/internal/events"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestCommands_Format(t *testing.T) {
	assert.Equal(t, Command("listitem: title: Zoom, status: wait, statustext: Pending"),
		ItemStatus("Zoom", StatusWait, "Pending"))
	assert.Equal(t, Command("infobox: line one line two"), InfoBox("line one\nline two"))
	assert.Equal(t, Command("progress: total=4"), ProgressTotal(4))
	assert.Equal(t, Command("progresstext: Zoom installed"), ProgressText(" Zoom installed\r\n"))
	assert.Equal(t, Command("button1: enable"), EnableButton())
}

func TestCommands_ItemStatusSeparators(t *testing.T) {
	tests := []struct {
		title   string
		caption string
		want    Command
	}{
		{"Office, Word", "Pending", "listitem: title: Office Word, status: fail, statustext: Pending"},
		{"Zoom", "Failed: status: success", "listitem: title: Zoom, status: fail, statustext: Failed - status - success"},
		{"Zoom", "a,\nb", "listitem: title: Zoom, status: fail, statustext: a b"},
		{"Slack", "v4.1:stable", "listitem: title: Slack, status: fail, statustext: v4.1:stable"},
	}

	for _, tt := range tests {
		t.Run(tt.title+"/"+tt.caption, func(t *testing.T) {
			cmd := ItemStatus(tt.title, StatusFail, tt.caption)
			assert.Equal(t, tt.want, cmd)
			assert.Equal(t, 2, strings.Count(string(cmd), ", "))
		})
	}
}

func TestCommandFile_AppendsAcrossWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "dialog.log")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("title: Setup\n"), 0644))

	f := NewCommandFile(path)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.Emit(ProgressText(fmt.Sprintf("step %d", i)), ProgressIncrement()))
		}(i)
	}
	wg.Wait()

	lines := readLines(t, path)
	require.Len(t, lines, 41)
	assert.Equal(t, "title: Setup", lines[0])
	for i := 1; i < len(lines); i += 2 {
		assert.True(t, strings.HasPrefix(lines[i], "progresstext: step "), lines[i])
		assert.Equal(t, "progress: increment", lines[i+1])
	}
}

func TestCommandFile_EmitNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialog.log")
	require.NoError(t, NewCommandFile(path).Emit())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCommands_Events(t *testing.T) {
	tests := []struct {
		name  string
		event events.Event
		want  []Command
	}{
		{
			name:  "run started",
			event: events.Event{Type: events.EventRunStarted, Payload: map[string]interface{}{events.PayloadTotal: 2}},
			want:  []Command{"progress: total=2", "progresstext: Installing 2 applications"},
		},
		{
			name:  "pending",
			event: events.Event{Type: events.EventAppPending, App: "Zoom"},
			want:  []Command{"listitem: title: Zoom, status: wait, statustext: Pending"},
		},
		{
			name:  "installing",
			event: events.Event{Type: events.EventAppInstalling, App: "Zoom"},
			want: []Command{
				"listitem: title: Zoom, status: wait, statustext: Installing...",
				"progresstext: Installing Zoom",
			},
		},
		{
			name:  "succeeded",
			event: events.Event{Type: events.EventAppSucceeded, App: "Zoom"},
			want: []Command{
				"listitem: title: Zoom, status: success, statustext: Installed",
				"progress: increment",
				"progresstext: Zoom installed",
			},
		},
		{
			name:  "failed",
			event: events.Event{Type: events.EventAppFailed, App: "Zoom"},
			want: []Command{
				"listitem: title: Zoom, status: fail, statustext: Failed",
				"progress: increment",
				"progresstext: Zoom failed to install",
			},
		},
		{
			name: "run failed",
			event: events.Event{Type: events.EventRunFailed, Payload: map[string]interface{}{
				events.PayloadFailed: []string{"Zoom", "Slack"},
			}},
			want: []Command{
				"infobox: Some applications failed to install: Zoom, Slack. Contact IT for help.",
				"progress: complete",
				"progresstext: Done",
				"button1: enable",
			},
		},
		{
			name: "run aborted",
			event: events.Event{Type: events.EventRunFailed, Payload: map[string]interface{}{
				events.PayloadReason: "tracked app count does not match expected item count",
			}},
			want: []Command{
				"infobox: Setup stopped: tracked app count does not match expected item count. Contact IT for help.",
				"progress: complete",
				"progresstext: Done",
				"button1: enable",
			},
		},
		{
			name:  "unknown",
			event: events.Event{Type: "notify.done"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Commands(tt.event))
		})
	}
}

func TestGateway_FollowsBus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dialog.log")
	bus := events.NewBus(events.BusConfig{})
	defer bus.Close()

	require.NoError(t, NewGateway(NewCommandFile(path)).Subscribe(bus))

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.EventAppPending, App: "Chrome"}))
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.EventRunCountMismatch, Payload: map[string]interface{}{
		events.PayloadValid:    3,
		events.PayloadExpected: 4,
	}}))
	require.NoError(t, bus.Publish(ctx, events.Event{Type: events.EventRunCompleted}))

	lines := readLines(t, path)
	require.Len(t, lines, 6)
	assert.Equal(t, "listitem: title: Chrome, status: wait, statustext: Pending", lines[0])
	assert.Contains(t, lines[1], "tracking 3 applications but 4 were expected")
	assert.Equal(t, "infobox: All applications are installed. Restart to finish setup.", lines[2])
	assert.Equal(t, "button1: enable", lines[5])
}

func TestCountItems(t *testing.T) {
	dir := t.TempDir()

	hj := filepath.Join(dir, "items.hjson")
	require.NoError(t, os.WriteFile(hj, []byte(`{
  # apps shown in the dialog
  listitem: [
    { title: "Zoom" }
    { title: "Slack" }
    { title: "Chrome" }
  ]
}`), 0644))
	n, err := CountItems(hj)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	js := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"listitem": []}`), 0644))
	n, err = CountItems(js)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title": "Setup"}`), 0644))
	_, err = CountItems(bad)
	assert.Error(t, err)

	_, err = CountItems(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestRenderer_ExitCode(t *testing.T) {
	r := NewRenderer(config.RendererConfig{
		Binary:    "/bin/sh",
		Args:      []string{"-c", "exit 3"},
		DebugArgs: []string{"-c", "exit 4"},
	}, true)
	r.usePTY = false

	_, err := r.Wait()
	assert.Error(t, err)

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))

	code, err := r.Wait()
	require.NoError(t, err)
	assert.Equal(t, 4, code)
}

func TestRenderer_Cancel(t *testing.T) {
	r := NewRenderer(config.RendererConfig{Binary: "/bin/sh", Args: []string{"-c", "sleep 30"}}, false)
	r.usePTY = false

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx))
	cancel()

	code, err := r.Wait()
	require.NoError(t, err)
	assert.Equal(t, -1, code)
}

func TestRenderer_Version(t *testing.T) {
	r := NewRenderer(config.RendererConfig{
		Binary:      "/bin/sh",
		VersionArgs: []string{"-c", "echo ' 2.5.1.4795'; echo extra"},
	}, false)

	v, err := r.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.5.1.4795", v)

	r = NewRenderer(config.RendererConfig{Binary: "/bin/sh"}, false)
	_, err = r.Version(context.Background())
	assert.Error(t, err)
}
