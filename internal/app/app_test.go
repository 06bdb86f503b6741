// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/onboard/internal/markers"
	"github.com/wingedpig/onboard/internal/orchestrator"
)

type fixture struct {
	dir      string
	stateDir string
	cmdFile  string
	settings map[string]interface{}
}

func newFixture(t *testing.T, apps string, logLines ...string) *fixture {
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		stateDir: filepath.Join(dir, "state"),
		cmdFile:  filepath.Join(dir, "dialog.log"),
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "apps.csv"), []byte(apps), 0644))

	stamp := time.Now().Format("2006-01-02 15:04:05-07")
	var b strings.Builder
	for _, line := range logLines {
		b.WriteString(stamp + " host installd[42]: " + line + "\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "install.log"), []byte(b.String()), 0644))

	f.settings = map[string]interface{}{
		"apps_file": filepath.Join(dir, "apps.csv"),
		"state_dir": f.stateDir,
		"logging":   map[string]interface{}{"file": filepath.Join(dir, "onboard.log")},
		"renderer": map[string]interface{}{
			"binary":       "/bin/sh",
			"args":         []string{"-c", "exit 0"},
			"command_file": f.cmdFile,
			"pty":          "never",
		},
		"monitor": map[string]interface{}{
			"poll_interval":    "0s",
			"max_retries":      3,
			"jitter_unit":      "0s",
			"initial_lookback": "1h",
		},
		"log_source": map[string]interface{}{
			"type": "file",
			"path": filepath.Join(dir, "install.log"),
		},
		"reboot": map[string]interface{}{
			"command": []string{"/bin/sh", "-c", "touch {{.StateDir}}/rebooted"},
		},
	}
	return f
}

func (f *fixture) set(section, key string, value interface{}) {
	if section == "" {
		f.settings[key] = value
		return
	}
	f.settings[section].(map[string]interface{})[key] = value
}

func (f *fixture) app(t *testing.T, opts Options) *App {
	t.Helper()
	data, err := json.Marshal(f.settings)
	require.NoError(t, err)
	path := filepath.Join(f.dir, "onboard.hjson")
	require.NoError(t, os.WriteFile(path, data, 0644))

	opts.ConfigPath = path
	a, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func (f *fixture) marker(k markers.Key) bool {
	_, err := os.Stat(filepath.Join(f.stateDir, string(k)))
	return err == nil
}

func (f *fixture) rebooted() bool {
	_, err := os.Stat(filepath.Join(f.stateDir, "rebooted"))
	return err == nil
}

func (f *fixture) commands(t *testing.T) string {
	data, err := os.ReadFile(f.cmdFile)
	require.NoError(t, err)
	return string(data)
}

func TestRun_AllInstalled(t *testing.T) {
	f := newFixture(t, "Zoom,any,Installing Zoom,any,Installed Zoom\nSlack,any,Installing Slack,any,Installed Slack\n",
		"Installing Zoom", "Installed Zoom", "Installed Slack")
	a := f.app(t, Options{Version: "test"})

	assert.Equal(t, ExitOK, a.Run(context.Background()))

	assert.True(t, f.marker(markers.KeyDone))
	assert.False(t, f.marker(markers.KeyLock))
	assert.True(t, f.marker(markers.AppSuccess("Zoom")))
	assert.True(t, f.marker(markers.AppSuccess("Slack")))
	assert.True(t, f.rebooted())

	cmds := f.commands(t)
	assert.Contains(t, cmds, "progress: total=2")
	assert.Contains(t, cmds, "listitem: title: Zoom, status: success, statustext: Installed")
	assert.Contains(t, cmds, "button1: enable")

	r, err := orchestrator.ReadReport(filepath.Join(f.stateDir, orchestrator.ReportFile))
	require.NoError(t, err)
	assert.True(t, r.Outcome.DoneWritten)
	assert.Len(t, r.Outcome.Results, 2)

	logData, err := os.ReadFile(filepath.Join(f.dir, "onboard.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Onboard test starting")
}

func TestRun_AppFailsInDebugMode(t *testing.T) {
	f := newFixture(t, "Zoom,any,Installing Zoom,any,Installed Zoom\nSlack,any,s,all,A;B\n",
		"Installed Zoom", "A")
	a := f.app(t, Options{Debug: true})

	assert.Equal(t, ExitOK, a.Run(context.Background()))

	assert.False(t, f.marker(markers.KeyDone))
	assert.False(t, f.marker(markers.KeyLock))
	assert.False(t, f.marker(markers.AppFail("Slack")))
	assert.False(t, f.rebooted())
	assert.Contains(t, f.commands(t), "Some applications failed to install: Slack")

	r, err := orchestrator.ReadReport(filepath.Join(f.stateDir, orchestrator.ReportFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"Slack"}, r.Outcome.Failed)
}

func TestRun_CountMismatch(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n", "Installed Zoom")
	f.set("renderer", "expected_items", 2)
	a := f.app(t, Options{})

	assert.Equal(t, ExitOK, a.Run(context.Background()))
	assert.False(t, f.marker(markers.KeyDone))
	assert.True(t, f.marker(markers.AppSuccess("Zoom")))
	assert.Contains(t, f.commands(t), "tracking 1 applications but 2 were expected")

	f = newFixture(t, "Zoom,any,s,any,Installed Zoom\n", "Installed Zoom")
	f.set("renderer", "expected_items", 2)
	f.settings["orchestrator"] = map[string]interface{}{"count_mismatch": "fatal"}
	a = f.app(t, Options{})

	assert.Equal(t, ExitFatal, a.Run(context.Background()))
	assert.False(t, f.marker(markers.AppSuccess("Zoom")))
	assert.False(t, f.marker(markers.KeyLock))
	assert.Contains(t, f.commands(t), "Setup stopped")
}

func TestRun_ExpectedFromItemsFile(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n", "Installed Zoom")
	items := filepath.Join(f.dir, "items.json")
	require.NoError(t, os.WriteFile(items, []byte(`{"listitem": [{"title": "Zoom"}]}`), 0644))
	f.set("renderer", "items_file", items)
	a := f.app(t, Options{})

	assert.Equal(t, ExitOK, a.Run(context.Background()))
	assert.True(t, f.marker(markers.KeyDone))
}

func TestRun_AlreadyDone(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n")
	a := f.app(t, Options{})
	_, err := a.store.Touch(markers.KeyDone)
	require.NoError(t, err)

	assert.Equal(t, ExitOK, a.Run(context.Background()))
	assert.False(t, f.rebooted())
	_, err = os.Stat(f.cmdFile)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_AlreadyRunning(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n")
	a := f.app(t, Options{})
	_, err := a.store.Touch(markers.KeyLock)
	require.NoError(t, err)

	assert.Equal(t, ExitOK, a.Run(context.Background()))
	assert.True(t, f.marker(markers.KeyLock))
	assert.False(t, f.rebooted())
}

func TestRun_RendererMissing(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n")
	f.set("renderer", "binary", filepath.Join(f.dir, "dialog"))
	a := f.app(t, Options{})

	assert.Equal(t, ExitFatal, a.Run(context.Background()))
	assert.False(t, f.marker(markers.KeyLock))
	assert.False(t, f.rebooted())
}

func TestRun_MissingAppsFile(t *testing.T) {
	f := newFixture(t, "")
	f.set("", "apps_file", filepath.Join(f.dir, "missing.csv"))
	a := f.app(t, Options{})

	assert.Equal(t, ExitFatal, a.Run(context.Background()))
	assert.False(t, f.marker(markers.KeyLock))
}

func TestRun_RendererDefersRestart(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n", "Installed Zoom")
	f.set("renderer", "args", []string{"-c", "exit 2"})
	f.set("renderer", "no_reboot_exit_codes", []int{2})
	a := f.app(t, Options{})

	assert.Equal(t, ExitOK, a.Run(context.Background()))
	assert.True(t, f.marker(markers.KeyDone))
	assert.False(t, f.rebooted())
}

func TestRun_Interrupted(t *testing.T) {
	f := newFixture(t, "Zoom,any,s,any,Installed Zoom\n")
	a := f.app(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, ExitFatal, a.Run(ctx))
	assert.False(t, f.marker(markers.KeyLock))
	assert.False(t, f.marker(markers.KeyDone))
	assert.False(t, f.rebooted())
}

func TestNew_InvalidConfig(t *testing.T) {
	f := newFixture(t, "")
	f.set("monitor", "match", "glob")
	data, err := json.Marshal(f.settings)
	require.NoError(t, err)
	path := filepath.Join(f.dir, "onboard.hjson")
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = New(Options{ConfigPath: path})
	assert.ErrorContains(t, err, "monitor.match")

	_, err = New(Options{ConfigPath: filepath.Join(f.dir, "missing.hjson")})
	assert.Error(t, err)
}

func TestNew_Overrides(t *testing.T) {
	f := newFixture(t, "")
	a := f.app(t, Options{Debug: true, StatusAddr: "127.0.0.1:0"})

	assert.True(t, a.Config().Debug)
	assert.Equal(t, "127.0.0.1:0", a.Config().Status.Listen)
	assert.Equal(t, []string{"/bin/sh", "-c", "touch " + f.stateDir + "/rebooted"}, a.Config().Reboot.Command)
}
