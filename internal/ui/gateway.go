// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ui

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wingedpig/onboard/internal/events"
)

// Emitter accepts renderer commands.
type Emitter interface {
	Emit(cmds ...Command) error
}

// CommandFile is the append-only command stream read by the renderer.
// It never reads or rewinds the file.
type CommandFile struct {
	path string
	mu   sync.Mutex
}

// NewCommandFile returns a command stream appending to path. The file and
// its directory are created on first write.
func NewCommandFile(path string) *CommandFile {
	return &CommandFile{path: path}
}

// Path returns the command file path.
func (f *CommandFile) Path() string {
	return f.path
}

// Emit appends cmds, one per line, in a single write.
func (f *CommandFile) Emit(cmds ...Command) error {
	if len(cmds) == 0 {
		return nil
	}
	var b strings.Builder
	for _, c := range cmds {
		b.WriteString(string(c))
		b.WriteByte('\n')
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("create command dir: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open command file: %w", err)
	}
	if _, err := file.WriteString(b.String()); err != nil {
		file.Close()
		return fmt.Errorf("write command file: %w", err)
	}
	return file.Close()
}

// Gateway renders run events as renderer commands. It keeps no renderer
// state; every command it writes is safe to repeat.
type Gateway struct {
	out Emitter
}

// NewGateway creates a gateway writing to out.
func NewGateway(out Emitter) *Gateway {
	return &Gateway{out: out}
}

// Subscribe attaches the gateway to bus. Handlers run synchronously so
// commands reach the file in publish order.
func (g *Gateway) Subscribe(bus events.EventBus) error {
	_, err := bus.Subscribe("app.*|run.*", g.Handle)
	return err
}

// Handle writes the commands for one event.
func (g *Gateway) Handle(ctx context.Context, e events.Event) error {
	cmds := Commands(e)
	if len(cmds) == 0 {
		return nil
	}
	if err := g.out.Emit(cmds...); err != nil {
		log.Printf("Gateway: failed to emit %s: %v", e.Type, err)
		return err
	}
	return nil
}

// Commands maps an event to renderer commands. Unknown events map to none.
func Commands(e events.Event) []Command {
	switch e.Type {
	case events.EventRunStarted:
		total := events.PayloadInt(e.Payload, events.PayloadTotal)
		return []Command{
			ProgressTotal(total),
			ProgressText(fmt.Sprintf("Installing %d applications", total)),
		}

	case events.EventAppPending:
		return []Command{ItemStatus(e.App, StatusWait, "Pending")}

	case events.EventAppInstalling:
		return []Command{
			ItemStatus(e.App, StatusWait, "Installing..."),
			ProgressText("Installing " + e.App),
		}

	case events.EventAppSucceeded:
		return []Command{
			ItemStatus(e.App, StatusSuccess, "Installed"),
			ProgressIncrement(),
			ProgressText(e.App + " installed"),
		}

	case events.EventAppFailed:
		return []Command{
			ItemStatus(e.App, StatusFail, "Failed"),
			ProgressIncrement(),
			ProgressText(e.App + " failed to install"),
		}

	case events.EventRunCountMismatch:
		return []Command{InfoBox(fmt.Sprintf(
			"Warning: tracking %d applications but %d were expected. Contact IT if anything is missing.",
			events.PayloadInt(e.Payload, events.PayloadValid),
			events.PayloadInt(e.Payload, events.PayloadExpected)))}

	case events.EventRunFailed:
		failed := events.PayloadStrings(e.Payload, events.PayloadFailed)
		if len(failed) == 0 {
			reason, _ := e.Payload[events.PayloadReason].(string)
			return finish(fmt.Sprintf("Setup stopped: %s. Contact IT for help.", reason))
		}
		return finish(fmt.Sprintf("Some applications failed to install: %s. Contact IT for help.",
			strings.Join(failed, ", ")))

	case events.EventRunCompleted:
		return finish("All applications are installed. Restart to finish setup.")

	case events.EventRunIncomplete:
		return finish(fmt.Sprintf("Setup finished, but only %d of %d expected applications were tracked.",
			events.PayloadInt(e.Payload, events.PayloadValid),
			events.PayloadInt(e.Payload, events.PayloadExpected)))
	}
	return nil
}

func finish(text string) []Command {
	return []Command{
		InfoBox(text),
		ProgressComplete(),
		ProgressText("Done"),
		EnableButton(),
	}
}
