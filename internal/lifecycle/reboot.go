// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Rebooter restarts the machine.
type Rebooter interface {
	Reboot(ctx context.Context) error
}

// CommandRebooter restarts by running a command after an optional delay.
type CommandRebooter struct {
	Command []string
	Delay   time.Duration
}

// Reboot runs the restart command. An empty command is a no-op.
func (r *CommandRebooter) Reboot(ctx context.Context) error {
	if len(r.Command) == 0 {
		log.Printf("Lifecycle: reboot command not configured, not restarting")
		return nil
	}
	if r.Delay > 0 {
		log.Printf("Lifecycle: restarting in %s", r.Delay)
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Printf("Lifecycle: restarting: %s", strings.Join(r.Command, " "))
	out, err := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", r.Command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
