// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/wingedpig/onboard/internal/config"
)

// BootTimeFunc returns the system boot time in Unix seconds.
type BootTimeFunc func() (uint64, error)

// ResolveLookback turns the initial_lookback setting into a window.
// "boot" reaches back to system boot; bootTime defaults to host.BootTime.
func ResolveLookback(value string, now time.Time, bootTime BootTimeFunc) (time.Duration, error) {
	if value != config.LookbackBoot {
		d := config.ParseDuration(value, 0)
		if d <= 0 && value != "" {
			return 0, fmt.Errorf("invalid lookback %q", value)
		}
		return d, nil
	}

	if bootTime == nil {
		bootTime = host.BootTime
	}
	secs, err := bootTime()
	if err != nil {
		return 0, fmt.Errorf("read boot time: %w", err)
	}
	since := now.Sub(time.Unix(int64(secs), 0))
	if since <= 0 {
		return 0, fmt.Errorf("boot time %d is in the future", secs)
	}
	// Small margin for clock skew between the log writer and us.
	return since + time.Minute, nil
}
