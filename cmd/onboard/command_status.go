// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wingedpig/onboard/internal/markers"
	"github.com/wingedpig/onboard/internal/orchestrator"
)

type statusView struct {
	StateDir string                `yaml:"state_dir"`
	Markers  markers.Summary       `yaml:"markers"`
	LastRun  *orchestrator.Outcome `yaml:"last_run,omitempty"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show markers and the last run report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			store, err := markers.NewFileStore(cfg.StateDir)
			if err != nil {
				return err
			}
			sum, err := markers.Summarize(store)
			if err != nil {
				return fmt.Errorf("read markers: %w", err)
			}

			view := statusView{StateDir: cfg.StateDir, Markers: sum}
			report, err := orchestrator.ReadReport(filepath.Join(cfg.StateDir, orchestrator.ReportFile))
			switch {
			case err == nil:
				view.LastRun = &report.Outcome
			case !errors.Is(err, fs.ErrNotExist):
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(view)
		},
	}
	return cmd
}
