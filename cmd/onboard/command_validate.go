// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wingedpig/onboard/internal/config"
	"github.com/wingedpig/onboard/internal/logs"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and the tracked-app table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := config.LoadAppsFile(cfg.AppsFile)
			if err != nil {
				return err
			}

			skipped := 0
			out := cmd.OutOrStdout()
			for _, row := range rows {
				reason := rowProblem(cfg.Monitor.Match, row)
				if reason != "" {
					skipped++
					fmt.Fprintf(out, "line %d\t%s\tSKIP\t%s\n", row.Line, row.App.Name, reason)
					continue
				}
				fmt.Fprintf(out, "line %d\t%s\tOK\n", row.Line, row.App.Name)
			}
			fmt.Fprintf(out, "%d valid, %d skipped\n", len(rows)-skipped, skipped)

			if strict && skipped > 0 {
				return fmt.Errorf("%d rows would be skipped", skipped)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when any row would be skipped")
	return cmd
}

// rowProblem reports why a row would produce no monitor.
func rowProblem(match string, row config.AppRow) string {
	if !row.Valid {
		return row.Reason
	}
	if _, err := logs.CompileAll(match, row.App.StartPatterns); err != nil {
		return "start patterns: " + err.Error()
	}
	if _, err := logs.CompileAll(match, row.App.SuccessPatterns); err != nil {
		return "success patterns: " + err.Error()
	}
	return ""
}
