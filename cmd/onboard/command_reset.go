// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wingedpig/onboard/internal/markers"
)

func newResetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove the done, lock and per-app markers",
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
			removed, err := markers.Reset(store)
			for _, k := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", k)
			}
			if err != nil {
				return fmt.Errorf("reset markers: %w", err)
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to reset")
			}
			return nil
		},
	}
	return cmd
}
