// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wingedpig/onboard/internal/app"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the onboarding flow (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			log.Printf("Using config: %s", configPath)

			application, err := app.New(app.Options{
				ConfigPath: configPath,
				Debug:      opts.debug,
				StatusAddr: opts.statusAddr,
				Version:    version,
			})
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if code := application.Run(ctx); code != app.ExitOK {
				return exitCode(code)
			}
			return nil
		},
	}
	return cmd
}
