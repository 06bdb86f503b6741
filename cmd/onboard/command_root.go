// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wingedpig/onboard/internal/config"
)

type rootOptions struct {
	configPath string
	debug      bool
	statusAddr string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	run := newRunCmd(opts)

	root := &cobra.Command{
		Use:           "onboard",
		Short:         "Track application installs during device onboarding",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: auto-detect)")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug mode (debug renderer arguments, no restart; markers are still written)")
	flags.StringVar(&opts.statusAddr, "status-addr", "", "Status API listen address (overrides config)")

	root.AddCommand(run)
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}

// resolveConfigPath returns the --config value or the first settings file
// found on disk.
func (o *rootOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.NewLoader().FindConfig()
}

// loadConfig loads, validates and expands the settings file.
func (o *rootOptions) loadConfig(ctx context.Context) (*config.Config, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader().LoadWithDefaults(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.debug {
		cfg.Debug = true
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config.NewTemplateExpander().ExpandConfig(cfg, config.NewTemplateContext(cfg))
}
