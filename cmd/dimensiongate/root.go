// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the dimensiongate CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(nil)
}

func newRootCmdWithDeps(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dimensiongate",
		Short: "dimensiongate - dimension admission control",
		Long: `dimensiongate decides whether a player may travel into the nether
or the end, based on per-dimension open/closed state, permission grants,
and scheduled open/close jobs.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/dimensiongate/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd(deps))
	cmd.AddCommand(NewStatusCmd(deps))
	cmd.AddCommand(NewToggleCmd(deps, true))
	cmd.AddCommand(NewToggleCmd(deps, false))
	cmd.AddCommand(NewCheckCmd(deps))
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewReportCmd(deps))

	return cmd
}

// loadConfig reads the config file named by --config with flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// newLogger builds the process logger from cfg.
func newLogger(cfg *config.Config, deps *Deps) (*slog.Logger, error) {
	//nolint:wrapcheck // logging errors carry their own code
	return logging.New(logging.Options{
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  deps.LogWriter,
	})
}
