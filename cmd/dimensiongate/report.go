// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report subcommand.
func NewReportCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print the most recently flushed metrics report",
		Long: `Print the last statistics report written by a running instance:
opens, closes and uptime per dimension, plus access attempts and denials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd, deps.withDefaults())
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck // read-only use

			report, err := rt.backend.ReadReport(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Print(report)
			return nil
		},
	}
}
