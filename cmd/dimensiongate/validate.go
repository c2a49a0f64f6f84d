// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/config"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for errors",
		Long: `Load the configuration file and report every invalid dimension,
schedule, grant or storage setting at once. Exits non-zero on any error.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	errs := unwrapJoined(cfg.Validate())
	if _, err := cfg.BuildGrants(); err != nil {
		errs = append(errs, err)
	}

	var count int
	for _, e := range errs {
		if e == nil {
			continue
		}
		count++
		cmd.PrintErrf("error: %v\n", e)
	}
	if count > 0 {
		return oops.In("validate").
			Code(config.CodeInvalid).
			With("errors", count).
			Errorf("configuration has %d error(s)", count)
	}

	enabled := 0
	for _, spec := range cfg.ScheduleSpecs() {
		if spec.Enabled {
			enabled++
		}
	}
	cmd.Printf("configuration is valid (%d dimension(s), %d schedule(s), %d enabled)\n",
		len(cfg.Dimensions), len(cfg.Schedules), enabled)
	return nil
}
