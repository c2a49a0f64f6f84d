// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/gate"
)

// checkResult is the JSON form of a check.
type checkResult struct {
	gate.Decision
	Tier    string `json:"tier"`
	Message string `json:"message,omitempty"`
}

// NewCheckCmd creates the check subcommand.
func NewCheckCmd(deps *Deps) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check <actor> <dimension>",
		Short: "Evaluate whether an actor may enter a dimension",
		Long: `Run the admission decision for an actor entering a dimension against
the current state and grants, and print which rule decided it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, deps.withDefaults(), args[0], args[1], jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the decision as JSON")
	return cmd
}

func runCheck(cmd *cobra.Command, deps *Deps, actorID, token string, jsonOutput bool) error {
	d, err := dimension.Parse(token)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd, deps)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // read-only use

	actor := rt.actor(actorID)
	result := checkResult{
		Decision: rt.gate.Evaluate(cmd.Context(), actor, d),
		Tier:     rt.resolver.Explain(actor, d).String(),
	}
	result.Message = result.Decision.Message()

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return oops.In("check").Wrap(err)
		}
		cmd.Println(string(data))
		return nil
	}

	verdict := "DENY"
	if result.Allow {
		verdict = "ALLOW"
	}
	cmd.Printf("%s %s -> %s (reason: %s, tier: %s)\n",
		verdict, actorID, d.DisplayName(), result.Reason, result.Tier)
	if result.Message != "" {
		cmd.Println(result.Message)
	}
	return nil
}
