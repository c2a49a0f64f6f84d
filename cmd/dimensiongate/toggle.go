// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/gate"
)

// CodeCommandDenied is returned when the acting actor lacks the command grant.
const CodeCommandDenied = "COMMAND_DENIED"

// NewToggleCmd creates the open (open=true) or close subcommand.
func NewToggleCmd(deps *Deps, open bool) *cobra.Command {
	verb, state := "close", "closed"
	if open {
		verb, state = "open", "open"
	}
	var as string

	cmd := &cobra.Command{
		Use:   verb + " <dimension>",
		Short: "Mark a dimension as " + state,
		Long: `Change the persisted state of a dimension. The change is
checked against the acting actor's command grants; without --as the
console actor is used, which may run every command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToggle(cmd, deps.withDefaults(), args[0], as, open)
		},
	}
	cmd.Flags().StringVar(&as, "as", consoleActor, "actor performing the change")
	return cmd
}

func runToggle(cmd *cobra.Command, deps *Deps, token, as string, open bool) error {
	d, err := dimension.Parse(token)
	if err != nil {
		return err
	}

	rt, err := openRuntime(cmd, deps)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck // state was saved by SetOpen

	decision := rt.gate.Toggle(cmd.Context(), rt.actor(as), d, open)
	if !decision.Allow {
		return oops.In("command").
			Code(CodeCommandDenied).
			With("actor", as).
			With("dimension", d.String()).
			New(decision.Message())
	}
	cmd.Println(toggleMessage(decision, open))
	return nil
}

func toggleMessage(decision gate.Decision, open bool) string {
	if !decision.Changed {
		return decision.Message()
	}
	return "The " + decision.Dimension.DisplayName() + " dimension is now " + dimension.StatusText(open) + "."
}
