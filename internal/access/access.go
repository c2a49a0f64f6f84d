// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package access decides whether an actor may enter a dimension or run an
// administrative command.
//
// Capabilities are never stored here. Every decision calls back into the
// Actor, which is backed by whatever permission system the host provides
// (see the grants package for the static, config-driven one).
package access

import (
	"fmt"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/dimension"
)

// Actor exposes the capability queries the resolver needs. Implementations
// must be safe for concurrent use.
type Actor interface {
	// ID identifies the actor in metrics and events.
	ID() string
	// HasBypassGrant reports the explicit bypass-all grant.
	HasBypassGrant() bool
	// HasDimensionGrant reports the dimension-specific access grant.
	HasDimensionGrant(d dimension.Dimension) bool
	// HasCommandGrant reports the per-command grant.
	HasCommandGrant(kind CommandKind) bool
	// IsOperator reports server operator status.
	IsOperator() bool
	// HasExplicitAdmin reports the explicit admin grant.
	HasExplicitAdmin() bool
}

// CommandKind identifies an administrative command.
type CommandKind int

// Known command kinds.
const (
	CommandOpen CommandKind = iota
	CommandClose
	CommandStatus
	CommandGUI
	CommandSchedule
)

// CodeUnknownCommand is returned by ParseCommandKind for unrecognized tokens.
const CodeUnknownCommand = "UNKNOWN_COMMAND"

var commandKindStrings = [...]string{
	"open",
	"close",
	"status",
	"gui",
	"schedule",
}

func (k CommandKind) String() string {
	if k >= 0 && int(k) < len(commandKindStrings) {
		return commandKindStrings[k]
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// CommandKinds returns every known command kind.
func CommandKinds() []CommandKind {
	return []CommandKind{CommandOpen, CommandClose, CommandStatus, CommandGUI, CommandSchedule}
}

// ParseCommandKind converts a command token into a CommandKind.
func ParseCommandKind(token string) (CommandKind, error) {
	lower := strings.ToLower(strings.TrimSpace(token))
	for i, s := range commandKindStrings {
		if s == lower {
			return CommandKind(i), nil
		}
	}
	return 0, oops.In("access").
		Code(CodeUnknownCommand).
		With("token", token).
		Errorf("unknown command %q", token)
}
