// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"fmt"

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/dimension"
)

// Reason explains a Decision to the notifier.
type Reason int

const (
	// ReasonBypass: the actor ignores closed state.
	ReasonBypass Reason = iota
	// ReasonDimensionGrant: the actor holds the dimension's access grant.
	ReasonDimensionGrant
	// ReasonOpen: the dimension is open.
	ReasonOpen
	// ReasonOperatorOverride: an operator passed a closed dimension with a warning.
	ReasonOperatorOverride
	// ReasonDimensionClosed: denied, and the actor cannot lift the closure.
	ReasonDimensionClosed
	// ReasonClosedOverrideAvailable: denied, but the actor may open the dimension.
	ReasonClosedOverrideAvailable
	// ReasonCommandDenied: the actor may not run the requested command.
	ReasonCommandDenied
	// ReasonCommand: the command ran.
	ReasonCommand
)

var reasonStrings = [...]string{
	"bypass",
	"dimension_grant",
	"open",
	"operator_override",
	"dimension_closed",
	"closed_override_available",
	"command_denied",
	"command",
}

func (r Reason) String() string {
	if r >= 0 && int(r) < len(reasonStrings) {
		return reasonStrings[r]
	}
	return fmt.Sprintf("unknown(%d)", int(r))
}

// MarshalText renders the reason for JSON and logs.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func reasonForTier(t access.Tier) Reason {
	switch t {
	case access.TierBypass:
		return ReasonBypass
	case access.TierDimensionGrant:
		return ReasonDimensionGrant
	default:
		return ReasonOpen
	}
}

// Decision is the outcome of Evaluate or Toggle.
type Decision struct {
	Allow     bool                `json:"allow"`
	Reason    Reason              `json:"reason"`
	Dimension dimension.Dimension `json:"dimension"`
	Actor     string              `json:"actor"`
	// Changed is set by Toggle when the dimension's state moved.
	Changed bool `json:"changed,omitempty"`
}

// Message renders a short human-readable explanation.
func (d Decision) Message() string {
	name := d.Dimension.DisplayName()
	switch d.Reason {
	case ReasonOperatorOverride:
		return fmt.Sprintf("You bypassed the closed %s dimension (operator override).", name)
	case ReasonDimensionClosed:
		return fmt.Sprintf("The %s dimension is currently closed. Contact an administrator for access.", name)
	case ReasonClosedOverrideAvailable:
		return fmt.Sprintf("The %s dimension is currently closed. You may open it yourself.", name)
	case ReasonCommandDenied:
		return "You don't have permission to use this command!"
	case ReasonCommand:
		if !d.Changed {
			return fmt.Sprintf("The %s dimension is already in that state.", name)
		}
		return fmt.Sprintf("The %s dimension has been updated.", name)
	default:
		return fmt.Sprintf("Access to the %s dimension granted (%s).", name, d.Reason)
	}
}
