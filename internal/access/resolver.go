// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"fmt"

	"github.com/holomush/dimensiongate/internal/dimension"
)

// StateReader reports whether a dimension is open.
type StateReader interface {
	IsOpen(d dimension.Dimension) bool
}

// Tier identifies which rule granted access.
type Tier int

// Tiers in evaluation order. TierNone means access is denied.
const (
	TierNone Tier = iota
	TierBypass
	TierDimensionGrant
	TierOpen
)

var tierStrings = [...]string{
	"none",
	"bypass",
	"dimension_grant",
	"open",
}

func (t Tier) String() string {
	if t >= 0 && int(t) < len(tierStrings) {
		return tierStrings[t]
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// rule is one tier's predicate. Rules are evaluated in order and the first
// match wins.
type rule struct {
	tier  Tier
	match func(actor Actor, d dimension.Dimension) bool
}

// Resolver evaluates the tiered access policy. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	states    StateReader
	opsBypass bool
	rules     []rule
}

// NewResolver creates a resolver reading dimension state from states.
// When opsBypass is set, operator status alone satisfies the bypass tier.
func NewResolver(states StateReader, opsBypass bool) *Resolver {
	r := &Resolver{states: states, opsBypass: opsBypass}
	r.rules = []rule{
		{tier: TierBypass, match: func(actor Actor, _ dimension.Dimension) bool {
			return r.CanBypass(actor)
		}},
		{tier: TierDimensionGrant, match: func(actor Actor, d dimension.Dimension) bool {
			return actor.HasDimensionGrant(d)
		}},
		{tier: TierOpen, match: func(_ Actor, d dimension.Dimension) bool {
			return r.states.IsOpen(d)
		}},
	}
	return r
}

// Resolve returns the first tier that grants actor access to d, or TierNone.
func (r *Resolver) Resolve(actor Actor, d dimension.Dimension) Tier {
	for _, rl := range r.rules {
		if rl.match(actor, d) {
			return rl.tier
		}
	}
	return TierNone
}

// CanAccess reports whether actor may enter d.
func (r *Resolver) CanAccess(actor Actor, d dimension.Dimension) bool {
	return r.Resolve(actor, d) != TierNone
}

// CanBypass reports whether actor ignores closed state entirely: an
// explicit bypass grant, an explicit admin grant, or operator status when
// operator bypass is enabled.
func (r *Resolver) CanBypass(actor Actor) bool {
	return actor.HasBypassGrant() ||
		actor.HasExplicitAdmin() ||
		(r.opsBypass && actor.IsOperator())
}

// CanUseCommand reports whether actor may run the given command. Admins may
// run every command.
func (r *Resolver) CanUseCommand(actor Actor, kind CommandKind) bool {
	if HasAdmin(actor) {
		return true
	}
	return actor.HasCommandGrant(kind)
}

// HasAdmin reports whether actor holds admin capability. Operators are
// always admins.
func HasAdmin(actor Actor) bool {
	return actor.HasExplicitAdmin() || actor.IsOperator()
}

// Explain reports which tier decided actor's access to d. It evaluates the
// same rules as Resolve and exists for diagnostics.
func (r *Resolver) Explain(actor Actor, d dimension.Dimension) Tier {
	return r.Resolve(actor, d)
}
