// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package accesstest provides test helpers for access control.
package accesstest

import (
	"sync"

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/dimension"
)

// Actor is an access.Actor with settable capabilities. The zero value has
// no grants.
type Actor struct {
	Name     string
	Bypass   bool
	Admin    bool
	Operator bool

	mu         sync.RWMutex
	dimensions map[dimension.Dimension]bool
	commands   map[access.CommandKind]bool
}

// NewActor creates an actor with no grants.
func NewActor(name string) *Actor {
	return &Actor{Name: name}
}

// GrantDimension gives the actor the access grant for d.
func (a *Actor) GrantDimension(d dimension.Dimension) *Actor {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dimensions == nil {
		a.dimensions = make(map[dimension.Dimension]bool)
	}
	a.dimensions[d] = true
	return a
}

// GrantCommand gives the actor the grant for kind.
func (a *Actor) GrantCommand(kind access.CommandKind) *Actor {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.commands == nil {
		a.commands = make(map[access.CommandKind]bool)
	}
	a.commands[kind] = true
	return a
}

// ID implements access.Actor.
func (a *Actor) ID() string { return a.Name }

// HasBypassGrant implements access.Actor.
func (a *Actor) HasBypassGrant() bool { return a.Bypass }

// HasDimensionGrant implements access.Actor.
func (a *Actor) HasDimensionGrant(d dimension.Dimension) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dimensions[d]
}

// HasCommandGrant implements access.Actor.
func (a *Actor) HasCommandGrant(kind access.CommandKind) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.commands[kind]
}

// IsOperator implements access.Actor.
func (a *Actor) IsOperator() bool { return a.Operator }

// HasExplicitAdmin implements access.Actor.
func (a *Actor) HasExplicitAdmin() bool { return a.Admin }

// States is a map-backed access.StateReader. Missing entries read as open.
type States map[dimension.Dimension]bool

// IsOpen implements access.StateReader.
func (s States) IsOpen(d dimension.Dimension) bool {
	open, ok := s[d]
	return !ok || open
}

var (
	_ access.Actor       = (*Actor)(nil)
	_ access.StateReader = States(nil)
)
