// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package grants provides a static, config-driven source of actor
// capabilities backed by glob permission patterns.
package grants

import (
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/dimension"
)

// Error codes returned by the provider.
const (
	CodeInvalidPattern = "INVALID_PERMISSION_PATTERN"
	CodeInvalidActor   = "INVALID_ACTOR"
	CodeUnknownRole    = "UNKNOWN_ROLE"
)

// compiledPermission holds a permission pattern and its compiled glob.
type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// Provider holds per-actor permission patterns and operator status.
//
// Thread-safety: roles is immutable after construction. Everything else is
// protected by mu.
type Provider struct {
	roles     map[string][]compiledPermission // roleName → patterns (immutable)
	patterns  map[string][]compiledPermission // actorID → direct grants
	actorRole map[string]string               // actorID → roleName
	operators map[string]bool
	mu        sync.RWMutex
}

// NewProvider creates a provider with access.DefaultRoles.
//
// Panics if default roles contain invalid permission patterns (code bug).
func NewProvider() *Provider {
	p, err := NewProviderWithRoles(access.DefaultRoles())
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return p
}

// NewProviderWithRoles creates a provider with custom role definitions.
func NewProviderWithRoles(roles map[string][]string) (*Provider, error) {
	compiledRoles := make(map[string][]compiledPermission, len(roles))
	for role, perms := range roles {
		compiled, err := compileAll(perms)
		if err != nil {
			return nil, oops.In("grants").With("role", role).Wrap(err)
		}
		compiledRoles[role] = compiled
	}
	return &Provider{
		roles:     compiledRoles,
		patterns:  make(map[string][]compiledPermission),
		actorRole: make(map[string]string),
		operators: make(map[string]bool),
	}, nil
}

func compileAll(patterns []string) ([]compiledPermission, error) {
	compiled := make([]compiledPermission, 0, len(patterns))
	for _, p := range patterns {
		// Use '.' as separator so '*' matches exactly one node segment.
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, oops.In("grants").
				Code(CodeInvalidPattern).
				With("pattern", p).
				Wrap(err)
		}
		compiled = append(compiled, compiledPermission{pattern: p, glob: g})
	}
	return compiled, nil
}

// Grant adds permission patterns to an actor.
func (p *Provider) Grant(actorID string, patterns ...string) error {
	if actorID == "" {
		return oops.In("grants").Code(CodeInvalidActor).New("actor cannot be empty")
	}
	compiled, err := compileAll(patterns)
	if err != nil {
		return oops.In("grants").With("actor", actorID).Wrap(err)
	}
	p.mu.Lock()
	p.patterns[actorID] = append(p.patterns[actorID], compiled...)
	p.mu.Unlock()
	return nil
}

// Revoke removes every direct grant from an actor. Role and operator status
// are left untouched.
func (p *Provider) Revoke(actorID string) {
	p.mu.Lock()
	delete(p.patterns, actorID)
	p.mu.Unlock()
}

// AssignRole sets the role for an actor.
func (p *Provider) AssignRole(actorID, role string) error {
	if actorID == "" {
		return oops.In("grants").Code(CodeInvalidActor).New("actor cannot be empty")
	}
	if _, ok := p.roles[role]; !ok {
		return oops.In("grants").Code(CodeUnknownRole).With("role", role).New("unknown role")
	}
	p.mu.Lock()
	p.actorRole[actorID] = role
	p.mu.Unlock()
	return nil
}

// SetOperator marks or unmarks an actor as a server operator.
func (p *Provider) SetOperator(actorID string, operator bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if operator {
		p.operators[actorID] = true
		return
	}
	delete(p.operators, actorID)
}

// Patterns returns the direct grant patterns of an actor, sorted.
func (p *Provider) Patterns(actorID string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.patterns[actorID]))
	for _, c := range p.patterns[actorID] {
		out = append(out, c.pattern)
	}
	sort.Strings(out)
	return out
}

// HasPermission reports whether any of the actor's direct or role grants
// match node.
func (p *Provider) HasPermission(actorID, node string) bool {
	p.mu.RLock()
	direct := p.patterns[actorID]
	role := p.actorRole[actorID]
	p.mu.RUnlock()

	for _, c := range direct {
		if c.glob.Match(node) {
			return true
		}
	}
	for _, c := range p.roles[role] {
		if c.glob.Match(node) {
			return true
		}
	}
	return false
}

func (p *Provider) isOperator(actorID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.operators[actorID]
}

// Actor returns a live view of actorID's capabilities. Later grants and
// revocations are visible through the returned value.
func (p *Provider) Actor(actorID string) access.Actor {
	return &actor{id: actorID, p: p}
}

type actor struct {
	id string
	p  *Provider
}

func (a *actor) ID() string { return a.id }

func (a *actor) HasBypassGrant() bool {
	return a.p.HasPermission(a.id, access.NodeBypass)
}

func (a *actor) HasDimensionGrant(d dimension.Dimension) bool {
	return a.p.HasPermission(a.id, access.DimensionNode(d))
}

func (a *actor) HasCommandGrant(kind access.CommandKind) bool {
	return a.p.HasPermission(a.id, access.CommandNode(kind))
}

func (a *actor) IsOperator() bool { return a.p.isOperator(a.id) }

func (a *actor) HasExplicitAdmin() bool {
	return a.p.HasPermission(a.id, access.NodeAdmin)
}

var _ access.Actor = (*actor)(nil)
