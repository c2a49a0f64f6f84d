// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gate is the entry point for every dimension transition attempt
// and every administrative open or close.
package gate

import (
	"context"
	"log/slog"

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/event"
)

// States reads and changes dimension state. state.Store implements it.
type States interface {
	IsOpen(d dimension.Dimension) bool
	SetOpen(ctx context.Context, d dimension.Dimension, open bool) bool
}

// Recorder receives access counters. metrics.Aggregator implements it.
type Recorder interface {
	RecordAttempt(actor string, d dimension.Dimension)
	RecordDenied(actor string, d dimension.Dimension)
}

// Config configures a Gate.
type Config struct {
	// Notifier receives outcome events. Defaults to event.Discard.
	Notifier event.Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Gate orchestrates the resolver, the state store and the metrics
// recorder. It holds no mutable state of its own and is safe for
// concurrent use.
type Gate struct {
	resolver *access.Resolver
	states   States
	recorder Recorder
	notifier event.Notifier
	logger   *slog.Logger
}

// New creates a Gate.
func New(resolver *access.Resolver, states States, recorder Recorder, cfg Config) *Gate {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = event.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		resolver: resolver,
		states:   states,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

// Evaluate decides whether actor may enter d. Every call records an
// attempt; a denial additionally records a denial and emits an
// access.denied event. Operators are never denied: when the resolver
// refuses one, the decision is an allow with ReasonOperatorOverride.
func (g *Gate) Evaluate(ctx context.Context, actor access.Actor, d dimension.Dimension) Decision {
	id := actor.ID()
	tier := g.resolver.Resolve(actor, d)
	g.recorder.RecordAttempt(id, d)

	decision := Decision{Dimension: d, Actor: id}
	if tier != access.TierNone {
		decision.Allow = true
		decision.Reason = reasonForTier(tier)
		return decision
	}

	// Operator override applies only after the resolver has denied.
	if actor.IsOperator() {
		decision.Allow = true
		decision.Reason = ReasonOperatorOverride
		g.logger.WarnContext(ctx, "operator override on closed dimension",
			"actor", id,
			"dimension", d.String())
		g.emit(event.TypeAccessOverride, decision)
		return decision
	}

	g.recorder.RecordDenied(id, d)
	decision.Reason = ReasonDimensionClosed
	if g.resolver.CanUseCommand(actor, access.CommandOpen) {
		decision.Reason = ReasonClosedOverrideAvailable
	}
	g.logger.InfoContext(ctx, "access denied",
		"actor", id,
		"dimension", d.String(),
		"reason", decision.Reason.String())
	g.emit(event.TypeAccessDenied, decision)
	return decision
}

// Toggle opens or closes d on behalf of actor. The actor needs admin
// capability or the matching open/close command grant. Changed is false
// when d was already in the requested state; that is not an error.
func (g *Gate) Toggle(ctx context.Context, actor access.Actor, d dimension.Dimension, open bool) Decision {
	id := actor.ID()
	kind := access.CommandClose
	if open {
		kind = access.CommandOpen
	}

	decision := Decision{Dimension: d, Actor: id}
	if !g.resolver.CanUseCommand(actor, kind) {
		decision.Reason = ReasonCommandDenied
		g.logger.InfoContext(ctx, "command denied",
			"actor", id,
			"command", kind.String(),
			"dimension", d.String())
		return decision
	}

	decision.Allow = true
	decision.Reason = ReasonCommand
	decision.Changed = g.states.SetOpen(ctx, d, open)

	g.logger.InfoContext(ctx, "dimension toggled",
		"actor", id,
		"dimension", d.String(),
		"open", open,
		"changed", decision.Changed)

	if decision.Changed {
		e := event.New(event.TransitionType(open), d, id)
		e.Source = event.SourceCommand
		g.notifier.Notify(e)
	}
	return decision
}

// Status returns the open flag of every dimension.
func (g *Gate) Status() map[dimension.Dimension]bool {
	out := make(map[dimension.Dimension]bool, dimension.Count)
	for _, d := range dimension.All() {
		out[d] = g.states.IsOpen(d)
	}
	return out
}

func (g *Gate) emit(typ event.Type, decision Decision) {
	e := event.New(typ, decision.Dimension, decision.Actor)
	e.Reason = decision.Reason.String()
	g.notifier.Notify(e)
}
