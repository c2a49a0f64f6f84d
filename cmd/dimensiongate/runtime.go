// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/access/grants"
	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/event"
	"github.com/holomush/dimensiongate/internal/gate"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/internal/storage"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

// consoleActor is the actor used when a command runs without --as. It is
// registered as an operator so every command is available to it.
const consoleActor = "console"

// runtime is the wired set of components shared by every subcommand.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	backend  storage.Backend
	store    *state.Store
	agg      *metrics.Aggregator
	grants   *grants.Provider
	resolver *access.Resolver
	events   *event.Broadcaster
	gate     *gate.Gate
}

// newRuntime opens storage, loads dimension state and wires the gate.
// reg may be nil, in which case no Prometheus counters are registered.
func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Deps, reg prometheus.Registerer) (*runtime, error) {
	backend, err := deps.StorageOpener(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, oops.In("runtime").With("backend", cfg.Storage.Backend).Wrap(err)
	}

	gp, err := cfg.BuildGrants()
	if err != nil {
		_ = backend.Close() //nolint:errcheck // grants error takes precedence
		return nil, err
	}
	gp.SetOperator(consoleActor, true)

	agg := metrics.NewAggregator(
		metrics.WithClock(deps.Clock),
		metrics.WithReporter(backend),
		metrics.WithRegisterer(reg),
		metrics.WithLogger(logger),
	)
	events := event.NewBroadcaster(logger)
	store := state.NewStore(backend,
		state.WithTransitionHook(agg.RecordTransition),
		state.WithExternalHook(func(d dimension.Dimension, open bool) {
			// The writing process counts the transition; only uptime is tracked here.
			agg.ObserveTransition(d, open)
			e := event.New(event.TransitionType(open), d, "")
			e.Source = event.SourceSync
			events.Notify(e)
		}),
		state.WithLogger(logger),
	)
	if err := store.Load(ctx, cfg.DimensionDefaults()); err != nil {
		errutil.LogError(logger, "failed to load persisted dimension state, using configured defaults", err)
	}

	resolver := access.NewResolver(store, cfg.Settings.OpsBypassRestrictions)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		store:    store,
		agg:      agg,
		grants:   gp,
		resolver: resolver,
		events:   events,
		gate: gate.New(resolver, store, agg, gate.Config{
			Notifier: events,
			Logger:   logger,
		}),
	}, nil
}

// actor resolves an actor name through the configured grants.
func (r *runtime) actor(name string) access.Actor {
	return r.grants.Actor(name)
}

// Close flushes metrics not yet reported and releases the storage
// backend.
func (r *runtime) Close() error {
	if r.agg.Pending() {
		r.agg.Flush(context.Background())
	}
	if err := r.backend.Close(); err != nil {
		return oops.In("runtime").With("operation", "close storage").Wrap(err)
	}
	return nil
}

// openRuntime loads config, builds a logger and a runtime for a one-shot
// subcommand. The caller must Close the runtime.
func openRuntime(cmd *cobra.Command, deps *Deps) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, deps)
	if err != nil {
		return nil, err
	}
	return newRuntime(cmd.Context(), cfg, logger, deps, nil)
}
