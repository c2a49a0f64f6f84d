// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/event"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/observability"
	"github.com/holomush/dimensiongate/internal/schedule"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gate with schedules, metrics flushing and health endpoints",
		Long: `Run dimensiongate as a long-lived process. Dimension state is loaded
from the configured storage backend, schedule jobs are started, metrics
reports are flushed periodically, and the observability server exposes
/metrics, /status and health probes. SIGINT or SIGTERM shuts down cleanly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServeWithDeps(ctx, cmd, deps)
		},
	}
}

// runServeWithDeps runs until ctx is cancelled or a server fails.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, deps)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := checkServeConfig(cfg, logger); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		ready atomic.Bool
		rt    *runtime
		sched *schedule.Scheduler
	)

	var obsServer ObservabilityServer
	var reg prometheus.Registerer
	if cfg.Observability.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(observability.Config{
			Addr:  cfg.Observability.Addr,
			Ready: ready.Load,
			Status: func() observability.Status {
				if !ready.Load() {
					return observability.Status{}
				}
				return observability.Status{
					Dimensions: rt.gate.Status(),
					Schedules:  sched.Active(),
				}
			},
			Logger: logger,
		})
		reg = obsServer.Registry()
	}

	rt, err = newRuntime(ctx, cfg, logger, deps, reg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing storage", closeErr)
		}
	}()

	eventsDone := logEvents(rt.events, logger)
	defer eventsDone()

	flusher := metrics.NewFlusher(rt.agg, metrics.FlusherConfig{
		Interval: cfg.Metrics.FlushInterval,
		Clock:    deps.Clock,
	})
	flusher.Start()
	defer flusher.Close()

	syncer := state.NewSyncer(rt.store, state.SyncerConfig{
		Interval: cfg.Settings.SyncInterval,
		Clock:    deps.Clock,
		Logger:   logger,
	})
	syncer.Start()
	defer syncer.Close()

	sched = schedule.New(rt.store, schedule.Config{
		Tick:     cfg.Settings.Tick,
		Clock:    deps.Clock,
		Notifier: rt.events,
		Logger:   logger,
	})
	defer sched.CancelAll()
	for _, spec := range cfg.ScheduleSpecs() {
		if err := sched.Register(spec); err != nil {
			errutil.LogWarn(logger, "skipping schedule", err)
		}
	}

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.In("serve").With("addr", cfg.Observability.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
	}

	ready.Store(true)
	cmd.Println("dimensiongate started")
	logger.Info("dimensiongate ready",
		"backend", cfg.Storage.Backend,
		"schedules", sched.Active(),
		"observability_addr", cfg.Observability.Addr,
	)

	<-ctx.Done()
	ready.Store(false)
	logger.Info("shutting down")
	return nil
}

// checkServeConfig logs configuration errors that only disable a single
// schedule or dimension entry and fails on everything else.
func checkServeConfig(cfg *config.Config, logger *slog.Logger) error {
	err := cfg.Validate()
	if err == nil {
		return nil
	}
	var fatal []error
	for _, e := range unwrapJoined(err) {
		if schedule.IsConfigurationError(e) {
			errutil.LogWarn(logger, "ignoring invalid configuration entry", e)
			continue
		}
		fatal = append(fatal, e)
	}
	if len(fatal) == 0 {
		return nil
	}
	return oops.In("serve").Code(config.CodeInvalid).Wrap(errors.Join(fatal...))
}

func unwrapJoined(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}

// logEvents logs every gate event until the returned stop function is
// called. stop waits for the logging goroutine to exit.
func logEvents(b *event.Broadcaster, logger *slog.Logger) (stop func()) {
	ch := b.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range ch {
			logger.Info("dimension event",
				"id", e.ID.String(),
				"type", string(e.Type),
				"dimension", e.Dimension.String(),
				"actor", e.Actor,
				"source", string(e.Source),
			)
		}
	}()
	return func() {
		b.Unsubscribe(ch)
		wg.Wait()
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It exits
// when an error is received, the channel is closed, or ctx is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
