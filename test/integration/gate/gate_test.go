// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package gate_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/dimensiongate/internal/access"
	"github.com/holomush/dimensiongate/internal/access/grants"
	"github.com/holomush/dimensiongate/internal/clock"
	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/event"
	"github.com/holomush/dimensiongate/internal/gate"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/schedule"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/internal/storage"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stack is one fully wired gate over a real storage backend.
type stack struct {
	backend storage.Backend
	store   *state.Store
	agg     *metrics.Aggregator
	grants  *grants.Provider
	events  *event.Broadcaster
	gate    *gate.Gate
	sched   *schedule.Scheduler
	clk     *clock.FakeClock
}

func newStack(ctx context.Context, cfg config.StorageConfig, settings config.Settings) *stack {
	backend, err := storage.Open(ctx, cfg, quietLogger)
	Expect(err).NotTo(HaveOccurred())

	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	agg := metrics.NewAggregator(
		metrics.WithClock(clk),
		metrics.WithReporter(backend),
		metrics.WithLogger(quietLogger),
	)
	store := state.NewStore(backend,
		state.WithTransitionHook(agg.RecordTransition),
		state.WithLogger(quietLogger),
	)
	Expect(store.Load(ctx, map[dimension.Dimension]bool{
		dimension.Nether: false,
		dimension.End:    true,
	})).To(Succeed())

	gp := grants.NewProvider()
	Expect(gp.Grant("scout", access.DimensionNode(dimension.Nether))).To(Succeed())
	Expect(gp.Grant("ghost", access.NodeBypass)).To(Succeed())
	Expect(gp.AssignRole("keeper", "keeper")).To(Succeed())
	gp.SetOperator("op", true)

	events := event.NewBroadcaster(quietLogger)
	resolver := access.NewResolver(store, settings.OpsBypassRestrictions)
	return &stack{
		backend: backend,
		store:   store,
		agg:     agg,
		grants:  gp,
		events:  events,
		gate: gate.New(resolver, store, agg, gate.Config{
			Notifier: events,
			Logger:   quietLogger,
		}),
		sched: schedule.New(store, schedule.Config{
			Tick:     schedule.DefaultTick,
			Clock:    clk,
			Notifier: events,
			Logger:   quietLogger,
		}),
		clk: clk,
	}
}

func (s *stack) close() {
	s.sched.CancelAll()
	Expect(s.backend.Close()).To(Succeed())
}

func (s *stack) actor(id string) access.Actor {
	return s.grants.Actor(id)
}

// backendCase builds a storage config and returns a cleanup function.
type backendCase func() (config.StorageConfig, func())

func fileBackend() (config.StorageConfig, func()) {
	dir := GinkgoT().TempDir()
	return config.StorageConfig{
		Backend:    config.BackendFile,
		StatePath:  filepath.Join(dir, "state.yaml"),
		ReportPath: filepath.Join(dir, "metrics", "statistics.txt"),
	}, func() {}
}

func redisBackend() (config.StorageConfig, func()) {
	mr := miniredis.NewMiniRedis()
	Expect(mr.Start()).To(Succeed())
	return config.StorageConfig{
		Backend:   config.BackendRedis,
		RedisAddr: mr.Addr(),
		KeyPrefix: "itest",
	}, mr.Close
}

var _ = Describe("Dimension gate", func() {
	defaultSettings := config.Default().Settings

	backends := []struct {
		name string
		mk   backendCase
	}{
		{"file", fileBackend},
		{"redis", redisBackend},
	}

	for _, bc := range backends {
		mk := bc.mk
		Context("with the "+bc.name+" backend", func() {
			var (
				ctx     context.Context
				cfg     config.StorageConfig
				cleanup func()
				s       *stack
			)

			BeforeEach(func() {
				ctx = context.Background()
				cfg, cleanup = mk()
				s = newStack(ctx, cfg, defaultSettings)
			})

			AfterEach(func() {
				s.close()
				cleanup()
			})

			It("denies a plain player at a closed dimension and emits an event", func() {
				denials := s.events.Subscribe(event.TypeAccessDenied)
				defer s.events.Unsubscribe(denials)

				d := s.gate.Evaluate(ctx, s.actor("steve"), dimension.Nether)
				Expect(d.Allow).To(BeFalse())
				Expect(d.Reason).To(Equal(gate.ReasonDimensionClosed))

				var e event.Event
				Eventually(denials).Should(Receive(&e))
				Expect(e.Actor).To(Equal("steve"))
				Expect(e.Dimension).To(Equal(dimension.Nether))

				snap := s.agg.Snapshot()
				key := metrics.ActorKey{Actor: "steve", Dimension: dimension.Nether}
				Expect(snap.Actors[key].Attempts).To(BeEquivalentTo(1))
				Expect(snap.Actors[key].Denied).To(BeEquivalentTo(1))
			})

			It("admits by grant, bypass, open state and operator override", func() {
				Expect(s.gate.Evaluate(ctx, s.actor("scout"), dimension.Nether).Reason).To(Equal(gate.ReasonDimensionGrant))
				Expect(s.gate.Evaluate(ctx, s.actor("ghost"), dimension.Nether).Reason).To(Equal(gate.ReasonBypass))
				Expect(s.gate.Evaluate(ctx, s.actor("steve"), dimension.End).Reason).To(Equal(gate.ReasonOpen))
				Expect(s.gate.Evaluate(ctx, s.actor("op"), dimension.Nether).Reason).To(Equal(gate.ReasonOperatorOverride))
			})

			It("persists command toggles across a restart", func() {
				d := s.gate.Toggle(ctx, s.actor("keeper"), dimension.Nether, true)
				Expect(d.Allow).To(BeTrue())
				Expect(d.Changed).To(BeTrue())

				denied := s.gate.Toggle(ctx, s.actor("steve"), dimension.End, false)
				Expect(denied.Reason).To(Equal(gate.ReasonCommandDenied))

				Expect(s.backend.Close()).To(Succeed())
				s = newStack(ctx, cfg, defaultSettings)
				Expect(s.store.IsOpen(dimension.Nether)).To(BeTrue())
				Expect(s.store.IsOpen(dimension.End)).To(BeTrue())
			})

			It("runs a scheduled close and announces it", func() {
				transitions := s.events.Subscribe(event.TypeDimensionClosed)
				defer s.events.Unsubscribe(transitions)

				Expect(s.sched.Register(schedule.JobSpec{
					Name:          "end-curfew",
					Enabled:       true,
					Dimension:     "end",
					Action:        "close",
					DelayTicks:    2,
					IntervalTicks: schedule.DefaultIntervalTicks,
				})).To(Succeed())

				s.clk.WaitForTimers(1)
				s.clk.Advance(2 * schedule.DefaultTick)

				var e event.Event
				Eventually(transitions).Should(Receive(&e))
				Expect(e.Source).To(Equal(event.SourceSchedule))
				Expect(e.Actor).To(Equal("end-curfew"))
				Expect(s.store.IsOpen(dimension.End)).To(BeFalse())
			})

			It("flushes a report that accounts for every attempt", func() {
				var wg sync.WaitGroup
				for i := 0; i < 50; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						s.gate.Evaluate(ctx, s.actor("steve"), dimension.Nether)
					}()
				}
				wg.Wait()

				s.agg.Flush(ctx)
				report, err := s.backend.ReadReport(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(report).To(ContainSubstring("Player Access Attempts:\n  steve: 50"))
				Expect(report).To(ContainSubstring("Player Access Denied:\n  steve: 50"))
			})
		})
	}

	Context("with ops bypass disabled", func() {
		It("lets operators through with a warning decision", func() {
			ctx := context.Background()
			s := newStack(ctx, config.StorageConfig{Backend: config.BackendMemory},
				config.Settings{OpsBypassRestrictions: false})
			defer s.close()

			overrides := s.events.Subscribe(event.TypeAccessOverride)
			defer s.events.Unsubscribe(overrides)

			d := s.gate.Evaluate(ctx, s.actor("op"), dimension.Nether)
			Expect(d.Allow).To(BeTrue())
			Expect(d.Reason).To(Equal(gate.ReasonOperatorOverride))
			Eventually(overrides).Should(Receive())
		})
	})

	Context("with ops bypass enabled", func() {
		It("admits operators through the resolver without an override", func() {
			ctx := context.Background()
			s := newStack(ctx, config.StorageConfig{Backend: config.BackendMemory},
				config.Settings{OpsBypassRestrictions: true})
			defer s.close()

			d := s.gate.Evaluate(ctx, s.actor("op"), dimension.Nether)
			Expect(d.Allow).To(BeTrue())
			Expect(d.Reason).To(Equal(gate.ReasonBypass))
		})
	})
})
