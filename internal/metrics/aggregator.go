// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package metrics aggregates dimension transitions and access decisions.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/clock"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

// Reporter persists counter totals and the rendered report. Several
// processes may flush into one Reporter; MergeCounts adds a delta to the
// stored totals atomically and returns the new totals.
type Reporter interface {
	MergeCounts(ctx context.Context, delta Snapshot) (Snapshot, error)
	WriteReport(ctx context.Context, report string) error
}

// ActorKey identifies a per-actor, per-dimension counter pair.
type ActorKey struct {
	Actor     string
	Dimension dimension.Dimension
}

// DimensionStats is the copied-out state of one dimension's counters.
type DimensionStats struct {
	Opens  int64
	Closes int64
	Uptime time.Duration
}

// ActorStats is the copied-out state of one actor/dimension pair.
type ActorStats struct {
	Attempts int64
	Denied   int64
}

// Snapshot is a point-in-time copy of every counter. It shares no memory
// with the Aggregator.
type Snapshot struct {
	TakenAt    time.Time
	Dimensions map[dimension.Dimension]DimensionStats
	Actors     map[ActorKey]ActorStats
}

type dimensionCounters struct {
	opens  atomic.Int64
	closes atomic.Int64
	uptime atomic.Int64 // nanoseconds
	// lastOpen is the UnixNano of the unmatched open, or 0 when none.
	lastOpen atomic.Int64
}

type actorCounters struct {
	attempts atomic.Int64
	denied   atomic.Int64
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock sets the time source used for uptime accrual and report stamps.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithReporter sets where Flush writes the rendered report.
func WithReporter(r Reporter) Option {
	return func(a *Aggregator) { a.reporter = r }
}

// WithRegisterer mirrors every recording into Prometheus counters
// registered with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Aggregator) {
		if reg != nil {
			a.prom = newPromMirror(reg)
		}
	}
}

// WithLogger sets the logger used for swallowed flush failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Aggregator counts opens, closes, uptime, access attempts and denials.
//
// Thread-safety: every Record* call is a lock-free atomic increment.
// Per-actor counters are created on first use through sync.Map.LoadOrStore,
// so concurrent first writers share one counter and no increment is lost.
type Aggregator struct {
	dims     [dimension.Count]dimensionCounters
	actors   sync.Map // ActorKey → *actorCounters
	clock    clock.Clock
	reporter Reporter
	prom     *promMirror
	logger   *slog.Logger

	flushMu sync.Mutex
	flushed Snapshot // counters already merged into the reporter
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.flushed = NewSnapshot(time.Time{})
	return a
}

// RecordOpen counts an open and stamps the start of an uptime interval.
func (a *Aggregator) RecordOpen(d dimension.Dimension) {
	if !d.Valid() {
		return
	}
	c := &a.dims[d]
	c.opens.Add(1)
	c.lastOpen.Store(a.clock.Now().UnixNano())
	a.prom.open(d)
}

// RecordClose counts a close. If an unmatched open exists, the time since
// it is added to the dimension's uptime and the open is consumed. Without
// one, uptime is left unchanged.
func (a *Aggregator) RecordClose(d dimension.Dimension) {
	if !d.Valid() {
		return
	}
	c := &a.dims[d]
	c.closes.Add(1)
	a.prom.close(d)

	a.accrueUptime(d)
}

func (a *Aggregator) accrueUptime(d dimension.Dimension) {
	c := &a.dims[d]
	openedAt := c.lastOpen.Swap(0)
	if openedAt == 0 {
		return
	}
	if elapsed := a.clock.Now().UnixNano() - openedAt; elapsed > 0 {
		c.uptime.Add(elapsed)
		a.prom.addUptime(d, time.Duration(elapsed))
	}
}

// ObserveTransition tracks uptime for a transition another process made
// and already counted: an open starts an uptime interval unless one is
// running, a close accrues it. Open and close counts are left unchanged.
func (a *Aggregator) ObserveTransition(d dimension.Dimension, open bool) {
	if !d.Valid() {
		return
	}
	if open {
		a.dims[d].lastOpen.CompareAndSwap(0, a.clock.Now().UnixNano())
		return
	}
	a.accrueUptime(d)
}

// RecordTransition adapts the aggregator to a state.TransitionHook.
func (a *Aggregator) RecordTransition(d dimension.Dimension, open bool) {
	if open {
		a.RecordOpen(d)
		return
	}
	a.RecordClose(d)
}

// RecordAttempt counts an access attempt by actor on d.
func (a *Aggregator) RecordAttempt(actor string, d dimension.Dimension) {
	a.actor(actor, d).attempts.Add(1)
	a.prom.attempt(d)
}

// RecordDenied counts a denied access attempt by actor on d.
func (a *Aggregator) RecordDenied(actor string, d dimension.Dimension) {
	a.actor(actor, d).denied.Add(1)
	a.prom.denied(d)
}

func (a *Aggregator) actor(actor string, d dimension.Dimension) *actorCounters {
	key := ActorKey{Actor: actor, Dimension: d}
	if v, ok := a.actors.Load(key); ok {
		return v.(*actorCounters)
	}
	v, _ := a.actors.LoadOrStore(key, &actorCounters{})
	return v.(*actorCounters)
}

// Snapshot copies every counter.
func (a *Aggregator) Snapshot() Snapshot {
	snap := NewSnapshot(a.clock.Now())
	for _, d := range dimension.All() {
		c := &a.dims[d]
		snap.Dimensions[d] = DimensionStats{
			Opens:  c.opens.Load(),
			Closes: c.closes.Load(),
			Uptime: time.Duration(c.uptime.Load()),
		}
	}
	a.actors.Range(func(k, v any) bool {
		c := v.(*actorCounters)
		snap.Actors[k.(ActorKey)] = ActorStats{
			Attempts: c.attempts.Load(),
			Denied:   c.denied.Load(),
		}
		return true
	})
	return snap
}

// Reset clears every counter and pending open stamp. Totals already merged
// into the reporter are kept. Prometheus mirrors are monotonic and are not
// reset.
func (a *Aggregator) Reset() {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()
	a.flushed = NewSnapshot(time.Time{})

	for i := range a.dims {
		c := &a.dims[i]
		c.opens.Store(0)
		c.closes.Store(0)
		c.uptime.Store(0)
		c.lastOpen.Store(0)
	}
	a.actors.Clear()
}

// Pending reports whether anything was recorded since the last successful
// flush.
func (a *Aggregator) Pending() bool {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()
	return !a.Snapshot().Sub(a.flushed).IsZero()
}

// Flush merges everything recorded since the last successful flush into
// the reporter's totals and writes a report rendered from those totals.
// Failures are logged and swallowed; the unmerged counts are retried on the
// next flush. Recording is never blocked by a flush.
func (a *Aggregator) Flush(ctx context.Context) {
	if a.reporter == nil {
		return
	}

	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	current := a.Snapshot()
	totals, err := a.reporter.MergeCounts(ctx, current.Sub(a.flushed))
	if err != nil {
		errutil.LogError(a.logger, "failed to merge metrics counters",
			oops.In("metrics").Code(state.CodeReportFailed).Wrap(err))
		return
	}
	a.flushed = current

	totals.TakenAt = current.TakenAt
	if err := a.reporter.WriteReport(ctx, FormatReport(totals)); err != nil {
		errutil.LogError(a.logger, "failed to write metrics report",
			oops.In("metrics").Code(state.CodeReportFailed).Wrap(err))
	}
}
