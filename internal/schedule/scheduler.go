// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package schedule runs named jobs that open or close a dimension on a
// fixed interval.
package schedule

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/holomush/dimensiongate/internal/clock"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/event"
)

// StateSetter applies transitions. state.Store implements it.
type StateSetter interface {
	SetOpen(ctx context.Context, d dimension.Dimension, open bool) bool
}

// Config configures a Scheduler.
type Config struct {
	// Tick is the duration of one schedule tick. Defaults to DefaultTick.
	Tick time.Duration

	// Clock drives job timers. Defaults to clock.Real().
	Clock clock.Clock

	// Notifier receives transition events. Defaults to event.Discard.
	Notifier event.Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Scheduler owns one goroutine per active job.
//
// Thread-safety: all methods are safe for concurrent use. Cancel and
// CancelAll join the job goroutines before returning, so no job calls the
// StateSetter after they return.
type Scheduler struct {
	store    StateSetter
	tick     time.Duration
	clock    clock.Clock
	notifier event.Notifier
	logger   *slog.Logger

	mu   sync.Mutex
	jobs map[string]*running
}

type running struct {
	job  Job
	stop chan struct{}
	done chan struct{}
}

// New creates a Scheduler applying transitions to store.
func New(store StateSetter, cfg Config) *Scheduler {
	tick := cfg.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = event.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		tick:     tick,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		jobs:     make(map[string]*running),
	}
}

// Register validates spec and starts it, replacing any job with the same
// name. Disabled specs are not validated and only cancel the existing job.
// A rejected spec leaves any existing job untouched and returns a
// configuration error.
func (s *Scheduler) Register(spec JobSpec) error {
	if !spec.Enabled {
		s.Cancel(spec.Name)
		return nil
	}
	job, err := Compile(spec, s.tick)
	if err != nil {
		return err
	}
	s.Start(job)
	return nil
}

// Start runs a compiled job, replacing any job with the same name.
func (s *Scheduler) Start(job Job) {
	r := &running{
		job:  job,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	// Created here rather than in the goroutine so the first deadline is
	// measured from registration.
	timer := s.clock.NewTimer(job.Delay)

	s.mu.Lock()
	prev := s.jobs[job.Name]
	s.jobs[job.Name] = r
	s.mu.Unlock()

	if prev != nil {
		prev.halt()
	}

	go s.run(r, timer)

	s.logger.Info("schedule registered",
		"job", job.Name,
		"action", job.Action.String(),
		"dimension", job.Dimension.String(),
		"delay", job.Delay,
		"interval", job.Interval)
}

func (s *Scheduler) run(r *running, timer *clock.Timer) {
	defer close(r.done)

	select {
	case <-r.stop:
		timer.Stop()
		return
	case <-timer.C:
	}
	if s.stopped(r) {
		return
	}
	s.fire(r.job)

	ticker := s.clock.NewTicker(r.job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if s.stopped(r) {
				return
			}
			s.fire(r.job)
		}
	}
}

// stopped gives stop priority over a tick that became ready at the same
// time.
func (s *Scheduler) stopped(r *running) bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (s *Scheduler) fire(job Job) {
	open := job.Action.Open()
	changed := s.store.SetOpen(context.Background(), job.Dimension, open)

	s.logger.Info("scheduled transition executed",
		"job", job.Name,
		"action", job.Action.String(),
		"dimension", job.Dimension.String(),
		"changed", changed)

	if !changed {
		return
	}
	e := event.New(event.TransitionType(open), job.Dimension, job.Name)
	e.Source = event.SourceSchedule
	s.notifier.Notify(e)
}

// halt signals the job goroutine and waits for it to exit.
func (r *running) halt() {
	close(r.stop)
	<-r.done
}

// Cancel stops and removes the named job. No-op if absent.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	r := s.jobs[name]
	delete(s.jobs, name)
	s.mu.Unlock()

	if r != nil {
		r.halt()
		s.logger.Info("schedule cancelled", "job", name)
	}
}

// CancelAll stops every job and waits for all of them to exit.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]*running)
	s.mu.Unlock()

	for _, r := range jobs {
		close(r.stop)
	}
	for _, r := range jobs {
		<-r.done
	}
	if len(jobs) > 0 {
		s.logger.Info("all schedules cancelled", "count", len(jobs))
	}
}

// Active returns the names of running jobs, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Job returns the named running job.
func (s *Scheduler) Job(name string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.jobs[name]
	if !ok {
		return Job{}, false
	}
	return r.job, true
}
