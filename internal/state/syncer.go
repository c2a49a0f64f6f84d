// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/holomush/dimensiongate/internal/clock"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

// DefaultSyncInterval is how often a Syncer reloads the backend when unset.
const DefaultSyncInterval = 5 * time.Second

// SyncerConfig configures a Syncer.
type SyncerConfig struct {
	// Interval between reloads. Defaults to DefaultSyncInterval if zero or negative.
	Interval time.Duration

	// Clock drives the reload ticker. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Syncer periodically calls Store.Sync so a long-running process adopts
// state changes written to the shared backend by other processes.
//
// The Syncer runs a background goroutine. Call Close to stop it.
type Syncer struct {
	store    *Store
	interval time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	startOnce sync.Once
	closeOnce sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewSyncer creates a Syncer for store. It does not start until Start.
func NewSyncer(store *Store, cfg SyncerConfig) *Syncer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:    store,
		interval: interval,
		clock:    clk,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches the reload loop. Subsequent calls are no-ops.
func (s *Syncer) Start() {
	s.startOnce.Do(func() {
		ticker := s.clock.NewTicker(s.interval)
		s.wg.Add(1)
		go s.loop(ticker)
	})
}

func (s *Syncer) loop(ticker *clock.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.syncOnce()
		}
	}
}

func (s *Syncer) syncOnce() {
	changed, err := s.store.Sync(context.Background())
	if err != nil {
		errutil.LogWarn(s.logger, "failed to sync dimension state", err)
		return
	}
	for _, d := range changed {
		s.logger.Info("adopted dimension state written by another process",
			"dimension", d.String(),
			"open", s.store.IsOpen(d))
	}
}

// Close stops the reload loop and waits for it to exit. Safe to call more
// than once.
func (s *Syncer) Close() {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
}
