// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/holomush/dimensiongate/internal/clock"
)

// DefaultFlushInterval is how often the report is written when unset.
const DefaultFlushInterval = 5 * time.Minute

// FlusherConfig configures a Flusher.
type FlusherConfig struct {
	// Interval between flushes. Defaults to DefaultFlushInterval if zero or negative.
	Interval time.Duration

	// Clock drives the flush ticker. Defaults to clock.Real().
	Clock clock.Clock
}

// Flusher periodically calls Aggregator.Flush on its own ticker,
// independent of schedule jobs.
//
// The Flusher runs a background goroutine. Call Close to stop it.
type Flusher struct {
	agg      *Aggregator
	interval time.Duration
	clock    clock.Clock

	startOnce sync.Once
	closeOnce sync.Once
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewFlusher creates a Flusher for agg. It does not start until Start.
func NewFlusher(agg *Aggregator, cfg FlusherConfig) *Flusher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Flusher{
		agg:      agg,
		interval: interval,
		clock:    clk,
		stopChan: make(chan struct{}),
	}
}

// Start launches the flush loop. Subsequent calls are no-ops.
func (f *Flusher) Start() {
	f.startOnce.Do(func() {
		ticker := f.clock.NewTicker(f.interval)
		f.wg.Add(1)
		go f.loop(ticker)
	})
}

func (f *Flusher) loop(ticker *clock.Ticker) {
	defer f.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-f.stopChan:
			return
		case <-ticker.C:
			f.agg.Flush(context.Background())
		}
	}
}

// Close stops the flush loop, waits for it to exit, and writes a final
// report. Safe to call more than once.
func (f *Flusher) Close() {
	f.closeOnce.Do(func() {
		close(f.stopChan)
		f.wg.Wait()
		f.agg.Flush(context.Background())
	})
}
