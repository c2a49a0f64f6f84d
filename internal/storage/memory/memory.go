// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides an in-process storage backend.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
)

// CodeReportNotFound matches storage.CodeReportNotFound.
const CodeReportNotFound = "REPORT_NOT_FOUND"

// Store keeps state, counter totals and the last report in memory.
type Store struct {
	mu     sync.RWMutex
	states map[dimension.Dimension]bool
	totals metrics.Snapshot
	report string
	saves  int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		states: make(map[dimension.Dimension]bool),
		totals: metrics.NewSnapshot(time.Time{}),
	}
}

// Load returns a copy of the saved states.
func (s *Store) Load(_ context.Context) (map[dimension.Dimension]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.states), nil
}

// Save stores one dimension's flag.
func (s *Store) Save(_ context.Context, d dimension.Dimension, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[d] = open
	s.saves++
	return nil
}

// Saves returns how many times Save was called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// MergeCounts adds delta to the stored totals.
func (s *Store) MergeCounts(_ context.Context, delta metrics.Snapshot) (metrics.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals = s.totals.Add(delta)
	return s.totals.Clone(), nil
}

// Totals returns a copy of the merged counters.
func (s *Store) Totals() metrics.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals.Clone()
}

// WriteReport stores the report.
func (s *Store) WriteReport(_ context.Context, report string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
	return nil
}

// ReadReport returns the stored report.
func (s *Store) ReadReport(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == "" {
		return "", oops.In("memory").Code(CodeReportNotFound).New("no report written")
	}
	return s.report, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
