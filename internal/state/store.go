// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package state holds the open/closed flag for every dimension.
package state

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

// Error codes for the persistence error kind.
const (
	CodeSaveFailed = "PERSISTENCE_SAVE_FAILED"
	CodeLoadFailed = "PERSISTENCE_LOAD_FAILED"
	// CodeReportFailed marks a failed metrics report write.
	CodeReportFailed = "REPORT_WRITE_FAILED"
)

// Backend persists dimension state. Load may return a partial map; missing
// dimensions keep their current value. Save writes one dimension and leaves
// every other stored dimension untouched, so several processes can share a
// backend without overwriting each other's changes.
type Backend interface {
	Load(ctx context.Context) (map[dimension.Dimension]bool, error)
	Save(ctx context.Context, d dimension.Dimension, open bool) error
}

// TransitionHook observes a committed state change. Hooks run inside the
// dimension's critical section, so calls for one dimension are ordered.
// Hooks must not call back into SetOpen.
type TransitionHook func(d dimension.Dimension, open bool)

// Option configures a Store.
type Option func(*Store)

// WithTransitionHook registers a hook invoked after every changed SetOpen.
func WithTransitionHook(hook TransitionHook) Option {
	return func(s *Store) {
		if hook != nil {
			s.hooks = append(s.hooks, hook)
		}
	}
}

// WithExternalHook registers a hook invoked for every change Sync picks up
// from the backend. Like transition hooks, it runs inside the dimension's
// critical section and must not call back into the Store.
func WithExternalHook(hook TransitionHook) Option {
	return func(s *Store) {
		if hook != nil {
			s.external = append(s.external, hook)
		}
	}
}

// WithLogger sets the logger used for swallowed persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type entry struct {
	mu   sync.Mutex // serializes SetOpen for this dimension
	open atomic.Bool
}

// Store is the in-memory authority for dimension state.
//
// Thread-safety: reads are lock-free. SetOpen is linearizable per dimension
// and different dimensions mutate in parallel. Sync holds every dimension's
// lock while it reads the backend, so it never replaces a value a
// concurrent SetOpen has just saved.
type Store struct {
	entries  [dimension.Count]entry
	backend  Backend
	hooks    []TransitionHook // immutable after construction
	external []TransitionHook // immutable after construction
	logger   *slog.Logger
}

// NewStore creates a Store with every dimension open. backend may be nil,
// in which case state is never persisted.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		logger:  slog.Default(),
	}
	for i := range s.entries {
		s.entries[i].open.Store(true)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load seeds the store from configured defaults and then from the backend.
// Backend values win over defaults. Hooks are not invoked and nothing is
// saved. On a backend error the defaults stay applied and the error is
// returned for the caller to log.
func (s *Store) Load(ctx context.Context, defaults map[dimension.Dimension]bool) error {
	s.apply(defaults)

	if s.backend == nil {
		return nil
	}

	persisted, err := s.backend.Load(ctx)
	if err != nil {
		return oops.In("state").Code(CodeLoadFailed).Wrap(err)
	}
	s.apply(persisted)
	return nil
}

func (s *Store) apply(states map[dimension.Dimension]bool) {
	for d, open := range states {
		if !d.Valid() {
			continue
		}
		e := &s.entries[d]
		e.mu.Lock()
		e.open.Store(open)
		e.mu.Unlock()
	}
}

// IsOpen reports whether d is open. Unknown dimensions are open.
func (s *Store) IsOpen(d dimension.Dimension) bool {
	if !d.Valid() {
		return true
	}
	return s.entries[d].open.Load()
}

// SetOpen sets the flag for d. It returns false without side effects when
// the flag already has the requested value. Otherwise it updates memory,
// saves d, runs the transition hooks, and returns true.
//
// A save failure is logged and does not roll back the in-memory value; the
// backend may lag memory until the next successful save.
func (s *Store) SetOpen(ctx context.Context, d dimension.Dimension, open bool) bool {
	if !d.Valid() {
		return false
	}

	e := &s.entries[d]
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open.Load() == open {
		return false
	}
	e.open.Store(open)

	if err := s.persist(ctx, d, open); err != nil {
		errutil.LogError(s.logger, "failed to persist dimension state", err)
	}

	for _, hook := range s.hooks {
		hook(d, open)
	}
	return true
}

func (s *Store) persist(ctx context.Context, d dimension.Dimension, open bool) error {
	if s.backend == nil {
		return nil
	}
	if err := s.backend.Save(ctx, d, open); err != nil {
		return oops.In("state").Code(CodeSaveFailed).With("dimension", d.String()).Wrap(err)
	}
	return nil
}

// Sync reloads the backend and adopts every stored value that differs from
// memory, which is how a long-running process sees changes written by
// another one. Nothing is saved and transition hooks are not run; external
// hooks are. It returns the dimensions that changed.
func (s *Store) Sync(ctx context.Context) ([]dimension.Dimension, error) {
	if s.backend == nil {
		return nil, nil
	}

	for i := range s.entries {
		s.entries[i].mu.Lock()
	}
	defer func() {
		for i := range s.entries {
			s.entries[i].mu.Unlock()
		}
	}()

	persisted, err := s.backend.Load(ctx)
	if err != nil {
		return nil, oops.In("state").Code(CodeLoadFailed).With("operation", "sync").Wrap(err)
	}

	var changed []dimension.Dimension
	for _, d := range dimension.All() {
		open, ok := persisted[d]
		if !ok {
			continue
		}
		e := &s.entries[d]
		if e.open.Load() == open {
			continue
		}
		e.open.Store(open)
		changed = append(changed, d)
		for _, hook := range s.external {
			hook(d, open)
		}
	}
	return changed, nil
}

// Snapshot returns a copy of every dimension's flag.
func (s *Store) Snapshot() map[dimension.Dimension]bool {
	out := make(map[dimension.Dimension]bool, dimension.Count)
	for _, d := range dimension.All() {
		out[d] = s.entries[d].open.Load()
	}
	return out
}

// IsPersistenceError reports whether err is a state or report persistence failure.
func IsPersistenceError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	switch oopsErr.Code() {
	case CodeSaveFailed, CodeLoadFailed, CodeReportFailed:
		return true
	default:
		return false
	}
}
