// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package file stores dimension state and metrics counter totals in YAML
// documents and the metrics report in a text file. Every write is atomic
// and durable.
package file

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/internal/xdg"
)

// CodeReportNotFound matches storage.CodeReportNotFound.
const CodeReportNotFound = "REPORT_NOT_FOUND"

// document is the on-disk state layout.
type document struct {
	Dimensions map[string]dimensionState `yaml:"dimensions"`
}

type dimensionState struct {
	Open bool `yaml:"open"`
}

// countersDocument is the on-disk layout of the merged metrics totals.
type countersDocument struct {
	Dimensions map[string]dimensionCounts        `yaml:"dimensions,omitempty"`
	Actors     map[string]map[string]actorCounts `yaml:"actors,omitempty"` // actor → dimension → counts
}

type dimensionCounts struct {
	Opens       int64 `yaml:"opens"`
	Closes      int64 `yaml:"closes"`
	UptimeNanos int64 `yaml:"uptime_ns"`
}

type actorCounts struct {
	Attempts int64 `yaml:"attempts"`
	Denied   int64 `yaml:"denied"`
}

// Store persists to three files: state, counter totals next to the
// report, and the report.
//
// Read-modify-write cycles are serialized within one process. Processes
// sharing the files race only when they write within the same instant.
type Store struct {
	statePath    string
	countersPath string
	reportPath   string
	logger       *slog.Logger
	mu           sync.Mutex
}

// New creates a Store. A nil logger uses slog.Default.
func New(statePath, reportPath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		statePath:    statePath,
		countersPath: filepath.Join(filepath.Dir(reportPath), "counters.yaml"),
		reportPath:   reportPath,
		logger:       logger,
	}
}

// Load reads the state file. A missing file yields an empty map. Unknown
// dimension names are logged and skipped.
func (s *Store) Load(_ context.Context) (map[dimension.Dimension]bool, error) {
	doc, err := s.readState()
	if err != nil {
		return nil, oops.In("file").Code(state.CodeLoadFailed).With("path", s.statePath).Wrap(err)
	}

	out := make(map[dimension.Dimension]bool, len(doc.Dimensions))
	for name, ds := range doc.Dimensions {
		d, err := dimension.Parse(name)
		if err != nil {
			s.logger.Warn("skipping unknown dimension in state file",
				"path", s.statePath,
				"dimension", name)
			continue
		}
		out[d] = ds.Open
	}
	return out, nil
}

// Save rewrites the state file with d's flag changed and every other entry
// as currently stored.
func (s *Store) Save(_ context.Context, d dimension.Dimension, open bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readState()
	if err != nil {
		return oops.In("file").Code(state.CodeSaveFailed).With("path", s.statePath).Wrap(err)
	}
	if doc.Dimensions == nil {
		doc.Dimensions = make(map[string]dimensionState)
	}
	doc.Dimensions[d.String()] = dimensionState{Open: open}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return oops.In("file").Code(state.CodeSaveFailed).Wrap(err)
	}
	if err := s.writeAtomic(s.statePath, data); err != nil {
		return oops.In("file").Code(state.CodeSaveFailed).With("path", s.statePath).Wrap(err)
	}
	return nil
}

func (s *Store) readState() (document, error) {
	var doc document
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// MergeCounts adds delta to the counters file and returns the new totals.
// Unknown dimension names in the file are logged and skipped.
func (s *Store) MergeCounts(_ context.Context, delta metrics.Snapshot) (metrics.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc countersDocument
	data, err := os.ReadFile(s.countersPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return metrics.Snapshot{}, oops.In("file").Code(state.CodeReportFailed).With("path", s.countersPath).Wrap(err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return metrics.Snapshot{}, oops.In("file").Code(state.CodeReportFailed).With("path", s.countersPath).Wrap(err)
		}
	}

	totals := s.countersToSnapshot(doc).Add(delta)

	data, err = yaml.Marshal(snapshotToCounters(totals))
	if err != nil {
		return metrics.Snapshot{}, oops.In("file").Code(state.CodeReportFailed).Wrap(err)
	}
	if err := s.writeAtomic(s.countersPath, data); err != nil {
		return metrics.Snapshot{}, oops.In("file").Code(state.CodeReportFailed).With("path", s.countersPath).Wrap(err)
	}
	return totals, nil
}

func (s *Store) countersToSnapshot(doc countersDocument) metrics.Snapshot {
	snap := metrics.NewSnapshot(time.Time{})
	for name, c := range doc.Dimensions {
		d, err := dimension.Parse(name)
		if err != nil {
			s.logger.Warn("skipping unknown dimension in counters file", "path", s.countersPath, "dimension", name)
			continue
		}
		snap.Dimensions[d] = metrics.DimensionStats{
			Opens:  c.Opens,
			Closes: c.Closes,
			Uptime: time.Duration(c.UptimeNanos),
		}
	}
	for actor, perDim := range doc.Actors {
		for name, c := range perDim {
			d, err := dimension.Parse(name)
			if err != nil {
				s.logger.Warn("skipping unknown dimension in counters file", "path", s.countersPath, "dimension", name)
				continue
			}
			snap.Actors[metrics.ActorKey{Actor: actor, Dimension: d}] = metrics.ActorStats{
				Attempts: c.Attempts,
				Denied:   c.Denied,
			}
		}
	}
	return snap
}

func snapshotToCounters(snap metrics.Snapshot) countersDocument {
	doc := countersDocument{
		Dimensions: make(map[string]dimensionCounts, len(snap.Dimensions)),
		Actors:     make(map[string]map[string]actorCounts),
	}
	for d, ds := range snap.Dimensions {
		doc.Dimensions[d.String()] = dimensionCounts{
			Opens:       ds.Opens,
			Closes:      ds.Closes,
			UptimeNanos: int64(ds.Uptime),
		}
	}
	for key, as := range snap.Actors {
		if doc.Actors[key.Actor] == nil {
			doc.Actors[key.Actor] = make(map[string]actorCounts)
		}
		doc.Actors[key.Actor][key.Dimension.String()] = actorCounts{Attempts: as.Attempts, Denied: as.Denied}
	}
	return doc
}

// WriteReport replaces the report file atomically.
func (s *Store) WriteReport(_ context.Context, report string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeAtomic(s.reportPath, []byte(report)); err != nil {
		return oops.In("file").Code(state.CodeReportFailed).With("path", s.reportPath).Wrap(err)
	}
	return nil
}

// ReadReport returns the report file's contents.
func (s *Store) ReadReport(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.reportPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", oops.In("file").Code(CodeReportNotFound).With("path", s.reportPath).New("no report written")
	}
	if err != nil {
		return "", oops.In("file").With("path", s.reportPath).Wrap(err)
	}
	return string(data), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) writeAtomic(path string, data []byte) error {
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	// renameio handles temp file creation, fsync and the atomic rename.
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return oops.With("operation", "create pending file").Wrap(err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug("cleanup pending file", "path", path, "error", err)
		}
	}()

	if _, err := pending.Write(data); err != nil {
		return oops.With("operation", "write pending file").Wrap(err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return oops.With("operation", "replace file").Wrap(err)
	}
	return nil
}
