// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package storage selects the persistence backend for dimension state and
// metrics reports.
package storage

import (
	"context"

	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
)

// CodeUnknownBackend is returned by Open for an unrecognized backend name.
const CodeUnknownBackend = "STORAGE_UNKNOWN_BACKEND"

// CodeReportNotFound is returned by ReadReport when no report was written yet.
const CodeReportNotFound = "REPORT_NOT_FOUND"

// Backend persists dimension state and the metrics report.
type Backend interface {
	state.Backend
	metrics.Reporter

	// ReadReport returns the last written report.
	ReadReport(ctx context.Context) (string, error)

	// Close releases connections. Safe to call on every backend.
	Close() error
}
