// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/dimensiongate/internal/clock"
	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/observability"
	"github.com/holomush/dimensiongate/internal/storage"
	"github.com/holomush/dimensiongate/internal/storage/postgres"
)

// Deps contains injectable dependencies for every subcommand.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StorageOpener opens the configured persistence backend.
	// Default: storage.Open
	StorageOpener func(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Backend, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(cfg observability.Config) ObservabilityServer

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: postgres.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// Clock drives schedules, uptime and report flushing.
	// Default: clock.Real
	Clock clock.Clock

	// LogWriter receives structured logs.
	// Default: os.Stderr
	LogWriter io.Writer
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
}

// Migrator wraps the methods used from postgres.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// withDefaults returns a copy of d with nil fields filled in.
func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.StorageOpener == nil {
		out.StorageOpener = storage.Open
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(cfg observability.Config) ObservabilityServer {
			return observability.NewServer(cfg)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return postgres.NewMigrator(databaseURL)
		}
	}
	if out.Clock == nil {
		out.Clock = clock.Real()
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	return &out
}
