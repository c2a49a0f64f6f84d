//go:build integration

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/internal/storage/postgres"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dimensiongate_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connStr
}

func TestPostgres_FullCycle(t *testing.T) {
	ctx := context.Background()
	connStr := startPostgres(t)

	s, err := postgres.Connect(ctx, connStr, postgres.ConnectConfig{}, nil)
	require.NoError(t, err)
	defer s.Close()

	// Before migrating, queries fail with a persistence error.
	_, err = s.Load(ctx)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, state.CodeLoadFailed)

	migrator, err := postgres.NewMigrator(connStr)
	require.NoError(t, err)
	defer migrator.Close()

	pending, err := migrator.PendingMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2, 3}, pending)

	require.NoError(t, migrator.Up())
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	// A store built on this backend sees persisted values over defaults.
	store := state.NewStore(s)
	require.NoError(t, store.Load(ctx, nil))
	assert.True(t, store.SetOpen(ctx, dimension.Nether, false))

	reloaded := state.NewStore(s)
	require.NoError(t, reloaded.Load(ctx, map[dimension.Dimension]bool{dimension.Nether: true}))
	assert.False(t, reloaded.IsOpen(dimension.Nether))
	assert.True(t, reloaded.IsOpen(dimension.End))

	// A second writer's save leaves this store's change in place.
	require.True(t, reloaded.SetOpen(ctx, dimension.End, false))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[dimension.Dimension]bool{dimension.Nether: false, dimension.End: false}, got)

	delta := metrics.NewSnapshot(time.Time{})
	delta.Actors[metrics.ActorKey{Actor: "steve", Dimension: dimension.Nether}] = metrics.ActorStats{Attempts: 1}
	_, err = s.MergeCounts(ctx, delta)
	require.NoError(t, err)
	totals, err := s.MergeCounts(ctx, delta)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Actors[metrics.ActorKey{Actor: "steve", Dimension: dimension.Nether}].Attempts)

	require.NoError(t, s.WriteReport(ctx, "first"))
	require.NoError(t, s.WriteReport(ctx, "second"))
	report, err := s.ReadReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", report)

	require.NoError(t, migrator.Down())
}
