// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
	"github.com/holomush/dimensiongate/internal/storage/file"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

func newStore(t *testing.T) (*file.Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	statePath := filepath.Join(dir, "data", "state.yaml")
	reportPath := filepath.Join(dir, "data", "metrics", "statistics.txt")
	return file.New(statePath, reportPath, nil), statePath, reportPath
}

func TestStore_LoadMissingFile(t *testing.T) {
	s, _, _ := newStore(t)
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s, statePath, _ := newStore(t)

	in := map[dimension.Dimension]bool{
		dimension.Overworld: true,
		dimension.Nether:    false,
		dimension.End:       true,
	}
	for _, d := range dimension.All() {
		require.NoError(t, s.Save(ctx, d, in[d]))
	}

	data, err := os.ReadFile(statePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "nether:")
	assert.Contains(t, string(data), "open: false")

	info, err := os.Stat(statePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, got)

	// A later save changes only its own dimension.
	require.NoError(t, s.Save(ctx, dimension.Nether, true))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[dimension.Dimension]bool{
		dimension.Overworld: true,
		dimension.Nether:    true,
		dimension.End:       true,
	}, got)
}

func TestStore_TwoStateStoresShareOneFile(t *testing.T) {
	ctx := context.Background()
	backend, _, _ := newStore(t)

	daemon := state.NewStore(backend)
	require.NoError(t, daemon.Load(ctx, nil))
	cli := state.NewStore(backend)
	require.NoError(t, cli.Load(ctx, nil))

	require.True(t, cli.SetOpen(ctx, dimension.Nether, false))
	require.True(t, daemon.SetOpen(ctx, dimension.End, false))

	persisted, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.False(t, persisted[dimension.Nether], "the daemon's save must not revert the other writer")
	assert.False(t, persisted[dimension.End])

	changed, err := daemon.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dimension.Dimension{dimension.Nether}, changed)
	assert.False(t, daemon.IsOpen(dimension.Nether))
}

func TestStore_MergeCounts(t *testing.T) {
	ctx := context.Background()
	s, _, reportPath := newStore(t)
	key := metrics.ActorKey{Actor: "steve", Dimension: dimension.Nether}

	delta := metrics.NewSnapshot(time.Time{})
	delta.Dimensions[dimension.End] = metrics.DimensionStats{Opens: 1, Closes: 1, Uptime: 90 * time.Second}
	delta.Actors[key] = metrics.ActorStats{Attempts: 3, Denied: 1}

	_, err := s.MergeCounts(ctx, delta)
	require.NoError(t, err)

	// A second Store over the same files sees the first one's totals.
	other := file.New(filepath.Join(t.TempDir(), "state.yaml"), reportPath, nil)
	totals, err := other.MergeCounts(ctx, delta)
	require.NoError(t, err)

	assert.Equal(t, metrics.DimensionStats{Opens: 2, Closes: 2, Uptime: 3 * time.Minute}, totals.Dimensions[dimension.End])
	assert.Equal(t, metrics.ActorStats{Attempts: 6, Denied: 2}, totals.Actors[key])

	data, err := os.ReadFile(filepath.Join(filepath.Dir(reportPath), "counters.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "steve:")
}

func TestStore_MergeCountsCorruptFile(t *testing.T) {
	s, _, reportPath := newStore(t)
	countersPath := filepath.Join(filepath.Dir(reportPath), "counters.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(countersPath), 0o700))
	require.NoError(t, os.WriteFile(countersPath, []byte("actors: [broken"), 0o600))

	_, err := s.MergeCounts(context.Background(), metrics.NewSnapshot(time.Time{}))
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, state.CodeReportFailed)
}

func TestStore_LoadSkipsUnknownDimensions(t *testing.T) {
	s, statePath, _ := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(statePath), 0o700))
	require.NoError(t, os.WriteFile(statePath, []byte(`
dimensions:
  world: {open: false}
  aether: {open: false}
`), 0o600))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[dimension.Dimension]bool{dimension.Overworld: false}, got)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	s, statePath, _ := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(statePath), 0o700))
	require.NoError(t, os.WriteFile(statePath, []byte("dimensions: [broken"), 0o600))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, state.CodeLoadFailed)
	assert.True(t, state.IsPersistenceError(err))
}

func TestStore_SaveFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	// The parent "directory" is a regular file, so the write must fail.
	s := file.New(filepath.Join(blocker, "state.yaml"), filepath.Join(blocker, "report.txt"), nil)
	err := s.Save(context.Background(), dimension.End, false)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, state.CodeSaveFailed)

	err = s.WriteReport(context.Background(), "report")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, state.CodeReportFailed)
}

func TestStore_Report(t *testing.T) {
	ctx := context.Background()
	s, _, reportPath := newStore(t)

	_, err := s.ReadReport(ctx)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, file.CodeReportNotFound)

	require.NoError(t, s.WriteReport(ctx, "=== Dimension Gate Metrics ===\n"))
	got, err := s.ReadReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "=== Dimension Gate Metrics ===\n", got)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, got, string(data))
	assert.NoError(t, s.Close())
}
