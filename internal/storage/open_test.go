// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/storage"
	"github.com/holomush/dimensiongate/internal/storage/file"
	"github.com/holomush/dimensiongate/internal/storage/memory"
	"github.com/holomush/dimensiongate/internal/storage/redis"
	"github.com/holomush/dimensiongate/pkg/errutil"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := storage.Open(ctx, config.StorageConfig{
		Backend:    config.BackendFile,
		StatePath:  filepath.Join(dir, "state.yaml"),
		ReportPath: filepath.Join(dir, "report.txt"),
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &file.Store{}, b)
	require.NoError(t, b.Save(ctx, dimension.End, false))
	require.NoError(t, b.Close())

	b, err = storage.Open(ctx, config.StorageConfig{Backend: config.BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, b)

	mr := miniredis.RunT(t)
	b, err = storage.Open(ctx, config.StorageConfig{Backend: config.BackendRedis, RedisAddr: mr.Addr()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &redis.Store{}, b)
	require.NoError(t, b.Close())
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := storage.Open(ctx, config.StorageConfig{Backend: "floppy"}, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, storage.CodeUnknownBackend)

	_, err = storage.Open(ctx, config.StorageConfig{Backend: config.BackendPostgres}, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
}
