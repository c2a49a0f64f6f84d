// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package storage

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/config"
	"github.com/holomush/dimensiongate/internal/storage/file"
	"github.com/holomush/dimensiongate/internal/storage/memory"
	"github.com/holomush/dimensiongate/internal/storage/postgres"
	"github.com/holomush/dimensiongate/internal/storage/redis"
)

// Open connects the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendFile:
		return file.New(cfg.StatePath, cfg.ReportPath, logger), nil
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, oops.In("storage").
				Code(config.CodeInvalid).
				Hint("set storage.database_url or DATABASE_URL").
				New("postgres backend requires a database URL")
		}
		return postgres.Connect(ctx, cfg.DatabaseURL, postgres.ConnectConfig{}, logger)
	case config.BackendRedis:
		return redis.Connect(ctx, redis.Config{
			Addr:      cfg.RedisAddr,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		}, logger)
	default:
		return nil, oops.In("storage").
			Code(CodeUnknownBackend).
			With("backend", cfg.Backend).
			Errorf("unknown storage backend %q", cfg.Backend)
	}
}

var (
	_ Backend = (*file.Store)(nil)
	_ Backend = (*memory.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*redis.Store)(nil)
)
