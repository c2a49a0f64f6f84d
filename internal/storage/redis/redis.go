// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redis stores dimension state and metrics counter totals in Redis
// hashes and the metrics report in a string key.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
)

// Error codes.
const (
	CodeConnectFailed  = "STORAGE_CONNECT_FAILED"
	CodeReportNotFound = "REPORT_NOT_FOUND"
)

// Config holds Redis connection configuration.
type Config struct {
	Addr      string // Redis server address (host:port)
	Password  string // Redis password (optional)
	DB        int    // Redis database number
	KeyPrefix string // Prefix for every key; defaults to "dimensiongate"
}

// Store implements state.Backend and metrics.Reporter on Redis.
type Store struct {
	client      *redis.Client
	stateKey    string
	countersKey string
	reportKey   string
	logger      *slog.Logger
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.In("redis").Code(CodeConnectFailed).With("addr", cfg.Addr).Wrap(err)
	}

	s := New(client, cfg.KeyPrefix, logger)
	s.logger.Info("connected to Redis", "addr", cfg.Addr, "db", cfg.DB)
	return s, nil
}

// New wraps an existing client.
func New(client *redis.Client, keyPrefix string, logger *slog.Logger) *Store {
	if keyPrefix == "" {
		keyPrefix = "dimensiongate"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:      client,
		stateKey:    keyPrefix + ":state",
		countersKey: keyPrefix + ":counters",
		reportKey:   keyPrefix + ":report",
		logger:      logger,
	}
}

// Load reads the state hash. Unknown fields and unparsable values are
// logged and skipped.
func (s *Store) Load(ctx context.Context) (map[dimension.Dimension]bool, error) {
	fields, err := s.client.HGetAll(ctx, s.stateKey).Result()
	if err != nil {
		return nil, oops.In("redis").Code(state.CodeLoadFailed).With("key", s.stateKey).Wrap(err)
	}

	out := make(map[dimension.Dimension]bool, len(fields))
	for name, raw := range fields {
		d, err := dimension.Parse(name)
		if err != nil {
			s.logger.Warn("skipping unknown dimension in redis", "key", s.stateKey, "dimension", name)
			continue
		}
		open, err := strconv.ParseBool(raw)
		if err != nil {
			s.logger.Warn("skipping malformed dimension value in redis",
				"key", s.stateKey,
				"dimension", name,
				"value", raw)
			continue
		}
		out[d] = open
	}
	return out, nil
}

// Save sets d's field in the state hash.
func (s *Store) Save(ctx context.Context, d dimension.Dimension, open bool) error {
	if err := s.client.HSet(ctx, s.stateKey, d.String(), strconv.FormatBool(open)).Err(); err != nil {
		return oops.In("redis").Code(state.CodeSaveFailed).With("key", s.stateKey).With("dimension", d.String()).Wrap(err)
	}
	return nil
}

// Counter hash fields are "<counter>|<dimension>" for dimension counters
// and "<counter>|<dimension>|<actor>" for actor counters.
const (
	fieldOpens    = "opens"
	fieldCloses   = "closes"
	fieldUptime   = "uptime_ns"
	fieldAttempts = "attempts"
	fieldDenied   = "denied"
)

func counterField(counter string, d dimension.Dimension) string {
	return counter + "|" + d.String()
}

func actorField(counter string, key metrics.ActorKey) string {
	return counter + "|" + key.Dimension.String() + "|" + key.Actor
}

// MergeCounts increments the counters hash by delta in one MULTI/EXEC and
// returns the resulting totals.
func (s *Store) MergeCounts(ctx context.Context, delta metrics.Snapshot) (metrics.Snapshot, error) {
	var all *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for d, ds := range delta.Dimensions {
			incr(ctx, pipe, s.countersKey, counterField(fieldOpens, d), ds.Opens)
			incr(ctx, pipe, s.countersKey, counterField(fieldCloses, d), ds.Closes)
			incr(ctx, pipe, s.countersKey, counterField(fieldUptime, d), int64(ds.Uptime))
		}
		for key, as := range delta.Actors {
			incr(ctx, pipe, s.countersKey, actorField(fieldAttempts, key), as.Attempts)
			incr(ctx, pipe, s.countersKey, actorField(fieldDenied, key), as.Denied)
		}
		all = pipe.HGetAll(ctx, s.countersKey)
		return nil
	})
	if err != nil {
		return metrics.Snapshot{}, oops.In("redis").Code(state.CodeReportFailed).With("key", s.countersKey).Wrap(err)
	}
	return s.parseCounters(all.Val()), nil
}

func incr(ctx context.Context, pipe redis.Pipeliner, key, field string, n int64) {
	if n != 0 {
		pipe.HIncrBy(ctx, key, field, n)
	}
}

func (s *Store) parseCounters(fields map[string]string) metrics.Snapshot {
	snap := metrics.NewSnapshot(time.Time{})
	for field, raw := range fields {
		parts := strings.SplitN(field, "|", 3)
		n, err := strconv.ParseInt(raw, 10, 64)
		if len(parts) < 2 || err != nil {
			s.logger.Warn("skipping malformed counter in redis", "key", s.countersKey, "field", field, "value", raw)
			continue
		}
		d, err := dimension.Parse(parts[1])
		if err != nil {
			s.logger.Warn("skipping unknown dimension in redis", "key", s.countersKey, "field", field)
			continue
		}

		if len(parts) == 3 {
			key := metrics.ActorKey{Actor: parts[2], Dimension: d}
			as := snap.Actors[key]
			switch parts[0] {
			case fieldAttempts:
				as.Attempts = n
			case fieldDenied:
				as.Denied = n
			}
			snap.Actors[key] = as
			continue
		}

		ds := snap.Dimensions[d]
		switch parts[0] {
		case fieldOpens:
			ds.Opens = n
		case fieldCloses:
			ds.Closes = n
		case fieldUptime:
			ds.Uptime = time.Duration(n)
		}
		snap.Dimensions[d] = ds
	}
	return snap
}

// WriteReport replaces the report key.
func (s *Store) WriteReport(ctx context.Context, report string) error {
	if err := s.client.Set(ctx, s.reportKey, report, 0).Err(); err != nil {
		return oops.In("redis").Code(state.CodeReportFailed).With("key", s.reportKey).Wrap(err)
	}
	return nil
}

// ReadReport returns the stored report.
func (s *Store) ReadReport(ctx context.Context) (string, error) {
	report, err := s.client.Get(ctx, s.reportKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", oops.In("redis").Code(CodeReportNotFound).With("key", s.reportKey).New("no report written")
	}
	if err != nil {
		return "", oops.In("redis").With("key", s.reportKey).Wrap(err)
	}
	return report, nil
}

// HealthCheck pings Redis.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
