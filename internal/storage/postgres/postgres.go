// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres stores dimension state, metrics counter totals and
// metrics reports in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/holomush/dimensiongate/internal/dimension"
	"github.com/holomush/dimensiongate/internal/metrics"
	"github.com/holomush/dimensiongate/internal/state"
)

// Error codes.
const (
	CodeConnectFailed  = "STORAGE_CONNECT_FAILED"
	CodeReportNotFound = "REPORT_NOT_FOUND"
)

// reportRetention is how many reports are kept.
const reportRetention = 100

const migrateHint = "run `dimensiongate migrate up` to create the schema"

// poolIface is the subset of pgxpool.Pool the store uses. pgxmock pools
// satisfy it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements state.Backend and metrics.Reporter on PostgreSQL.
type Store struct {
	pool   poolIface
	logger *slog.Logger
}

// New wraps an existing pool.
func New(pool poolIface, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// ConnectConfig tunes Connect's retry loop.
type ConnectConfig struct {
	// MaxRetries defaults to 5.
	MaxRetries uint64
	// BaseDelay defaults to 200ms and doubles on each retry.
	BaseDelay time.Duration
}

// Connect opens a pool for dsn and pings it with exponential backoff.
func Connect(ctx context.Context, dsn string, cfg ConnectConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.In("postgres").Code(CodeConnectFailed).Wrap(err)
	}

	backoff := retry.WithMaxRetries(cfg.MaxRetries, retry.NewExponential(cfg.BaseDelay))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.Warn("database ping failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.In("postgres").Code(CodeConnectFailed).With("attempts", attempt).Wrap(err)
	}
	return New(pool, logger), nil
}

// Load reads every stored dimension. Unknown names are logged and skipped.
func (s *Store) Load(ctx context.Context) (map[dimension.Dimension]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT dimension, open FROM dimension_state`)
	if err != nil {
		return nil, wrapQueryErr(err, state.CodeLoadFailed, "load dimension state")
	}
	defer rows.Close()

	out := make(map[dimension.Dimension]bool)
	for rows.Next() {
		var name string
		var open bool
		if err := rows.Scan(&name, &open); err != nil {
			return nil, oops.In("postgres").Code(state.CodeLoadFailed).With("operation", "scan dimension row").Wrap(err)
		}
		d, err := dimension.Parse(name)
		if err != nil {
			s.logger.Warn("skipping unknown dimension in database", "dimension", name)
			continue
		}
		out[d] = open
	}
	if err := rows.Err(); err != nil {
		return nil, oops.In("postgres").Code(state.CodeLoadFailed).With("operation", "iterate dimension rows").Wrap(err)
	}
	return out, nil
}

// Save upserts d's row.
func (s *Store) Save(ctx context.Context, d dimension.Dimension, open bool) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dimension_state (dimension, open, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (dimension) DO UPDATE SET open = EXCLUDED.open, updated_at = now()`,
		d.String(), open)
	if err != nil {
		return wrapQueryErr(err, state.CodeSaveFailed, "upsert dimension state")
	}
	return nil
}

// MergeCounts adds delta to the counter rows and returns every row, in one
// transaction. Dimension counters live in rows with an empty actor.
func (s *Store) MergeCounts(ctx context.Context, delta metrics.Snapshot) (totals metrics.Snapshot, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return metrics.Snapshot{}, wrapQueryErr(err, state.CodeReportFailed, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx) //nolint:errcheck // the merge error takes precedence
		}
	}()

	for _, d := range dimension.All() {
		ds, ok := delta.Dimensions[d]
		if !ok || ds == (metrics.DimensionStats{}) {
			continue
		}
		if err = incrementCounters(ctx, tx, d, "", ds.Opens, ds.Closes, int64(ds.Uptime), 0, 0); err != nil {
			return metrics.Snapshot{}, err
		}
	}
	for _, key := range sortedActorKeys(delta.Actors) {
		as := delta.Actors[key]
		if err = incrementCounters(ctx, tx, key.Dimension, key.Actor, 0, 0, 0, as.Attempts, as.Denied); err != nil {
			return metrics.Snapshot{}, err
		}
	}

	totals, err = s.readCounters(ctx, tx)
	if err != nil {
		return metrics.Snapshot{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return metrics.Snapshot{}, oops.In("postgres").Code(state.CodeReportFailed).With("operation", "commit").Wrap(err)
	}
	return totals, nil
}

func incrementCounters(ctx context.Context, tx pgx.Tx, d dimension.Dimension, actor string, opens, closes, uptime, attempts, denied int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO metrics_counters (dimension, actor, opens, closes, uptime_ns, attempts, denied)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (dimension, actor) DO UPDATE SET
		   opens     = metrics_counters.opens + EXCLUDED.opens,
		   closes    = metrics_counters.closes + EXCLUDED.closes,
		   uptime_ns = metrics_counters.uptime_ns + EXCLUDED.uptime_ns,
		   attempts  = metrics_counters.attempts + EXCLUDED.attempts,
		   denied    = metrics_counters.denied + EXCLUDED.denied`,
		d.String(), actor, opens, closes, uptime, attempts, denied)
	if err != nil {
		return wrapQueryErr(err, state.CodeReportFailed, "increment metrics counters")
	}
	return nil
}

func (s *Store) readCounters(ctx context.Context, tx pgx.Tx) (metrics.Snapshot, error) {
	rows, err := tx.Query(ctx,
		`SELECT dimension, actor, opens, closes, uptime_ns, attempts, denied FROM metrics_counters`)
	if err != nil {
		return metrics.Snapshot{}, wrapQueryErr(err, state.CodeReportFailed, "read metrics counters")
	}
	defer rows.Close()

	snap := metrics.NewSnapshot(time.Time{})
	for rows.Next() {
		var (
			name, actor                             string
			opens, closes, uptime, attempts, denied int64
		)
		if err := rows.Scan(&name, &actor, &opens, &closes, &uptime, &attempts, &denied); err != nil {
			return metrics.Snapshot{}, oops.In("postgres").Code(state.CodeReportFailed).With("operation", "scan counter row").Wrap(err)
		}
		d, err := dimension.Parse(name)
		if err != nil {
			s.logger.Warn("skipping unknown dimension in metrics counters", "dimension", name)
			continue
		}
		if actor == "" {
			snap.Dimensions[d] = metrics.DimensionStats{Opens: opens, Closes: closes, Uptime: time.Duration(uptime)}
			continue
		}
		snap.Actors[metrics.ActorKey{Actor: actor, Dimension: d}] = metrics.ActorStats{Attempts: attempts, Denied: denied}
	}
	if err := rows.Err(); err != nil {
		return metrics.Snapshot{}, oops.In("postgres").Code(state.CodeReportFailed).With("operation", "iterate counter rows").Wrap(err)
	}
	return snap, nil
}

func sortedActorKeys(actors map[metrics.ActorKey]metrics.ActorStats) []metrics.ActorKey {
	keys := make([]metrics.ActorKey, 0, len(actors))
	for key, as := range actors {
		if as != (metrics.ActorStats{}) {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Actor != keys[j].Actor {
			return keys[i].Actor < keys[j].Actor
		}
		return keys[i].Dimension < keys[j].Dimension
	})
	return keys
}

// WriteReport appends a report and prunes old ones.
func (s *Store) WriteReport(ctx context.Context, report string) error {
	if _, err := s.pool.Exec(ctx, `INSERT INTO metrics_reports (report) VALUES ($1)`, report); err != nil {
		return wrapQueryErr(err, state.CodeReportFailed, "insert metrics report")
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM metrics_reports WHERE id NOT IN (
			SELECT id FROM metrics_reports ORDER BY id DESC LIMIT $1)`,
		reportRetention)
	if err != nil {
		// The new report is stored; a failed prune only delays cleanup.
		s.logger.Warn("failed to prune metrics reports", "error", err)
	}
	return nil
}

// ReadReport returns the newest report.
func (s *Store) ReadReport(ctx context.Context) (string, error) {
	var report string
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM metrics_reports ORDER BY id DESC LIMIT 1`).Scan(&report)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.In("postgres").Code(CodeReportNotFound).New("no report written")
	}
	if err != nil {
		return "", wrapQueryErr(err, state.CodeLoadFailed, "read metrics report")
	}
	return report, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// wrapQueryErr attaches code and, for a missing table, a migration hint.
func wrapQueryErr(err error, code, operation string) error {
	b := oops.In("postgres").Code(code).With("operation", operation)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		b = b.With("schema_missing", true).Hint(migrateHint)
	}
	return b.Wrap(err)
}
