package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvmerge/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS merge_runs (
	id           UUID PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL,
	origin       TEXT NOT NULL,
	profile      TEXT NOT NULL,
	key_column   TEXT NOT NULL,
	sources      TEXT[] NOT NULL,
	bytes        BIGINT NOT NULL,
	rows_read    INTEGER NOT NULL,
	rows_kept    INTEGER NOT NULL,
	rows_out     INTEGER NOT NULL,
	columns      INTEGER NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	error_code   TEXT NOT NULL DEFAULT '',
	ip_address   TEXT NOT NULL DEFAULT '',
	user_agent   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS merge_runs_started_at_idx ON merge_runs (started_at DESC);
`

// Connect opens a pgx pool using the pool settings in cfg and verifies it.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGStore keeps run history in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates the merge_runs table if needed.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create merge_runs: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Record implements Store.
func (s *PGStore) Record(ctx context.Context, run Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO merge_runs (
			id, started_at, duration_ms, origin, profile, key_column, sources,
			bytes, rows_read, rows_kept, rows_out, columns, status, error,
			error_code, ip_address, user_agent
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		run.ID.String(), run.StartedAt, run.Duration.Milliseconds(), run.Origin, run.Profile,
		run.KeyColumn, run.Sources, run.Bytes, run.RowsRead, run.RowsKept, run.RowsOut,
		run.Columns, string(run.Status), run.Error, run.ErrorCode, run.IPAddress, run.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert merge run %s: %w", run.ID, err)
	}
	return nil
}

// Recent implements Store, newest first.
func (s *PGStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, started_at, duration_ms, origin, profile, key_column, sources,
		       bytes, rows_read, rows_kept, rows_out, columns, status, error,
		       error_code, ip_address, user_agent
		FROM merge_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query merge runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, fmt.Errorf("scan merge runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.CollectableRow) (Run, error) {
	var (
		run        Run
		id, status string
		durationMs int64
	)
	err := row.Scan(&id, &run.StartedAt, &durationMs, &run.Origin, &run.Profile,
		&run.KeyColumn, &run.Sources, &run.Bytes, &run.RowsRead, &run.RowsKept,
		&run.RowsOut, &run.Columns, &status, &run.Error, &run.ErrorCode,
		&run.IPAddress, &run.UserAgent)
	if err != nil {
		return Run{}, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.Status = Status(status)
	return run, nil
}

// Prune implements Store.
func (s *PGStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM merge_runs WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune merge runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	s.pool.Close()
}
