// Package postgres implements history.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blueprint-migrator/internal/history"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements history.Store.
type PGStore struct {
	db DB
}

var _ history.Store = (*PGStore)(nil)

// New creates a PGStore backed by the given connection pool.
func New(db DB) *PGStore {
	return &PGStore{db: db}
}

// Open connects to dsn and returns the store and its pool. The caller
// closes the pool.
func Open(ctx context.Context, dsn string) (*PGStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("history: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()

		return nil, nil, fmt.Errorf("history: ping: %w", err)
	}

	return New(pool), pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS migration_runs (
    id               TEXT PRIMARY KEY,
    started_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    source           TEXT NOT NULL DEFAULT '',
    changed          BOOLEAN NOT NULL,
    modules_migrated INTEGER NOT NULL DEFAULT 0,
    nodes_injected   INTEGER NOT NULL DEFAULT 0,
    warnings         INTEGER NOT NULL DEFAULT 0,
    report           JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_migration_runs_started_at ON migration_runs(started_at DESC);
`

// CreateSchema creates the migration_runs table if it doesn't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)

	return err
}

// Record inserts a run, replacing any run with the same id.
func (s *PGStore) Record(ctx context.Context, run history.Run) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO migration_runs (id, started_at, source, changed, modules_migrated, nodes_injected, warnings, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     started_at = EXCLUDED.started_at, source = EXCLUDED.source, changed = EXCLUDED.changed,
		     modules_migrated = EXCLUDED.modules_migrated, nodes_injected = EXCLUDED.nodes_injected,
		     warnings = EXCLUDED.warnings, report = EXCLUDED.report`,
		run.ID, run.StartedAt, run.Source, run.Changed, run.ModulesMigrated, run.NodesInjected, run.Warnings, []byte(run.Report),
	)
	if err != nil {
		return fmt.Errorf("history: insert run: %w", err)
	}

	return nil
}

const selectRun = `SELECT id, started_at, source, changed, modules_migrated, nodes_injected, warnings, report FROM migration_runs`

// Get fetches a run by id. Returns history.ErrRunNotFound if absent.
func (s *PGStore) Get(ctx context.Context, id string) (*history.Run, error) {
	run, err := scanRun(s.db.QueryRow(ctx, selectRun+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, history.ErrRunNotFound
		}

		return nil, fmt.Errorf("history: get run: %w", err)
	}

	return run, nil
}

// List returns the newest runs first.
func (s *PGStore) List(ctx context.Context, limit int) ([]history.Run, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, selectRun+` ORDER BY started_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var out []history.Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}

		out = append(out, *run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("history: rows runs: %w", err)
	}

	return out, nil
}

func scanRun(row pgx.Row) (*history.Run, error) {
	var (
		run    history.Run
		report []byte
	)

	err := row.Scan(&run.ID, &run.StartedAt, &run.Source, &run.Changed,
		&run.ModulesMigrated, &run.NodesInjected, &run.Warnings, &report)
	if err != nil {
		return nil, err
	}

	run.Report = report

	return &run, nil
}
