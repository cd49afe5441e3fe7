package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fairview-ems/aoi-grader/internal/grading"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock's pool
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS grading_runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	k_severity DOUBLE PRECISION NOT NULL,
	row_count  INTEGER NOT NULL,
	operators  INTEGER NOT NULL,
	grades     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_grading_runs_source ON grading_runs(source);
CREATE INDEX IF NOT EXISTS idx_grading_runs_created_at ON grading_runs(created_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *GradingRun) error {
	gradesJSON, err := json.Marshal(run.Grades)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal grades")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO grading_runs (id, source, k_severity, row_count, operators, grades, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.Source, run.KSeverity, run.RowCount, run.Operators, gradesJSON, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*GradingRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, k_severity, row_count, operators, grades, created_at
		 FROM grading_runs WHERE id = $1`,
		id,
	)

	run, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", id)
	}
	return run, err
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]GradingRun, error) {
	query := `SELECT id, source, k_severity, row_count, operators, grades, created_at
	          FROM grading_runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		args = append(args, filter.Source)
		query += ` AND source = $1`
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []GradingRun
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPgRun(row pgx.Row) (*GradingRun, error) {
	var run GradingRun
	var gradesJSON []byte
	if err := row.Scan(&run.ID, &run.Source, &run.KSeverity, &run.RowCount, &run.Operators, &gradesJSON, &run.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan run")
	}
	if err := json.Unmarshal(gradesJSON, &run.Grades); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal grades")
	}
	if run.Grades == nil {
		run.Grades = []grading.OperatorGrade{}
	}
	return &run, nil
}
