package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fairview-ems/aoi-grader/internal/grading"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS grading_runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	k_severity REAL NOT NULL,
	row_count  INTEGER NOT NULL,
	operators  INTEGER NOT NULL,
	grades     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_grading_runs_source ON grading_runs(source);
CREATE INDEX IF NOT EXISTS idx_grading_runs_created_at ON grading_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *GradingRun) error {
	gradesJSON, err := json.Marshal(run.Grades)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal grades")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grading_runs (id, source, k_severity, row_count, operators, grades, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.KSeverity, run.RowCount, run.Operators, string(gradesJSON), run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*GradingRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, k_severity, row_count, operators, grades, created_at
		 FROM grading_runs WHERE id = ?`,
		id,
	)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: run %s not found", id)
	}
	return run, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]GradingRun, error) {
	query := `SELECT id, source, k_severity, row_count, operators, grades, created_at
	          FROM grading_runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []GradingRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*GradingRun, error) {
	var run GradingRun
	var gradesJSON string
	if err := s.Scan(&run.ID, &run.Source, &run.KSeverity, &run.RowCount, &run.Operators, &gradesJSON, &run.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := json.Unmarshal([]byte(gradesJSON), &run.Grades); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal grades")
	}
	if run.Grades == nil {
		run.Grades = []grading.OperatorGrade{}
	}
	return &run, nil
}
