// Package storage keeps the run history shown by the TUI. The default
// database lives in memory and disappears with the process.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

// InMemory is the DSN for a history that is never written to disk.
const InMemory = ":memory:"

var ErrRunNotFound = errors.New("run not found")

type Storage struct {
	db *sql.DB
}

func New(dsn string) (*Storage, error) {
	if dsn == "" {
		dsn = InMemory
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		profile TEXT NOT NULL,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		failure TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		output_size INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores rec, replacing an earlier record with the same run id.
func (s *Storage) RecordRun(ctx context.Context, rec *models.RunRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, profile, source, status, exit_code, failure, message, output_size, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
		   profile = excluded.profile, source = excluded.source, status = excluded.status,
		   exit_code = excluded.exit_code, failure = excluded.failure, message = excluded.message,
		   output_size = excluded.output_size, started_at = excluded.started_at, finished_at = excluded.finished_at`,
		rec.RunID, rec.Profile, rec.Source, string(rec.Status), rec.ExitCode, string(rec.Failure),
		rec.Message, rec.OutputSize, rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.RunID, err)
	}
	return nil
}

const selectRuns = `SELECT run_id, profile, source, status, exit_code, failure, message, output_size, started_at, finished_at FROM runs`

func (s *Storage) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns up to limit records, most recently finished first.
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY finished_at DESC, seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func (s *Storage) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.RunRecord, error) {
	var rec models.RunRecord
	var status, failure string
	var startedAt, finishedAt int64

	err := row.Scan(
		&rec.RunID, &rec.Profile, &rec.Source, &status, &rec.ExitCode,
		&failure, &rec.Message, &rec.OutputSize, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.RunStatus(status)
	rec.Failure = models.FailureKind(failure)
	rec.StartedAt = time.Unix(0, startedAt)
	rec.FinishedAt = time.Unix(0, finishedAt)
	return &rec, nil
}

// FormatTimeAgo renders t relative to now for the history list.
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m ago"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h ago"
	default:
		return t.Format("Jan 2")
	}
}
