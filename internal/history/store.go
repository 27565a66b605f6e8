// Package history records every workflow run in a local SQLite database and
// answers the queries behind the history command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/taskflow/internal/models"
)

// RunRecord is one stored workflow run.
type RunRecord struct {
	RunID           string
	Workflow        string
	ReportID        string
	StartedAt       time.Time
	EndedAt         time.Time
	DurationMs      int64
	Success         bool
	Interrupted     bool
	ContinueOnError bool
	Summary         models.Summary
}

// TaskStat aggregates the outcomes of one task.
type TaskStat struct {
	Task          string
	Runs          int
	Successes     int
	Failures      int
	AvgDurationMs int64
	LastError     string
}

// SuccessRate returns the fraction of successful runs (0 when never run).
func (t TaskStat) SuccessRate() float64 {
	if t.Runs == 0 {
		return 0
	}
	return float64(t.Successes) / float64(t.Runs)
}

// Store manages the run history database
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the history database at dbPath and applies
// pending migrations. ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps pragmas and in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return s, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.dbPath
}

// AfterRun records the run; it lets the store act as a post-run hook.
func (s *Store) AfterRun(ctx context.Context, run *models.WorkflowRun) error {
	return s.RecordRun(ctx, run)
}

// RecordRun stores the run and its task results in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *models.WorkflowRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	summary := run.Summary()
	_, err = tx.ExecContext(ctx, `INSERT INTO workflow_runs
		(run_id, workflow, report_id, started_at, ended_at, duration_ms, success, interrupted, continue_on_error, total, successful, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.WorkflowName,
		run.ReportID,
		run.StartTime.UnixMilli(),
		run.EndTime.UnixMilli(),
		run.Duration().Milliseconds(),
		run.OverallSuccess,
		run.Interrupted,
		run.ContinueOnError,
		summary.Total,
		summary.Successful,
		summary.Failed,
		summary.Skipped,
	)
	if err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}

	for i, result := range run.TaskResults {
		_, err := tx.ExecContext(ctx, `INSERT INTO task_runs
			(run_id, position, task, success, output, error_message, started_at, ended_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			i+1,
			result.Name,
			result.Success,
			result.Output,
			result.Error,
			result.StartTime.UnixMilli(),
			result.EndTime.UnixMilli(),
			result.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("insert task run %s: %w", result.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first. An empty workflow
// matches every workflow; limit <= 0 means no limit.
func (s *Store) RecentRuns(ctx context.Context, workflow string, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, workflow, report_id, started_at, ended_at, duration_ms, success, interrupted, continue_on_error, total, successful, failed, skipped
		FROM workflow_runs
		WHERE (? = '' OR workflow = ?)
		ORDER BY started_at DESC, run_id DESC`
	args := []any{workflow, workflow}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			r                  RunRecord
			reportID           sql.NullString
			startedAt, endedAt int64
		)
		if err := rows.Scan(
			&r.RunID,
			&r.Workflow,
			&reportID,
			&startedAt,
			&endedAt,
			&r.DurationMs,
			&r.Success,
			&r.Interrupted,
			&r.ContinueOnError,
			&r.Summary.Total,
			&r.Summary.Successful,
			&r.Summary.Failed,
			&r.Summary.Skipped,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ReportID = reportID.String
		r.StartedAt = time.UnixMilli(startedAt)
		r.EndedAt = time.UnixMilli(endedAt)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return records, nil
}

// TaskStats aggregates task outcomes, optionally limited to one workflow.
// Results are sorted by task name.
func (s *Store) TaskStats(ctx context.Context, workflow string) ([]TaskStat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT t.task,
			COUNT(*),
			SUM(CASE WHEN t.success THEN 1 ELSE 0 END),
			CAST(AVG(t.duration_ms) AS INTEGER),
			(SELECT t2.error_message FROM task_runs t2
				JOIN workflow_runs r2 ON r2.run_id = t2.run_id
				WHERE t2.task = t.task AND NOT t2.success AND (? = '' OR r2.workflow = ?)
				ORDER BY t2.started_at DESC, t2.id DESC LIMIT 1)
		FROM task_runs t
		JOIN workflow_runs r ON r.run_id = t.run_id
		WHERE (? = '' OR r.workflow = ?)
		GROUP BY t.task
		ORDER BY t.task`, workflow, workflow, workflow, workflow)
	if err != nil {
		return nil, fmt.Errorf("query task stats: %w", err)
	}
	defer rows.Close()

	var stats []TaskStat
	for rows.Next() {
		var (
			st        TaskStat
			lastError sql.NullString
		)
		if err := rows.Scan(&st.Task, &st.Runs, &st.Successes, &st.AvgDurationMs, &lastError); err != nil {
			return nil, fmt.Errorf("scan task stat: %w", err)
		}
		st.Failures = st.Runs - st.Successes
		st.LastError = lastError.String
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task stats: %w", err)
	}
	return stats, nil
}
