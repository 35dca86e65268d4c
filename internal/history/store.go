// Package history persists finished run summaries in SQLite so past runs and
// their failures can be listed after the fact.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"flacbatch/internal/config"
	"flacbatch/internal/summary"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Failure kinds.
const (
	KindConversion = "conversion"
	KindStaging    = "staging"
)

// Run is a stored run summary row.
type Run struct {
	RunID             string        `json:"run_id"`
	InputDir          string        `json:"input_dir"`
	OutputDir         string        `json:"output_dir"`
	StartedAt         time.Time     `json:"started_at"`
	Elapsed           time.Duration `json:"elapsed"`
	TotalFiles        int           `json:"total_files"`
	Successful        int           `json:"successful"`
	Failed            int           `json:"failed"`
	StagingFailed     int           `json:"staging_failed"`
	TotalInputBytes   int64         `json:"total_input_bytes"`
	SuccessInputBytes int64         `json:"success_input_bytes"`
	OutputBytes       int64         `json:"output_bytes"`
	Staged            bool          `json:"staged"`
	Cancelled         bool          `json:"cancelled"`
	CleanupError      string        `json:"cleanup_error,omitempty"`
}

// Failure is a stored per-file failure.
type Failure struct {
	Kind    string `json:"kind"`
	RelPath string `json:"rel_path"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database in the log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath and applies migrations.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores a finalized summary and its failures in one transaction.
// Recording the same run twice replaces the earlier row.
func (s *Store) Record(ctx context.Context, sum summary.RunSummary) error {
	if sum.RunID == "" {
		return errors.New("record run: empty run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range []string{
		"DELETE FROM run_failures WHERE run_id = ?",
		"DELETE FROM runs WHERE run_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, sum.RunID); err != nil {
			return fmt.Errorf("replace run: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (
            run_id, input_dir, output_dir, started_at, elapsed_ms,
            total_files, successful, failed, staging_failed,
            total_input_bytes, success_input_bytes, output_bytes,
            staged, cancelled, cleanup_error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID,
		sum.InputDir,
		sum.OutputDir,
		sum.StartedAt.UTC().Format(timeLayout),
		sum.Elapsed.Milliseconds(),
		sum.TotalFiles,
		sum.Successful,
		sum.Failed,
		sum.StagingFailed,
		sum.TotalInputBytes,
		sum.SuccessInputBytes,
		sum.OutputBytes,
		boolToInt(sum.Staged),
		boolToInt(sum.Cancelled),
		nullableString(sum.CleanupError),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO run_failures (run_id, kind, rel_path, reason, message) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare failure insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range sum.Failures {
		if _, err := stmt.ExecContext(ctx, sum.RunID, KindConversion, f.RelPath, nullableString(string(f.Reason)), f.Message); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	for _, f := range sum.StagingFailures {
		if _, err := stmt.ExecContext(ctx, sum.RunID, KindStaging, f.RelPath, nil, f.Message); err != nil {
			return fmt.Errorf("insert staging failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, input_dir, output_dir, started_at, elapsed_ms,
    total_files, successful, failed, staging_failed,
    total_input_bytes, success_input_bytes, output_bytes,
    staged, cancelled, cleanup_error`

// List returns the most recent runs first. limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, run_id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns a single run. A unique run ID prefix is accepted.
func (s *Store) Get(ctx context.Context, runID string) (Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE run_id = ? OR run_id LIKE ? ORDER BY run_id = ? DESC LIMIT 2",
		runID, stripLikeWildcards(runID)+"%", runID)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	case matches[0].RunID == runID, len(matches) == 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", runID)
	}
}

// Failures returns the stored failures for runID ordered by kind then path.
func (s *Store) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, rel_path, reason, message FROM run_failures WHERE run_id = ? ORDER BY kind, rel_path",
		runID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		var reason sql.NullString
		if err := rows.Scan(&f.Kind, &f.RelPath, &reason, &f.Message); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Reason = reason.String
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		startedAt string
		elapsedMS int64
		staged    int
		cancelled int
		cleanup   sql.NullString
	)
	if err := row.Scan(
		&run.RunID, &run.InputDir, &run.OutputDir, &startedAt, &elapsedMS,
		&run.TotalFiles, &run.Successful, &run.Failed, &run.StagingFailed,
		&run.TotalInputBytes, &run.SuccessInputBytes, &run.OutputBytes,
		&staged, &cancelled, &cleanup,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if ts, err := time.Parse(timeLayout, startedAt); err == nil {
		run.StartedAt = ts
	}
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	run.Staged = staged != 0
	run.Cancelled = cancelled != 0
	run.CleanupError = cleanup.String
	return run, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func stripLikeWildcards(v string) string {
	out := make([]rune, 0, len(v))
	for _, r := range v {
		if r == '%' || r == '_' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
