// Package history records one row per backup or restore run in a local
// SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/types"
)

// ErrNotFound is returned when no run matches a query.
var ErrNotFound = errors.New("run not found")

// Run is one recorded pass.
type Run struct {
	ID            string
	Mode          types.RunMode
	Category      string
	Destination   string
	RunDir        string
	Started       time.Time
	Finished      time.Time
	ExitCode      int
	Failures      int
	Partial       int
	Skipped       int
	ArchivePath   string
	ArchiveSize   int64
	ArchiveFailed bool
	ManifestOnly  bool
	Interrupted   bool
}

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.NewString()
}

// Duration is Finished - Started, or zero for unfinished rows.
func (r Run) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Store provides SQLite-backed persistence
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open opens (creating if needed) the database at dbPath and runs migrations.
func Open(dbPath string, logger *logging.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logging.DebugStep(logger, "history", "store ready at %s", dbPath)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Record inserts run. An empty ID is filled in.
func (s *Store) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	const query = `
		INSERT INTO runs (
			id, mode, category, destination, run_dir, started_at, finished_at,
			exit_code, failures, partial, skipped, archive_path, archive_size,
			archive_failed, manifest_only, interrupted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Mode), run.Category, run.Destination, run.RunDir,
		formatTime(run.Started), formatTime(run.Finished),
		run.ExitCode, run.Failures, run.Partial, run.Skipped,
		run.ArchivePath, run.ArchiveSize,
		boolInt(run.ArchiveFailed), boolInt(run.ManifestOnly), boolInt(run.Interrupted),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category string
	Mode     types.RunMode
	Limit    int
}

// List returns runs newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, strings.ToUpper(f.Category))
	}
	if f.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, string(f.Mode))
	}
	query := `
		SELECT id, mode, category, destination, run_dir, started_at, finished_at,
		       exit_code, failures, partial, skipped, archive_path, archive_size,
		       archive_failed, manifest_only, interrupted
		FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, category, destination, run_dir, started_at, finished_at,
		       exit_code, failures, partial, skipped, archive_path, archive_size,
		       archive_failed, manifest_only, interrupted
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                                   Run
		mode, started, finished               string
		archiveFailed, manifestOnly, interrup int
	)
	err := sc.Scan(&run.ID, &mode, &run.Category, &run.Destination, &run.RunDir,
		&started, &finished, &run.ExitCode, &run.Failures, &run.Partial, &run.Skipped,
		&run.ArchivePath, &run.ArchiveSize, &archiveFailed, &manifestOnly, &interrup)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Mode = types.RunMode(mode)
	run.Started = parseTime(started)
	run.Finished = parseTime(finished)
	run.ArchiveFailed = archiveFailed != 0
	run.ManifestOnly = manifestOnly != 0
	run.Interrupted = interrup != 0
	return run, nil
}

// timeLayout has fixed-width fractions so the column sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
