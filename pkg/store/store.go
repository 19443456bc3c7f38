// Package store keeps a history of scrape runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.

	"github.com/ccollicutt/scrape/pkg/output"
)

// timeLayout has fixed-width fractional seconds so stored timestamps sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run kinds.
const (
	KindAnalyze = "analyze"
	KindBench   = "bench"
)

// Run is one recorded pass.
type Run struct {
	ID           int64
	StartedAt    time.Time
	Kind         string
	Strategy     string
	Sources      []string
	TotalLines   uint64
	MatchedLines uint64
	SkippedLines uint64
	Duration     time.Duration
	Interrupted  bool
	Categories   []CategoryRow
}

// CategoryRow is the recorded outcome of one category in a run.
type CategoryRow struct {
	Name    string
	Matches uint64
	Min     *uint64
	Max     *uint64
	Sum     *uint64
}

// FromReport converts a report into a Run of the given kind.
func FromReport(kind string, r *output.Report) Run {
	run := Run{
		StartedAt:    r.Metadata.ScrapedAt.Add(-r.Metadata.Duration),
		Kind:         kind,
		Strategy:     r.Metadata.Strategy,
		Sources:      r.Metadata.Sources,
		TotalLines:   r.Summary.TotalLines,
		MatchedLines: r.Summary.MatchedLines,
		SkippedLines: r.Summary.SkippedLines,
		Duration:     r.Metadata.Duration,
		Interrupted:  r.Metadata.Interrupted,
	}
	for _, c := range r.Categories {
		run.Categories = append(run.Categories, CategoryRow{
			Name:    c.Name,
			Matches: c.Matches,
			Min:     c.Min,
			Max:     c.Max,
			Sum:     c.Sum,
		})
	}
	return run
}

// Store wraps SQLite access for run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			kind TEXT NOT NULL,
			strategy TEXT NOT NULL,
			sources TEXT NOT NULL,
			total_lines INTEGER NOT NULL,
			matched_lines INTEGER NOT NULL,
			skipped_lines INTEGER NOT NULL,
			duration_ns INTEGER NOT NULL,
			interrupted INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_categories (
			run_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			category TEXT NOT NULL,
			matches INTEGER NOT NULL,
			min_value INTEGER,
			max_value INTEGER,
			sum_value INTEGER,
			PRIMARY KEY (run_id, position)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun stores a run and its categories, returning the new run ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (id int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, kind, strategy, sources, total_lines, matched_lines, skipped_lines, duration_ns, interrupted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(timeLayout),
		run.Kind,
		run.Strategy,
		strings.Join(run.Sources, "\n"),
		int64(run.TotalLines),
		int64(run.MatchedLines),
		int64(run.SkippedLines),
		run.Duration.Nanoseconds(),
		run.Interrupted,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, c := range run.Categories {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO run_categories (run_id, position, category, matches, min_value, max_value, sum_value)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, i, c.Name, int64(c.Matches), nullable(c.Min), nullable(c.Max), nullable(c.Sum),
		); err != nil {
			return 0, fmt.Errorf("inserting category %q: %w", c.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, started_at, kind, strategy, sources, total_lines, matched_lines, skipped_lines, duration_ns, interrupted
		FROM runs ORDER BY started_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryRuns(ctx, query, args...)
}

// ErrNotFound is returned by GetRun for an unknown ID.
var ErrNotFound = errors.New("run not found")

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	runs, err := s.queryRuns(ctx,
		`SELECT id, started_at, kind, strategy, sources, total_lines, matched_lines, skipped_lines, duration_ns, interrupted
		 FROM runs WHERE id = ?`, id)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return runs[0], nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                     Run
			startedAt, sources      string
			total, matched, skipped int64
			durationNs              int64
		)
		if err := rows.Scan(&run.ID, &startedAt, &run.Kind, &run.Strategy, &sources,
			&total, &matched, &skipped, &durationNs, &run.Interrupted); err != nil {
			return nil, err
		}
		run.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("run %d: parsing started_at: %w", run.ID, err)
		}
		if sources != "" {
			run.Sources = strings.Split(sources, "\n")
		}
		run.TotalLines = uint64(total)
		run.MatchedLines = uint64(matched)
		run.SkippedLines = uint64(skipped)
		run.Duration = time.Duration(durationNs)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Categories are read after rows is drained so only one cursor is open.
	rows.Close()

	for i := range runs {
		if runs[i].Categories, err = s.categories(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) categories(ctx context.Context, runID int64) ([]CategoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, matches, min_value, max_value, sum_value
		 FROM run_categories WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying categories of run %d: %w", runID, err)
	}
	defer rows.Close()

	var out []CategoryRow
	for rows.Next() {
		var (
			c             CategoryRow
			matches       int64
			lo, hi, total sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &matches, &lo, &hi, &total); err != nil {
			return nil, err
		}
		c.Matches = uint64(matches)
		c.Min, c.Max, c.Sum = fromNullable(lo), fromNullable(hi), fromNullable(total)
		out = append(out, c)
	}
	return out, rows.Err()
}

// nullable stores a uint64 bit pattern in a signed SQLite integer.
func nullable(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func fromNullable(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	v := uint64(n.Int64)
	return &v
}
