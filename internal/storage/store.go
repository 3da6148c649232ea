package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// tsLayout sorts lexically in chronological order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the run ledger: which runs happened and what each one wrote.
type Store interface {
	StartRun(ctx context.Context, sourceURL, destination string) (*Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, downloads int64) error
	RecordMedia(ctx context.Context, rec *MediaRecord) error
	GetRun(ctx context.Context, id string) (*Run, error)
	RecentRuns(ctx context.Context, limit int) ([]Run, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool

	insertRun   *sql.Stmt
	finishRun   *sql.Stmt
	insertMedia *sql.Stmt
	getRun      *sql.Stmt
}

// Open opens (creating if needed) the ledger file at path, migrates it and
// returns a store that closes the database on Close. SQLite opens the file
// itself, so path is always on the OS filesystem.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if err := NewMigrationRunner(db).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewSQLiteStore wraps an already-opened and migrated database. The caller
// keeps ownership of db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.prepareStatements(); err != nil {
		s.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertRun, err = s.db.Prepare(`
		INSERT INTO runs (id, source_url, destination, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.finishRun, err = s.db.Prepare(`
		UPDATE runs SET finished_at = ?, status = ?, downloads = ? WHERE id = ?
	`)
	if err != nil {
		return err
	}

	s.insertMedia, err = s.db.Prepare(`
		INSERT INTO media (run_id, kind, source_url, path, bytes, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getRun, err = s.db.Prepare(`
		SELECT id, source_url, destination, started_at, finished_at, status, downloads
		FROM runs WHERE id = ?
	`)
	return err
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		tsLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// StartRun records a new running run with a fresh uuid.
func (s *SQLiteStore) StartRun(ctx context.Context, sourceURL, destination string) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		SourceURL:   sourceURL,
		Destination: destination,
		StartedAt:   time.Now().UTC(),
		Status:      RunRunning,
	}

	if _, err := s.insertRun.ExecContext(ctx,
		run.ID, run.SourceURL, run.Destination, formatTimestamp(run.StartedAt), string(run.Status),
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the end of a run with its final status and download count.
func (s *SQLiteStore) FinishRun(ctx context.Context, id string, status RunStatus, downloads int64) error {
	res, err := s.finishRun.ExecContext(ctx, formatTimestamp(time.Now()), string(status), downloads, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// RecordMedia appends a written media file to its run. DownloadedAt defaults
// to now.
func (s *SQLiteStore) RecordMedia(ctx context.Context, rec *MediaRecord) error {
	if rec.DownloadedAt.IsZero() {
		rec.DownloadedAt = time.Now()
	}
	if _, err := s.insertMedia.ExecContext(ctx,
		rec.RunID, rec.Kind, rec.SourceURL, rec.Path, rec.Bytes, formatTimestamp(rec.DownloadedAt),
	); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		status   string
	)
	if err := row.Scan(&run.ID, &run.SourceURL, &run.Destination, &started, &finished, &status, &run.Downloads); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)

	var err error
	if run.StartedAt, err = parseTimestamp(started); err != nil {
		return nil, err
	}
	if finished.Valid && finished.String != "" {
		if run.FinishedAt, err = parseTimestamp(finished.String); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

// GetRun returns a run by id, or ErrRunNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.getRun.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_url, destination, started_at, finished_at, status, downloads
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetStats returns ledger totals across all runs.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(status = 'completed'), 0) FROM runs",
	).Scan(&stats.TotalRuns, &stats.CompletedRuns)
	if err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(bytes), 0) FROM media",
	).Scan(&stats.TotalMedia, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("count media: %w", err)
	}

	if stats.TotalRuns > 0 {
		recent, err := s.RecentRuns(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			stats.LastRun = &recent[0]
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, COUNT(*) AS cnt FROM media GROUP BY kind ORDER BY cnt DESC, kind",
	)
	if err != nil {
		return nil, fmt.Errorf("media kinds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kc KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, err
		}
		stats.Kinds = append(stats.Kinds, kc)
	}
	return stats, rows.Err()
}

// Close releases the prepared statements, and the database when the store
// was created by Open.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.insertRun, s.finishRun, s.insertMedia, s.getRun} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
