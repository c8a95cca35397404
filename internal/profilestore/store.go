// Package profilestore persists named style profiles and a ledger of governance runs in
// SQLite.
package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/book-expert/motion-governor/internal/core"
	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/style"
)

// Profile sources recorded alongside each stored profile.
const (
	SourceManual  = "manual"
	SourceDerived = "derived"
	SourceFile    = "file"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultRunLimit         = 50
)

var (
	// ErrProfileNotFound is returned when no stored profile has the requested name.
	ErrProfileNotFound = errors.New("style profile not found")
	// ErrPresetName is returned when a stored profile would shadow a built-in preset.
	ErrPresetName = errors.New("name is reserved for a built-in preset")
)

const schema = `
CREATE TABLE IF NOT EXISTS style_profiles (
    name       TEXT PRIMARY KEY,
    source     TEXT NOT NULL,
    body       TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS governance_runs (
    run_id          TEXT PRIMARY KEY,
    style           TEXT NOT NULL,
    frames          INTEGER NOT NULL,
    dims            INTEGER NOT NULL,
    compact         INTEGER NOT NULL,
    governed        INTEGER NOT NULL,
    pause_frames    INTEGER NOT NULL,
    emphasis_frames INTEGER NOT NULL,
    created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_governance_runs_created ON governance_runs(created_at);
`

// Entry is a stored profile with its bookkeeping columns.
type Entry struct {
	Profile   style.Profile
	Source    string
	CreatedAt time.Time
}

// Store manages profile persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the profile database at path.
func Open(path string) (*Store, error) {
	err := pathutil.EnsureDir(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("ensure profile db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		_, execErr := db.Exec(pragma)
		if execErr != nil {
			_ = db.Close()

			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialize profile schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Put stores p under its name, replacing any earlier profile with that name.
func (s *Store) Put(ctx context.Context, p style.Profile, source string) error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile has no name", style.ErrInvalidProfile)
	}

	if style.IsPreset(p.Name) {
		return fmt.Errorf("%w: %q", ErrPresetName, p.Name)
	}

	err := p.Validate()
	if err != nil {
		return err
	}

	body, err := style.Marshal(p, style.FormatTOML)
	if err != nil {
		return err
	}

	if source == "" {
		source = SourceManual
	}

	return s.execWithRetry(ctx,
		`INSERT INTO style_profiles (name, source, body, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET source = excluded.source, body = excluded.body,
         created_at = excluded.created_at`,
		p.Name, source, string(body), formatTime(time.Now()),
	)
}

// Get loads the profile stored under name.
func (s *Store) Get(ctx context.Context, name string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source, body, created_at FROM style_profiles WHERE name = ?`, name)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}

	if err != nil {
		return Entry{}, fmt.Errorf("load profile %q: %w", name, err)
	}

	return entry, nil
}

// List returns every stored profile ordered by name.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, body, created_at FROM style_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		entry, scanErr := scanEntry(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("list profiles: %w", scanErr)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	return entries, nil
}

// Delete removes the profile stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	var affected int64

	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM style_profiles WHERE name = ?`, name)
		if execErr != nil {
			return execErr
		}

		affected, execErr = res.RowsAffected()

		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}

	return nil
}

// RecordRun appends run to the ledger. A missing run id or timestamp is filled in.
func (s *Store) RecordRun(ctx context.Context, run core.GovernanceRun) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	return s.execWithRetry(ctx,
		`INSERT INTO governance_runs (run_id, style, frames, dims, compact, governed,
         pause_frames, emphasis_frames, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Style, run.Frames, run.Dims, run.Compact, run.Governed,
		run.PauseFrames, run.EmphasisFrames, formatTime(run.CreatedAt),
	)
}

// Runs returns the most recent runs, newest first. A limit below one uses a default.
func (s *Store) Runs(ctx context.Context, limit int) ([]core.GovernanceRun, error) {
	if limit < 1 {
		limit = defaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, style, frames, dims, compact, governed, pause_frames, emphasis_frames, created_at
         FROM governance_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.GovernanceRun

	for rows.Next() {
		var (
			run     core.GovernanceRun
			created string
		)

		err = rows.Scan(&run.RunID, &run.Style, &run.Frames, &run.Dims, &run.Compact, &run.Governed,
			&run.PauseFrames, &run.EmphasisFrames, &created)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}

		run.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return runs, nil
}

func scanEntry(scan func(dest ...any) error) (Entry, error) {
	var source, body, created string

	err := scan(&source, &body, &created)
	if err != nil {
		return Entry{}, err
	}

	profile, err := style.Unmarshal([]byte(body), style.FormatTOML)
	if err != nil {
		return Entry{}, err
	}

	createdAt, err := parseTime(created)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Profile: profile, Source: source, CreatedAt: createdAt}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}

	return t, nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)

		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff

	var lastErr error

	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}

	return lastErr
}
