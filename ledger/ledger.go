// Package ledger persists the terminal state of every frame of a run in SQLite so an
// interrupted run can be resumed without re-rendering finished frames.
package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"mandelmovie/task"
)

//go:embed schema.sql
var schemaSQL string

// FileName is the ledger database created inside a run directory.
const FileName = "frames.db"

// Entry is one recorded frame.
type Entry struct {
	Error      string
	FinishedAt time.Time
	Index      int
	OutputPath string
	RunID      string
	Scale      float64
	StartedAt  time.Time
	Status     string
}

type Ledger struct {
	db   *sql.DB
	path string
}

func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record stores the latest state of a frame, replacing whatever an earlier run wrote
// for the same index.
func (l *Ledger) Record(ctx context.Context, runID string, ft task.FrameTask) error {
	var message sql.NullString
	if ft.Err != nil {
		message = sql.NullString{String: ft.Err.Error(), Valid: true}
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO frames (frame_index, run_id, scale, output_path, status, error_message, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(frame_index) DO UPDATE SET
    run_id = excluded.run_id,
    scale = excluded.scale,
    output_path = excluded.output_path,
    status = excluded.status,
    error_message = excluded.error_message,
    started_at = excluded.started_at,
    finished_at = excluded.finished_at`,
		ft.Frame.Index,
		runID,
		ft.Frame.Scale,
		ft.OutputPath,
		ft.Status.String(),
		message,
		formatTime(ft.Started),
		formatTime(ft.Finished),
	)
	if err != nil {
		return fmt.Errorf("record frame %d: %w", ft.Frame.Index, err)
	}
	return nil
}

// Completed returns the frames recorded as Done keyed by frame index.
func (l *Ledger) Completed(ctx context.Context) (map[int]Entry, error) {
	entries, err := l.query(ctx, "WHERE status = ?", task.Done.String())
	if err != nil {
		return nil, err
	}
	completed := make(map[int]Entry, len(entries))
	for _, entry := range entries {
		completed[entry.Index] = entry
	}
	return completed, nil
}

// Entries returns every recorded frame ordered by index.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	return l.query(ctx, "")
}

func (l *Ledger) query(ctx context.Context, where string, args ...any) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT frame_index, run_id, scale, output_path, status, error_message, started_at, finished_at
FROM frames `+where+` ORDER BY frame_index`, args...)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry             Entry
			message           sql.NullString
			started, finished sql.NullString
		)
		if err := rows.Scan(&entry.Index, &entry.RunID, &entry.Scale, &entry.OutputPath, &entry.Status, &message, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		entry.Error = message.String
		entry.StartedAt = parseTime(started)
		entry.FinishedAt = parseTime(finished)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return entries, nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(value sql.NullString) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value.String)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
