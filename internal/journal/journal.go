// Package journal keeps a local trace of transport and session lifecycle
// events in SQLite, for troubleshooting flaky sessions. It records which
// transport won, when questions arrived, and how submissions fared. It
// never stores interview content.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Entry is one trace row.
type Entry struct {
	RunID     string
	SessionID string
	At        time.Time
	Kind      string
	Detail    string
}

// Journal is an append-only trace log. Writes are best effort: a failed
// insert never affects the session.
type Journal struct {
	db        *sql.DB
	runID     string
	sessionID string
}

// Open creates a Journal backed by the SQLite database at dsn.
func Open(dsn string) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS trace_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		at TIMESTAMP NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create trace table: %w", err)
	}

	return &Journal{db: db, runID: uuid.New().String()}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RunID identifies this process run in the trace.
func (j *Journal) RunID() string { return j.runID }

// SetSession scopes subsequent trace entries to a session.
func (j *Journal) SetSession(sessionID string) {
	j.sessionID = sessionID
}

// Trace appends one entry. Errors are swallowed; tracing must never take a
// session down with it.
func (j *Journal) Trace(ctx context.Context, kind, detail string) {
	_, _ = j.db.ExecContext(ctx,
		`INSERT INTO trace_events (run_id, session_id, at, kind, detail) VALUES (?, ?, ?, ?, ?)`,
		j.runID, j.sessionID, time.Now().UTC(), kind, detail,
	)
}

// Recent returns the newest entries, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, session_id, at, kind, detail FROM trace_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.SessionID, &e.At, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// applyPragmas configures SQLite for single-user local use.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultPath resolves the trace database path in priority order:
// 1. INTERVO_DB environment variable
// 2. $XDG_DATA_HOME/intervo/trace.db
// 3. ~/.local/share/intervo/trace.db
func DefaultPath() (string, error) {
	if p := os.Getenv("INTERVO_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "intervo", "trace.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// ShortID trims a UUID to its first segment for display.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
