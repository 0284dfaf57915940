// Package history persists narration decisions to a local SQLite
// database so past activity survives restarts and can be reviewed
// from the CLI.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultListLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS narrations (
	id TEXT PRIMARY KEY,
	observed_at REAL NOT NULL,
	kind TEXT NOT NULL,
	text TEXT NOT NULL,
	spoken INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS narrations_observed_at ON narrations(observed_at);
`

// Record is one narration decision: what was decided about a delta,
// and whether the resulting utterance was actually spoken.
type Record struct {
	ID         string
	ObservedAt time.Time
	Kind       string
	Text       string
	Spoken     bool
}

// Store provides access to the narration history database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database location under the user's
// configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "narrator-history.sqlite"
	}
	return filepath.Join(dir, "narrator", "history.sqlite")
}

// Open opens (creating if needed) the history database with WAL.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a narration decision. A missing ID gets a fresh UUID
// and a zero ObservedAt is stamped with the current time; the stored
// record is returned.
func (s *Store) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO narrations (id, observed_at, kind, text, spoken)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, unixFloat(rec.ObservedAt), rec.Kind, rec.Text, rec.Spoken)
	if err != nil {
		return Record{}, fmt.Errorf("record narration: %w", err)
	}
	return rec, nil
}

// MarkSpoken flags a previously recorded narration as spoken.
func (s *Store) MarkSpoken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE narrations SET spoken = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark narration spoken: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no narration with id %q", id)
	}
	return nil
}

// ListRecent returns the newest records first, at most limit of them.
// A non-positive limit applies a small default.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, observed_at, kind, text, spoken
		FROM narrations
		ORDER BY observed_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query narrations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var observedAt float64
		if err := rows.Scan(&rec.ID, &observedAt, &rec.Kind, &rec.Text, &rec.Spoken); err != nil {
			return nil, fmt.Errorf("scan narration: %w", err)
		}
		rec.ObservedAt = timeFromUnix(observedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
