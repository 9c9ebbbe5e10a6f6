package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS results (
	link TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	keyword TEXT NOT NULL,
	category TEXT NOT NULL,
	label TEXT NOT NULL,
	found_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_keyword ON results (keyword);
`

// SQLite stores results in a local database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init results db: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// Write inserts the batch in one transaction, ignoring links already stored.
func (s *SQLite) Write(ctx context.Context, _, _ string, results []crawler.Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO results (link, run_id, keyword, category, label, found_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, r.Link, r.RunID, r.Keyword, r.Category, r.Label,
			r.FoundAt.UTC().Format(time.RFC3339Nano)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert result %s: %w", r.Link, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

// Count returns the number of stored results.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close results db: %w", err)
	}
	return nil
}
