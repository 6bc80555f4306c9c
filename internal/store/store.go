package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// ErrRunNotFound is returned when no crawl run matches
var ErrRunNotFound = errors.New("crawl run not found")

// Store keeps crawl runs and their comments in SQLite
type Store struct {
	db *sql.DB
}

// RunSummary is one row of the run listing
type RunSummary struct {
	RunID      string
	Title      string
	URL        string
	Comments   int
	Roots      int
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		run_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		visited INTEGER NOT NULL,
		expand_attempts INTEGER,
		expand_idle_rounds INTEGER,
		expand_clicks INTEGER,
		expand_aborted BOOLEAN,
		expand_reason TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS comments (
		run_id TEXT NOT NULL REFERENCES crawl_runs(run_id),
		id INTEGER NOT NULL,
		is_reply BOOLEAN NOT NULL,
		parent_id INTEGER,
		reply_to_author TEXT,
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		like_count TEXT NOT NULL,
		posted_at TEXT NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON crawl_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_url ON crawl_runs(url);
	CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments(run_id, parent_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCrawl inserts or replaces a run and all of its comments
func (s *Store) SaveCrawl(c *types.Crawl) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// UTC keeps started_at ordering lexical
	var finished any
	if !c.FinishedAt.IsZero() {
		finished = c.FinishedAt.UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO crawl_runs (run_id, title, url, visited,
			expand_attempts, expand_idle_rounds, expand_clicks, expand_aborted, expand_reason,
			error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			title = excluded.title,
			visited = excluded.visited,
			expand_attempts = excluded.expand_attempts,
			expand_idle_rounds = excluded.expand_idle_rounds,
			expand_clicks = excluded.expand_clicks,
			expand_aborted = excluded.expand_aborted,
			expand_reason = excluded.expand_reason,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, c.RunID, c.Article.Title, c.Article.URL, c.Visited,
		c.Expansion.Attempts, c.Expansion.IdleRounds, c.Expansion.Clicks, c.Expansion.Aborted, c.Expansion.Reason,
		c.Error, c.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM comments WHERE run_id = ?`, c.RunID); err != nil {
		return fmt.Errorf("failed to clear comments: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO comments (run_id, id, is_reply, parent_id, reply_to_author,
			author, text, like_count, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range c.Comments {
		var parent, replyTo any
		if r.ParentID != nil {
			parent = *r.ParentID
		}
		if r.ReplyToAuthor != nil {
			replyTo = *r.ReplyToAuthor
		}
		if _, err := stmt.Exec(c.RunID, r.ID, r.IsReply, parent, replyTo,
			r.Author, r.Text, r.LikeCount, r.PostedAt); err != nil {
			return fmt.Errorf("failed to save comment %d: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs first
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(`
		SELECT r.run_id, r.title, r.url, r.started_at, r.finished_at, COALESCE(r.error, ''),
			COUNT(c.id), COALESCE(SUM(CASE WHEN c.id IS NOT NULL AND NOT c.is_reply THEN 1 ELSE 0 END), 0)
		FROM crawl_runs r
		LEFT JOIN comments c ON c.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&r.RunID, &r.Title, &r.URL, &r.StartedAt, &finished, &r.Error,
			&r.Comments, &r.Roots); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.Time
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadCrawl reads a run and its comments back in id order
func (s *Store) LoadCrawl(runID string) (*types.Crawl, error) {
	c := &types.Crawl{RunID: runID}
	var finished sql.NullTime
	var reason, errText sql.NullString

	err := s.db.QueryRow(`
		SELECT title, url, visited, expand_attempts, expand_idle_rounds, expand_clicks,
			expand_aborted, expand_reason, error, started_at, finished_at
		FROM crawl_runs WHERE run_id = ?
	`, runID).Scan(&c.Article.Title, &c.Article.URL, &c.Visited,
		&c.Expansion.Attempts, &c.Expansion.IdleRounds, &c.Expansion.Clicks,
		&c.Expansion.Aborted, &reason, &errText, &c.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	c.Expansion.Reason = reason.String
	c.Error = errText.String
	c.FinishedAt = finished.Time

	rows, err := s.db.Query(`
		SELECT id, is_reply, parent_id, reply_to_author, author, text, like_count, posted_at
		FROM comments WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r types.CommentRecord
		var parent sql.NullInt64
		var replyTo sql.NullString
		if err := rows.Scan(&r.ID, &r.IsReply, &parent, &replyTo,
			&r.Author, &r.Text, &r.LikeCount, &r.PostedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			id := int(parent.Int64)
			r.ParentID = &id
		}
		if replyTo.Valid {
			author := replyTo.String
			r.ReplyToAuthor = &author
		}
		c.Comments = append(c.Comments, r)
	}

	return c, rows.Err()
}

// LatestRun loads the most recently started run
func (s *Store) LatestRun() (*types.Crawl, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM crawl_runs ORDER BY started_at DESC LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.LoadCrawl(runID)
}

// RunExists checks if a run ID already exists
func (s *Store) RunExists(runID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM crawl_runs WHERE run_id = ?)`, runID).Scan(&exists)
	return exists, err
}
