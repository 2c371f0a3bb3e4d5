package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"scr-lifecycle-policy/internal/models"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes schema
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better performance
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		image_id TEXT NOT NULL,
		region TEXT NOT NULL DEFAULT '',
		grace TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 1,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		tags_total INTEGER DEFAULT 0,
		eligible INTEGER DEFAULT 0,
		deleted INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		fetch_error TEXT DEFAULT '',
		interrupted INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_image ON runs(image_id, started_at);

	CREATE TABLE IF NOT EXISTS run_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		tag_name TEXT DEFAULT '',
		status TEXT DEFAULT '',
		updated_at DATETIME,
		action TEXT NOT NULL,
		reason TEXT DEFAULT '',
		FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// History files created before the interrupted column existed; the error
	// for an already present column is ignored.
	db.conn.Exec("ALTER TABLE runs ADD COLUMN interrupted INTEGER DEFAULT 0")
	return nil
}

// --- Runs ---

// SaveRun stores a run and its per-tag entries in one transaction
func (db *DB) SaveRun(r *models.Run, entries []models.RetentionLog) error {
	dryRun, interrupted := 0, 0
	if r.DryRun {
		dryRun = 1
	}
	if r.Interrupted {
		interrupted = 1
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, image_id, region, grace, dry_run, started_at, finished_at, tags_total, eligible, deleted, failed, fetch_error, interrupted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ImageID, r.Region, r.Grace, dryRun, r.StartedAt, nullTime(r.FinishedAt), r.TagsTotal, r.Eligible, r.Deleted, r.Failed, r.FetchError, interrupted)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_entries (run_id, tag_id, tag_name, status, updated_at, action, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(r.ID, e.TagID, e.TagName, e.Status, nullTime(e.UpdatedAt), e.Action, e.Reason); err != nil {
			return fmt.Errorf("failed to insert entry for tag %s: %w", e.TagID, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first. An empty imageID
// lists runs for every image.
func (db *DB) ListRuns(imageID string, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, image_id, region, grace, dry_run, started_at, finished_at, tags_total, eligible, deleted, failed, COALESCE(fetch_error, ''), COALESCE(interrupted, 0)
		FROM runs WHERE (? = '' OR image_id = ?) ORDER BY started_at DESC LIMIT ?
	`, imageID, imageID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		var dryRun, interrupted int
		var finishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.ImageID, &r.Region, &r.Grace, &dryRun, &r.StartedAt, &finishedAt,
			&r.TagsTotal, &r.Eligible, &r.Deleted, &r.Failed, &r.FetchError, &interrupted); err != nil {
			return nil, err
		}
		r.DryRun = dryRun == 1
		r.Interrupted = interrupted == 1
		if finishedAt.Valid {
			r.FinishedAt = finishedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListRunEntries returns the per-tag entries of a run in the order they were evaluated
func (db *DB) ListRunEntries(runID string) ([]models.RetentionLog, error) {
	rows, err := db.conn.Query(`
		SELECT tag_id, tag_name, status, updated_at, action, reason
		FROM run_entries WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.RetentionLog
	for rows.Next() {
		var e models.RetentionLog
		var updatedAt sql.NullTime
		if err := rows.Scan(&e.TagID, &e.TagName, &e.Status, &updatedAt, &e.Action, &e.Reason); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			e.UpdatedAt = updatedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
