package scrobbler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History is a persistent journal of pipeline outcomes backed by SQLite.
// It exists for the operator: `boxd history` reads it, and nothing in the
// pipeline ever depends on it succeeding.
type History struct {
	db *sql.DB
}

// HistoryEntry is one journaled pipeline outcome.
type HistoryEntry struct {
	ID          int64
	Account     string
	Title       string
	Year        int
	EventType   string
	Success     bool
	Reason      string
	Message     string
	WatchedDate string
	CreatedAt   time.Time
}

// NewHistory opens (and if needed creates) the journal at dbPath.
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps in-memory databases coherent and is plenty
	// for a journal written once per scrobble.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS scrobbles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account TEXT NOT NULL,
			title TEXT NOT NULL,
			year INTEGER NOT NULL DEFAULT 0,
			event_type TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			watched_date TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_created_at ON scrobbles(created_at);
		CREATE INDEX IF NOT EXISTS idx_success ON scrobbles(success, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &History{db: db}, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Record appends one outcome to the journal.
func (h *History) Record(ctx context.Context, entry HistoryEntry) (int64, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO scrobbles (account, title, year, event_type, success, reason, message, watched_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := h.db.ExecContext(ctx, query,
		entry.Account,
		entry.Title,
		entry.Year,
		entry.EventType,
		entry.Success,
		entry.Reason,
		entry.Message,
		entry.WatchedDate,
		createdAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// Recent returns the newest entries first, at most limit of them (all when
// limit <= 0).
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `
		SELECT id, account, title, year, event_type, success, reason, message, watched_date, created_at
		FROM scrobbles
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var createdAt int64
		if err := rows.Scan(
			&e.ID,
			&e.Account,
			&e.Title,
			&e.Year,
			&e.EventType,
			&e.Success,
			&e.Reason,
			&e.Message,
			&e.WatchedDate,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// Cleanup removes entries older than maxAge and reports how many were
// deleted.
func (h *History) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := h.db.ExecContext(ctx, "DELETE FROM scrobbles WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup history: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of journaled outcomes, optionally failures
// only.
func (h *History) Count(ctx context.Context, failuresOnly bool) (int, error) {
	query := "SELECT COUNT(*) FROM scrobbles"
	if failuresOnly {
		query += " WHERE success = 0"
	}

	var count int
	if err := h.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return count, nil
}
