// Package store provides a SQLite-backed transcript store for CVChat.
// Each collection has its own conversation transcript. Turns are persisted
// across restarts so an operator can audit what was asked about a candidate
// pool and what the assistant answered.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Role identifies the author of a transcript message.
type Role string

const (
	// RoleUser is a message sent by the recruiter.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a collection's transcript.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// TranscriptStore persists and retrieves chat transcripts keyed by
// collection name. Implementations must be safe for concurrent use.
type TranscriptStore interface {
	// Append persists a single message for the given collection.
	Append(ctx context.Context, collection string, role Role, content string) error
	// Recent returns the most recent n messages for the collection, ordered
	// oldest-first. If fewer than n messages exist, all are returned.
	Recent(ctx context.Context, collection string, n int) ([]Message, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a TranscriptStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the transcript database.
// It resolves to ~/.cvchat/transcripts.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".cvchat")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "transcripts.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transcripts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection   TEXT    NOT NULL,
    role         TEXT    NOT NULL CHECK(role IN ('user','assistant')),
    content      TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_transcripts_collection_created
    ON transcripts (collection, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single message for the given collection.
func (s *SQLiteStore) Append(ctx context.Context, collection string, role Role, content string) error {
	const q = `INSERT INTO transcripts (collection, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, collection, string(role), content, time.Now().Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n messages for the collection, ordered
// oldest-first. Uses a subquery to select the tail then re-order for display.
func (s *SQLiteStore) Recent(ctx context.Context, collection string, n int) ([]Message, error) {
	const q = `
SELECT role, content, created_at FROM (
    SELECT id, role, content, created_at
    FROM   transcripts
    WHERE  collection = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, collection, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var ts int64
		var role string
		if err := rows.Scan(&role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		m.Role = Role(role)
		m.CreatedAt = time.Unix(ts, 0)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return msgs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
