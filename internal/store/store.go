package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding users, chat history, and document
// chunks. Chat history rows are write-once: there is deliberately no update
// or delete path anywhere in this package.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at the given path, ensuring the
// parent directory exists and the schema is applied.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// initSchema creates all tables: users, chat_history, document_chunks.
// Timestamps are stored as unix nanoseconds so per-session ordering survives
// sub-millisecond appends.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			date_of_birth TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			password_hash TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS chat_history (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			user_id TEXT REFERENCES users(id),
			message TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history(session_id, created_at);

		CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
