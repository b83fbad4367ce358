// Package sqlite implements the repository interfaces on SQLite.
//
// The driver is modernc.org/sqlite — a pure-Go translation of SQLite, so no
// CGo and no C toolchain for cross-compiles. sql.Open registers against the
// driver name "sqlite" via the blank import below.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection, serialized. SQLite allows a single writer anyway, and
	// the foreign_keys pragma below is per-connection — a pool would leave
	// it off on every connection but the first. This also makes ":memory:"
	// behave: each new connection to it would be a fresh empty database.
	conn.SetMaxOpenConns(1)

	// Surface a bad path or permissions now rather than on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — without it the
	// whole file locks per write, which a polling chat would feel.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite; the chat_messages cascade
	// depends on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the account repository backed by this connection pool.
func (db *DB) Users() *UserStore {
	return &UserStore{conn: db.conn}
}

// Messages returns the chat feed repository backed by this connection pool.
func (db *DB) Messages() *MessageStore {
	return &MessageStore{conn: db.conn}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	// username and email are unique case-insensitively: "Alice" and "alice"
	// are the same account. lockout_end NULL means not locked; the blocked
	// sentinel is a year-9999 timestamp.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL COLLATE NOCASE UNIQUE,
			email         TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password_hash TEXT NOT NULL,
			date_of_birth DATETIME NOT NULL,
			avatar_path   TEXT NOT NULL DEFAULT '/avatars/default.png',
			lockout_end   DATETIME,
			failed_access INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_roles (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role    TEXT NOT NULL,
			PRIMARY KEY (user_id, role)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_roles table: %w", err)
	}

	// INTEGER PRIMARY KEY AUTOINCREMENT gives monotonically increasing ids
	// that are never reused — the polling cursor depends on that.
	// ON DELETE CASCADE: deleting a user takes their messages with them.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text    TEXT NOT NULL CHECK (length(text) <= 150),
			sent_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_sent_at ON chat_messages(sent_at);
		CREATE INDEX IF NOT EXISTS idx_chat_messages_user_id ON chat_messages(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating chat_messages table: %w", err)
	}

	return nil
}
