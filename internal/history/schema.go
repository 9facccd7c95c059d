// Package history records finished searches in SQLite. It is a log of
// queries, not an index of file contents.
package history

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS searches (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint    TEXT    NOT NULL,
	keywords       TEXT    NOT NULL DEFAULT '[]',
	include_glob   TEXT    NOT NULL DEFAULT '',
	exclude_glob   TEXT    NOT NULL DEFAULT '',
	case_sensitive INTEGER NOT NULL DEFAULT 0,
	whole_word     INTEGER NOT NULL DEFAULT 0,
	outcome        TEXT    NOT NULL,
	total          INTEGER NOT NULL DEFAULT 0,
	processed      INTEGER NOT NULL DEFAULT 0,
	found          INTEGER NOT NULL DEFAULT 0,
	error          TEXT    NOT NULL DEFAULT '',
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	started_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_searches_fingerprint ON searches(fingerprint);
`

// DB wraps a sql.DB with history operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("history: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
