package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL DEFAULT '',
	updated_at  TEXT NOT NULL DEFAULT '',
	total       INTEGER NOT NULL DEFAULT 0,
	archived_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	conversation_id  TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	id               TEXT NOT NULL,
	seq              INTEGER NOT NULL,
	role             TEXT NOT NULL,
	content          TEXT NOT NULL DEFAULT '',
	created_at       TEXT NOT NULL DEFAULT '',
	thinking_seconds REAL,
	PRIMARY KEY (conversation_id, id)
);
CREATE TABLE IF NOT EXISTS images (
	row_id          TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	position        INTEGER NOT NULL,
	url             TEXT NOT NULL,
	width           INTEGER NOT NULL DEFAULT 0,
	height          INTEGER NOT NULL DEFAULT 0,
	mime_type       TEXT NOT NULL DEFAULT '',
	prompt          TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (conversation_id, message_id) REFERENCES messages(conversation_id, id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_seq ON messages(conversation_id, seq);
CREATE INDEX IF NOT EXISTS idx_images_message ON images(conversation_id, message_id, position);
`

// OpenDatabase opens (creating if needed) the SQLite archive at path and
// applies the schema
func OpenDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(archiveSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
