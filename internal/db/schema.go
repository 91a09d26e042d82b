// Package db provides database schema management.
package db

import (
	"database/sql"
	"fmt"
)

// schemaStatements is the ordered DDL applied at startup. Every statement is
// idempotent so Ensure can run on both fresh and existing databases.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS permissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		document_id TEXT NOT NULL REFERENCES documents(id),
		can_view INTEGER NOT NULL DEFAULT 1,
		can_edit INTEGER NOT NULL DEFAULT 0,
		can_print INTEGER NOT NULL DEFAULT 0,
		can_copy INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(user_id, document_id)
	);`,

	`CREATE TABLE IF NOT EXISTS change_log (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL CHECK(kind IN ('update', 'revert')),
		before_content TEXT NOT NULL,
		after_content TEXT NOT NULL,
		based_on TEXT,
		created_at INTEGER NOT NULL
	);`,

	`CREATE INDEX IF NOT EXISTS idx_change_log_document
		ON change_log(document_id, created_at);`,

	`CREATE TABLE IF NOT EXISTS invite_links (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		document_id TEXT NOT NULL REFERENCES documents(id),
		creator_id TEXT NOT NULL REFERENCES users(id),
		can_view INTEGER NOT NULL DEFAULT 1,
		can_edit INTEGER NOT NULL DEFAULT 0,
		can_print INTEGER NOT NULL DEFAULT 0,
		can_copy INTEGER NOT NULL DEFAULT 0,
		expires_at INTEGER NOT NULL DEFAULT 0,
		revoked_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id),
		content TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);`,

	`CREATE INDEX IF NOT EXISTS idx_permissions_user
		ON permissions(user_id);`,
}

// Ensure applies the schema inside a single transaction.
func Ensure(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	return tx.Commit()
}
