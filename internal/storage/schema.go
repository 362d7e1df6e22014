package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// The same DDL runs on postgres and sqlite: TEXT ids generated by the app,
// TIMESTAMP written by the app in UTC, uniqueness enforced by the store.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		id         TEXT PRIMARY KEY,
		chat_id    TEXT NOT NULL UNIQUE,
		stage      TEXT NOT NULL DEFAULT 'start',
		lead_type  TEXT NOT NULL DEFAULT 'unknown',
		summary    TEXT NOT NULL DEFAULT '',
		opt_out    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id                  TEXT PRIMARY KEY,
		contact_id          TEXT NOT NULL REFERENCES contacts(id),
		direction           TEXT NOT NULL,
		provider_message_id TEXT NOT NULL UNIQUE,
		text                TEXT NOT NULL,
		created_at          TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_contact_time ON messages (contact_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS replies (
		provider_message_id TEXT PRIMARY KEY REFERENCES messages(provider_message_id),
		status              TEXT NOT NULL,
		attempts            INTEGER NOT NULL DEFAULT 1,
		error               TEXT NOT NULL DEFAULT '',
		updated_at          TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL DEFAULT ''
	)`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
