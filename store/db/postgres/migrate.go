package postgres

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS message (
		id SERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_message_conversation_id ON message (conversation_id)`,
	`CREATE TABLE IF NOT EXISTS poll (
		id SERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		trip_id INTEGER NOT NULL,
		question TEXT NOT NULL,
		allow_multiple BOOLEAN NOT NULL DEFAULT FALSE,
		options TEXT NOT NULL DEFAULT '[]',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vote (
		id SERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		poll_id INTEGER NOT NULL,
		option_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_ts BIGINT NOT NULL,
		UNIQUE(poll_id, option_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS trip (
		id SERIAL PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'USD',
		start_ts BIGINT NOT NULL DEFAULT 0,
		end_ts BIGINT NOT NULL DEFAULT 0,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS expense (
		id SERIAL PRIMARY KEY,
		trip_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT '',
		paid_by TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id SERIAL PRIMARY KEY,
		trip_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		start_ts BIGINT NOT NULL DEFAULT 0,
		end_ts BIGINT NOT NULL DEFAULT 0,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transportation (
		id SERIAL PRIMARY KEY,
		trip_id INTEGER NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT '',
		destination TEXT NOT NULL DEFAULT '',
		departure_ts BIGINT NOT NULL DEFAULT 0,
		arrival_ts BIGINT NOT NULL DEFAULT 0,
		confirmation TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lodging (
		id SERIAL PRIMARY KEY,
		trip_id INTEGER NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		check_in_ts BIGINT NOT NULL DEFAULT 0,
		check_out_ts BIGINT NOT NULL DEFAULT 0,
		confirmation TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS note (
		id SERIAL PRIMARY KEY,
		trip_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS checklist_item (
		id SERIAL PRIMARY KEY,
		trip_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		done BOOLEAN NOT NULL DEFAULT FALSE,
		created_ts BIGINT NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	return nil
}
