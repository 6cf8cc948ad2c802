package database

import (
	"context"
	"fmt"

	"journiv/internal/logging"
)

// journalTables lists every table the journal schema owns.
var journalTables = []string{
	"user",
	"user_settings",
	"journal",
	"entry",
	"mood",
	"mood_log",
	"prompt",
	"metadata",
	"schema_migrations",
}

func isJournalTable(name string) bool {
	for _, t := range journalTables {
		if t == name {
			return true
		}
	}
	return false
}

// latestSchema is the table layout after the newest migration.
const latestSchema = `
CREATE TABLE IF NOT EXISTS "user" (
	id TEXT NOT NULL PRIMARY KEY,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL,
	name TEXT NOT NULL CHECK(length(name) > 0),
	is_active BOOLEAN NOT NULL DEFAULT 1,
	profile_picture_url TEXT,
	last_login_at DATETIME
);

CREATE TABLE IF NOT EXISTS user_settings (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE REFERENCES "user"(id) ON DELETE CASCADE,
	time_zone TEXT NOT NULL DEFAULT 'UTC',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS journal (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT,
	color TEXT,
	icon TEXT,
	is_archived BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS entry (
	id TEXT NOT NULL PRIMARY KEY,
	journal_id TEXT NOT NULL REFERENCES journal(id) ON DELETE CASCADE,
	title TEXT,
	content TEXT,
	entry_date DATE NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	is_pinned BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	entry_datetime_utc DATETIME,
	entry_timezone TEXT NOT NULL DEFAULT 'UTC',
	user_id TEXT
);

CREATE TABLE IF NOT EXISTS mood (
	id TEXT NOT NULL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	icon TEXT,
	category TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS mood_log (
	id TEXT NOT NULL PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
	entry_id TEXT REFERENCES entry(id) ON DELETE SET NULL,
	mood_id TEXT NOT NULL REFERENCES mood(id),
	note TEXT,
	logged_date DATE NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	logged_datetime_utc DATETIME,
	logged_timezone TEXT NOT NULL DEFAULT 'UTC'
);

CREATE TABLE IF NOT EXISTS prompt (
	id TEXT NOT NULL PRIMARY KEY,
	text TEXT NOT NULL UNIQUE,
	category TEXT,
	difficulty_level INTEGER NOT NULL DEFAULT 1,
	estimated_time INTEGER,
	is_active BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT
);

CREATE INDEX IF NOT EXISTS idx_user_active ON "user"(is_active);
CREATE UNIQUE INDEX IF NOT EXISTS ix_user_email ON "user"(email);
CREATE INDEX IF NOT EXISTS idx_journal_user ON journal(user_id);
CREATE INDEX IF NOT EXISTS idx_entry_journal_date ON entry(journal_id, entry_date);
CREATE INDEX IF NOT EXISTS idx_mood_log_user_date ON mood_log(user_id, logged_date);
`

// EnsureSchema creates any missing journal tables in their newest shape.
// It is the server's fallback when the migration step did not reach head;
// existing tables are left untouched.
func (d *Database) EnsureSchema(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	missing := 0
	for _, t := range journalTables {
		if t == "schema_migrations" {
			continue
		}
		ok, err := tableExists(ctx, d.db, t)
		if err != nil {
			return err
		}
		if !ok {
			missing++
		}
	}
	if missing == 0 {
		logging.Debug("Schema fallback: all tables present")
		return nil
	}

	logging.Warn("Schema fallback: creating %d missing table(s)", missing)
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
