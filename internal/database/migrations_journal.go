package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DefaultUserName replaces empty user names when names become required.
const DefaultUserName = "No Name"

// RegisterJournalMigrations registers the journal schema history.
func RegisterJournalMigrations(r *MigrationRunner) {
	r.Register(Migration{
		Version:     "1.0.0",
		Name:        "initial_schema",
		Description: "Create the journal tables",
		Up:          initialSchemaUp,
		Down:        initialSchemaDown,
	})
	r.Register(Migration{
		Version:     "1.1.0",
		Name:        "make_user_name_required",
		Description: "Backfill empty user names and make the column NOT NULL",
		Up:          userNameRequiredUp,
		Down:        userNameRequiredDown,
	})
	r.Register(Migration{
		Version:     "1.2.0",
		Name:        "add_entry_and_mood_timestamps",
		Description: "Track UTC datetime and timezone on entries and mood logs",
		Up:          entryTimestampsUp,
		Down:        entryTimestampsDown,
	})
}

// NewJournalMigrationRunner returns a runner with the journal history registered.
func NewJournalMigrationRunner(ctx context.Context, db *sql.DB) (*MigrationRunner, error) {
	r, err := NewMigrationRunner(ctx, db)
	if err != nil {
		return nil, err
	}
	RegisterJournalMigrations(r)
	return r, nil
}

func execAll(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// ---------------------------------------------------------------------------
// 1.0.0 initial_schema
// ---------------------------------------------------------------------------

func initialSchemaUp(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE IF NOT EXISTS "user" (
			id TEXT NOT NULL PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT CHECK(name IS NULL OR length(name) > 0),
			is_active BOOLEAN NOT NULL DEFAULT 1,
			profile_picture_url TEXT,
			last_login_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS user_settings (
			id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE REFERENCES "user"(id) ON DELETE CASCADE,
			time_zone TEXT NOT NULL DEFAULT 'UTC',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS journal (
			id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT,
			color TEXT,
			icon TEXT,
			is_archived BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entry (
			id TEXT NOT NULL PRIMARY KEY,
			journal_id TEXT NOT NULL REFERENCES journal(id) ON DELETE CASCADE,
			title TEXT,
			content TEXT,
			entry_date DATE NOT NULL,
			word_count INTEGER NOT NULL DEFAULT 0,
			is_pinned BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mood (
			id TEXT NOT NULL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			icon TEXT,
			category TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mood_log (
			id TEXT NOT NULL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES "user"(id) ON DELETE CASCADE,
			entry_id TEXT REFERENCES entry(id) ON DELETE SET NULL,
			mood_id TEXT NOT NULL REFERENCES mood(id),
			note TEXT,
			logged_date DATE NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prompt (
			id TEXT NOT NULL PRIMARY KEY,
			text TEXT NOT NULL UNIQUE,
			category TEXT,
			difficulty_level INTEGER NOT NULL DEFAULT 1,
			estimated_time INTEGER,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_active ON "user"(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_journal_user ON journal(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entry_journal_date ON entry(journal_id, entry_date)`,
		`CREATE INDEX IF NOT EXISTS idx_mood_log_user_date ON mood_log(user_id, logged_date)`,
	)
}

func initialSchemaDown(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`DROP TABLE IF EXISTS mood_log`,
		`DROP TABLE IF EXISTS entry`,
		`DROP TABLE IF EXISTS journal`,
		`DROP TABLE IF EXISTS user_settings`,
		`DROP TABLE IF EXISTS prompt`,
		`DROP TABLE IF EXISTS mood`,
		`DROP TABLE IF EXISTS metadata`,
		`DROP TABLE IF EXISTS "user"`,
	)
}

// ---------------------------------------------------------------------------
// 1.1.0 make_user_name_required
// ---------------------------------------------------------------------------

// rebuildUserTable recreates "user" with the given name column definition.
// SQLite cannot alter a column constraint in place.
func rebuildUserTable(ctx context.Context, tx *sql.Tx, nameColumn, nameExpr string) error {
	return execAll(ctx, tx,
		`DROP TABLE IF EXISTS user_new`,
		fmt.Sprintf(`CREATE TABLE user_new (
			id TEXT NOT NULL PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			%s,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			profile_picture_url TEXT,
			last_login_at DATETIME
		)`, nameColumn),
		fmt.Sprintf(`INSERT INTO user_new
			SELECT id, created_at, updated_at, email, password, %s,
				is_active, profile_picture_url, last_login_at
			FROM "user"`, nameExpr),
		`DROP TABLE "user"`,
		`ALTER TABLE user_new RENAME TO "user"`,
		`CREATE INDEX IF NOT EXISTS idx_user_active ON "user"(is_active)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ix_user_email ON "user"(email)`,
		`CREATE INDEX IF NOT EXISTS ix_user_id ON "user"(id)`,
	)
}

// userNameRequiredUp backfills only NULL and empty names. Whitespace-only
// names already satisfy the length check and are kept as they are.
func userNameRequiredUp(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE "user" SET name = ? WHERE name IS NULL OR name = ''`, DefaultUserName,
	); err != nil {
		return fmt.Errorf("failed to backfill user names: %w", err)
	}
	return rebuildUserTable(ctx, tx,
		`name TEXT NOT NULL CHECK(length(name) > 0)`,
		fmt.Sprintf(`COALESCE(NULLIF(name, ''), '%s')`, DefaultUserName),
	)
}

func userNameRequiredDown(ctx context.Context, tx *sql.Tx) error {
	return rebuildUserTable(ctx, tx,
		`name TEXT CHECK(name IS NULL OR length(name) > 0)`,
		fmt.Sprintf(`CASE WHEN name = '%s' THEN NULL ELSE name END`, DefaultUserName),
	)
}

// ---------------------------------------------------------------------------
// 1.2.0 add_entry_and_mood_timestamps
// ---------------------------------------------------------------------------

func entryTimestampsUp(ctx context.Context, tx *sql.Tx) error {
	columns := []struct {
		table, column, definition string
	}{
		{"entry", "entry_datetime_utc", "DATETIME"},
		{"entry", "entry_timezone", "TEXT NOT NULL DEFAULT 'UTC'"},
		// No REFERENCES clause: SQLite refuses to drop a foreign key column.
		{"entry", "user_id", "TEXT"},
		{"mood_log", "logged_datetime_utc", "DATETIME"},
		{"mood_log", "logged_timezone", "TEXT NOT NULL DEFAULT 'UTC'"},
	}
	for _, c := range columns {
		if err := addColumnIfNotExists(ctx, tx, c.table, c.column, c.definition); err != nil {
			return err
		}
	}

	zones, err := loadUserZones(ctx, tx)
	if err != nil {
		return err
	}
	if err := backfillEntries(ctx, tx, zones); err != nil {
		return err
	}
	if err := backfillMoodLogs(ctx, tx, zones); err != nil {
		return err
	}

	if err := createIndexIfNotExists(ctx, tx, "idx_entry_user_datetime", "entry", "user_id, entry_datetime_utc"); err != nil {
		return err
	}
	return createIndexIfNotExists(ctx, tx, "idx_mood_logs_user_datetime", "mood_log", "user_id, logged_datetime_utc")
}

func entryTimestampsDown(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`DROP INDEX IF EXISTS idx_mood_logs_user_datetime`,
		`DROP INDEX IF EXISTS idx_entry_user_datetime`,
		`ALTER TABLE mood_log DROP COLUMN logged_timezone`,
		`ALTER TABLE mood_log DROP COLUMN logged_datetime_utc`,
		`ALTER TABLE entry DROP COLUMN user_id`,
		`ALTER TABLE entry DROP COLUMN entry_timezone`,
		`ALTER TABLE entry DROP COLUMN entry_datetime_utc`,
	)
}

// userZone is a user's configured timezone name and its location.
type userZone struct {
	name string
	loc  *time.Location
}

var utcZone = userZone{name: "UTC", loc: time.UTC}

// resolveZone maps a stored timezone name to a location. Blank and unknown
// names resolve to UTC.
func resolveZone(name string) userZone {
	name = strings.TrimSpace(name)
	if name == "" {
		return utcZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return utcZone
	}
	return userZone{name: name, loc: loc}
}

func loadUserZones(ctx context.Context, tx *sql.Tx) (map[string]userZone, error) {
	rows, err := tx.QueryContext(ctx, `SELECT user_id, time_zone FROM user_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to load user settings: %w", err)
	}
	defer rows.Close()

	zones := make(map[string]userZone)
	for rows.Next() {
		var userID string
		var tz sql.NullString
		if err := rows.Scan(&userID, &tz); err != nil {
			return nil, err
		}
		zones[userID] = resolveZone(tz.String)
	}
	return zones, rows.Err()
}

func zoneFor(zones map[string]userZone, userID string) userZone {
	if z, ok := zones[userID]; ok {
		return z
	}
	return utcZone
}

type entryBackfill struct {
	id        string
	createdAt time.Time
	userID    sql.NullString
}

// backfillEntries fills rows that have no UTC datetime yet, so a rerun over
// a schema created by EnsureSchema leaves existing values alone.
func backfillEntries(ctx context.Context, tx *sql.Tx, zones map[string]userZone) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT e.id, e.created_at, j.user_id
		FROM entry e
		LEFT JOIN journal j ON j.id = e.journal_id
		WHERE e.entry_datetime_utc IS NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to load entries: %w", err)
	}

	var pending []entryBackfill
	for rows.Next() {
		var eb entryBackfill
		var created any
		if err := rows.Scan(&eb.id, &created, &eb.userID); err != nil {
			rows.Close()
			return err
		}
		eb.createdAt = parseTimestamp(created)
		pending = append(pending, eb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, eb := range pending {
		zone := zoneFor(zones, eb.userID.String)
		localDate := eb.createdAt.In(zone.loc).Format("2006-01-02")
		_, err := tx.ExecContext(ctx, `
			UPDATE entry
			SET entry_datetime_utc = ?, entry_timezone = ?, user_id = ?, entry_date = ?
			WHERE id = ?
		`, eb.createdAt, zone.name, eb.userID, localDate, eb.id)
		if err != nil {
			return fmt.Errorf("failed to backfill entry %s: %w", eb.id, err)
		}
	}
	return nil
}

type moodBackfill struct {
	id         string
	createdAt  time.Time
	userID     string
	entryFound bool
	entryTime  time.Time
	entryZone  string
	entryDate  string
}

func backfillMoodLogs(ctx context.Context, tx *sql.Tx, zones map[string]userZone) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT m.id, m.created_at, m.user_id, e.id, e.entry_datetime_utc, e.entry_timezone,
			CAST(e.entry_date AS TEXT)
		FROM mood_log m
		LEFT JOIN entry e ON e.id = m.entry_id
		WHERE m.logged_datetime_utc IS NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to load mood logs: %w", err)
	}

	var pending []moodBackfill
	for rows.Next() {
		var mb moodBackfill
		var created, entryTime any
		var entryID, entryZone, entryDate sql.NullString
		if err := rows.Scan(&mb.id, &created, &mb.userID, &entryID, &entryTime, &entryZone, &entryDate); err != nil {
			rows.Close()
			return err
		}
		mb.createdAt = parseTimestamp(created)
		if entryID.Valid {
			mb.entryFound = true
			mb.entryTime = parseTimestamp(entryTime)
			mb.entryZone = entryZone.String
			mb.entryDate = entryDate.String
		}
		pending = append(pending, mb)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, mb := range pending {
		var loggedAt time.Time
		var zoneName, loggedDate string
		if mb.entryFound {
			loggedAt = mb.entryTime
			zoneName = mb.entryZone
			if zoneName == "" {
				zoneName = utcZone.name
			}
			loggedDate = mb.entryDate
		} else {
			zone := zoneFor(zones, mb.userID)
			loggedAt = mb.createdAt
			zoneName = zone.name
			loggedDate = loggedAt.In(zone.loc).Format("2006-01-02")
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE mood_log
			SET logged_datetime_utc = ?, logged_timezone = ?, logged_date = ?
			WHERE id = ?
		`, loggedAt, zoneName, loggedDate, mb.id)
		if err != nil {
			return fmt.Errorf("failed to backfill mood log %s: %w", mb.id, err)
		}
	}
	return nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339Nano,
}

// parseTimestamp converts a scanned DATETIME value to UTC. Naive values are
// taken as UTC and unparseable or missing values become the current time.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		return parseTimestampString(t)
	case []byte:
		return parseTimestampString(string(t))
	}
	return time.Now().UTC()
}

func parseTimestampString(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// ---------------------------------------------------------------------------
// Idempotent schema helpers
// ---------------------------------------------------------------------------

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func addColumnIfNotExists(ctx context.Context, tx *sql.Tx, table, column, definition string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %q ADD COLUMN %s %s`, table, column, definition))
	if err != nil {
		return fmt.Errorf("failed to add %s.%s: %w", table, column, err)
	}
	return nil
}

func createIndexIfNotExists(ctx context.Context, tx *sql.Tx, name, table, columns string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %q(%s)`, name, table, columns))
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	return nil
}
