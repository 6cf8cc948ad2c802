package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"journiv/internal/logging"
)

// HeadRevision targets the newest registered migration.
const HeadRevision = "head"

// BaseRevision targets an empty migration history.
const BaseRevision = "base"

// ErrUnknownRevision is returned when a target version is not registered.
var ErrUnknownRevision = errors.New("unknown migration revision")

// Metadata keys written by the migrate command after an upgrade run.
const (
	MetaMigrationFailedVersion = "migrate.failed_version"
	MetaMigrationError         = "migrate.error"
)

// MigrationError reports which migration an upgrade stopped at.
type MigrationError struct {
	Version string
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// Migration is one versioned schema change.
type Migration struct {
	Version     string // Semantic version, e.g. "1.2.0"
	Name        string
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
	Down        func(ctx context.Context, tx *sql.Tx) error // optional
	Checksum    string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	ID        int64
	Version   string
	Name      string
	Checksum  string
	AppliedAt time.Time
	Duration  int64 // milliseconds
}

// MigrationRunner applies registered migrations in version order.
type MigrationRunner struct {
	db         *sql.DB
	migrations []Migration
}

// NewMigrationRunner creates a runner and ensures schema_migrations exists.
func NewMigrationRunner(ctx context.Context, db *sql.DB) (*MigrationRunner, error) {
	r := &MigrationRunner{db: db}
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return r, nil
}

func (r *MigrationRunner) ensureMigrationsTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		checksum TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		rolled_back_at DATETIME,
		rollback_reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_schema_migrations_applied_at ON schema_migrations(applied_at);
	`)
	return err
}

// Register adds a migration. Registration order does not matter.
func (r *MigrationRunner) Register(m Migration) {
	if m.Checksum == "" {
		sum := sha256.Sum256([]byte(m.Version + ":" + m.Name))
		m.Checksum = hex.EncodeToString(sum[:8])
	}
	r.migrations = append(r.migrations, m)
	sort.SliceStable(r.migrations, func(i, j int) bool {
		return compareVersions(r.migrations[i].Version, r.migrations[j].Version) < 0
	})
}

// Migrations returns the registered migrations in version order.
func (r *MigrationRunner) Migrations() []Migration {
	out := make([]Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

// Head returns the newest registered version, or "" when none are registered.
func (r *MigrationRunner) Head() string {
	if len(r.migrations) == 0 {
		return ""
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Applied returns the migrations currently applied, oldest first.
func (r *MigrationRunner) Applied(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, name, checksum, applied_at, duration_ms
		FROM schema_migrations
		WHERE rolled_back_at IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.ID, &rec.Version, &rec.Name, &rec.Checksum, &rec.AppliedAt, &rec.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan migration record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return compareVersions(records[i].Version, records[j].Version) < 0
	})
	return records, nil
}

// Current returns the newest applied version, or "" for an empty history.
func (r *MigrationRunner) Current(ctx context.Context) (string, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return "", err
	}
	if len(applied) == 0 {
		return "", nil
	}
	return applied[len(applied)-1].Version, nil
}

// Pending returns registered migrations not yet applied, in version order.
func (r *MigrationRunner) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}

	appliedSet := make(map[string]MigrationRecord, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = rec
	}

	var pending []Migration
	for _, m := range r.migrations {
		rec, ok := appliedSet[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if rec.Checksum != m.Checksum {
			logging.Warn("Migration %s checksum drift: recorded %s, registered %s", m.Version, rec.Checksum, m.Checksum)
		}
	}
	return pending, nil
}

// Upgrade applies pending migrations up to and including target
// (HeadRevision for all of them). It returns the number applied.
func (r *MigrationRunner) Upgrade(ctx context.Context, target string) (int, error) {
	if target == "" || target == HeadRevision {
		target = r.Head()
	} else if !r.isRegistered(target) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRevision, target)
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range pending {
		if compareVersions(m.Version, target) > 0 {
			break
		}
		if err := r.apply(ctx, m); err != nil {
			return count, &MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
		count++
	}

	if count == 0 {
		logging.Info("  Schema already at %s, nothing to apply", target)
	}
	return count, nil
}

// Downgrade rolls back applied migrations newer than target
// (BaseRevision for all of them), newest first.
func (r *MigrationRunner) Downgrade(ctx context.Context, target, reason string) (int, error) {
	if target != BaseRevision && !r.isRegistered(target) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRevision, target)
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(applied) - 1; i >= 0; i-- {
		version := applied[i].Version
		if target != BaseRevision && compareVersions(version, target) <= 0 {
			break
		}
		if err := r.Rollback(ctx, version, reason); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (r *MigrationRunner) isRegistered(version string) bool {
	return r.find(version) != nil
}

func (r *MigrationRunner) find(version string) *Migration {
	for i := range r.migrations {
		if r.migrations[i].Version == version {
			return &r.migrations[i]
		}
	}
	return nil
}

// apply runs one migration in a transaction on a pinned connection with
// foreign key enforcement off, so table rebuilds do not cascade.
func (r *MigrationRunner) apply(ctx context.Context, m Migration) error {
	logging.Info("  Running migration %s: %s", m.Version, m.Name)
	start := time.Now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := m.Up(ctx, tx); err != nil {
			return fmt.Errorf("up: %w", err)
		}

		// A rolled back record for this version blocks the unique index.
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM schema_migrations WHERE version = ? AND rolled_back_at IS NOT NULL", m.Version,
		); err != nil {
			return fmt.Errorf("failed to clear rolled back record: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, name, checksum, applied_at, duration_ms)
			VALUES (?, ?, ?, ?, ?)
		`, m.Version, m.Name, m.Checksum, time.Now().UTC(), time.Since(start).Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Info("  [OK] Migration %s completed in %v", m.Version, time.Since(start))
	return nil
}

// Rollback runs the Down function of an applied migration and marks it
// rolled back.
func (r *MigrationRunner) Rollback(ctx context.Context, version, reason string) error {
	m := r.find(version)
	if m == nil {
		return fmt.Errorf("%w: %s", ErrUnknownRevision, version)
	}
	if m.Down == nil {
		return fmt.Errorf("migration %s does not support rollback", version)
	}

	var appliedAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		"SELECT applied_at FROM schema_migrations WHERE version = ? AND rolled_back_at IS NULL", version,
	).Scan(&appliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("migration %s is not applied", version)
	}
	if err != nil {
		return fmt.Errorf("failed to check migration %s: %w", version, err)
	}

	logging.Info("  Rolling back migration %s: %s", m.Version, m.Name)
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := m.Down(ctx, tx); err != nil {
			return fmt.Errorf("down %s: %w", version, err)
		}
		_, err := tx.ExecContext(ctx,
			"UPDATE schema_migrations SET rolled_back_at = ?, rollback_reason = ? WHERE version = ?",
			time.Now().UTC(), reason, version,
		)
		return err
	})
}

func (r *MigrationRunner) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := conn.ExecContext(context.Background(), "PRAGMA foreign_keys = ON"); fkErr != nil {
			logging.Warn("failed to re-enable foreign keys: %v", fkErr)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			if pErr, ok := p.(error); ok {
				err = fmt.Errorf("migration panicked: %w", pErr)
			} else {
				err = fmt.Errorf("migration panicked: %v", p)
			}
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := checkForeignKeys(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign key check failed: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		var table string
		var rowid sql.NullInt64
		var parent string
		var fkid int
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("foreign key check failed: %w", err)
		}
		return fmt.Errorf("foreign key violation in %s (row %d) referencing %s", table, rowid.Int64, parent)
	}
	return rows.Err()
}

// compareVersions compares dotted numeric versions. Missing parts count as 0.
func compareVersions(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var na, nb int
		if i < len(pa) {
			na, _ = strconv.Atoi(pa[i])
		}
		if i < len(pb) {
			nb, _ = strconv.Atoi(pb[i])
		}
		if na != nb {
			if na < nb {
				return -1
			}
			return 1
		}
	}
	return 0
}

// SchemaVersion returns the newest applied migration version, or "" when no
// migration has run.
func (d *Database) SchemaVersion(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	ok, err := tableExists(ctx, d.db, "schema_migrations")
	if err != nil || !ok {
		return "", err
	}

	rows, err := d.db.QueryContext(ctx, "SELECT version FROM schema_migrations WHERE rolled_back_at IS NULL")
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	defer rows.Close()

	current := ""
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return "", err
		}
		if current == "" || compareVersions(v, current) > 0 {
			current = v
		}
	}
	return current, rows.Err()
}
