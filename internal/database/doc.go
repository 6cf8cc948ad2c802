// Package database provides SQLite storage for the journiv journal schema.
//
// It owns the schema through a versioned [MigrationRunner]: every change to
// the tables is a registered [Migration] applied inside its own transaction
// and recorded in schema_migrations. [RegisterJournalMigrations] registers the
// journal schema history.
//
// When migrations could not run, the server calls [Database.EnsureSchema],
// which creates any missing table in its latest shape without touching the
// migration history.
//
// The database uses WAL mode and a busy timeout so the migrate, seed and
// serve processes can open the same file in turn.
package database
