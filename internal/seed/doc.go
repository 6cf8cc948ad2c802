// Package seed inserts the reference data a fresh journal database needs:
// the default moods and the writing prompts.
//
// Seeding is idempotent. A row is inserted only when no row with the same
// natural key (mood name, prompt text) exists, so running the seeder on every
// container start is safe. The whole run happens in one transaction.
//
// The seeder does not create tables. If the schema is missing a reference
// table, for example because the migration step failed, Seed returns an error
// rather than repairing the schema.
package seed
