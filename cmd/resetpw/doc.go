// Command resetpw manages journiv user passwords from the command line, for
// when the account owner is locked out of the web interface or a fresh
// development database has no account yet.
//
// Usage:
//
//	resetpw <command> [arguments]
//
// Commands:
//
//	create <email> [name]
//	               Prompt twice for a password and add a user. The name
//	               defaults to "No Name".
//
//	reset <email>  Prompt twice for a new password (without echo) and store
//	               its bcrypt hash for the user with that email address.
//	               Passwords shorter than 8 characters are rejected.
//
//	status         Print how many user accounts exist.
//
// Environment:
//
//	DATABASE_PATH - SQLite database file (default: $DATA_DIR/journiv.db)
//	DATA_DIR      - Data volume root (default: /data)
package main
