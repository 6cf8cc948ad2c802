package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"journiv/internal/database"
	"journiv/internal/startup"
)

// Default timeout for database operations
const defaultTimeout = 30 * time.Second

// readPassword reads a line from the terminal without echo.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	command := args[0]
	if command != "reset" && command != "create" && command != "status" {
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command)) //nolint:gosec // G705 - input is sanitized via allowlist in sanitizeCommand
		printUsage(stderr)
		return 1
	}

	cfg, err := startup.LoadConfig("")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(stderr, "Make sure DATABASE_PATH is set correctly (current: %s)\n", cfg.DatabasePath)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "reset":
		if len(args) != 2 {
			fmt.Fprintln(stderr, "Error: reset requires the user's email address")
			printUsage(stderr)
			return 1
		}
		if !resetPassword(ctx, db, args[1], stdout, stderr) {
			return 1
		}
	case "create":
		if len(args) < 2 || len(args) > 3 {
			fmt.Fprintln(stderr, "Error: create requires the user's email address and an optional name")
			printUsage(stderr)
			return 1
		}
		name := database.DefaultUserName
		if len(args) == 3 {
			name = args[2]
		}
		if !createUser(ctx, db, args[1], name, stdout, stderr) {
			return 1
		}
	case "status":
		if !showStatus(ctx, db, stdout, stderr) {
			return 1
		}
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Journiv Password Management")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: resetpw <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create <email> [name]  - Create a user")
	fmt.Fprintln(w, "  reset <email>          - Reset the password of a user")
	fmt.Fprintln(w, "  status                 - Show how many users exist")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  DATABASE_PATH - SQLite database file (default: %s/journiv.db)\n", startup.DefaultDataDir)
}

// validatePassword checks a new password and its confirmation.
func validatePassword(password, confirm []byte) error {
	if !bytes.Equal(password, confirm) {
		return errors.New("passwords do not match")
	}
	if len(password) < database.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", database.MinPasswordLength)
	}
	return nil
}

func resetPassword(ctx context.Context, db *database.Database, email string, stdout, stderr io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if !db.HasUsers(ctx) {
		fmt.Fprintln(stderr, "Error: No users exist yet. Create one with 'resetpw create <email>' first.")
		return false
	}

	password, ok := promptPassword(stdout, stderr)
	if !ok {
		return false
	}

	if err := db.UpdatePassword(ctx, email, string(password)); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			fmt.Fprintf(stderr, "Error: No user with email %s\n", email)
			return false
		}
		fmt.Fprintf(stderr, "Error: Failed to update password: %v\n", err)
		return false
	}

	fmt.Fprintf(stdout, "Password updated for %s.\n", strings.ToLower(email))
	return true
}

func createUser(ctx context.Context, db *database.Database, email, name string, stdout, stderr io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if !strings.Contains(email, "@") {
		fmt.Fprintf(stderr, "Error: %q is not an email address\n", email)
		return false
	}

	password, ok := promptPassword(stdout, stderr)
	if !ok {
		return false
	}

	if _, err := db.CreateUser(ctx, email, name, string(password)); err != nil {
		fmt.Fprintf(stderr, "Error: Failed to create user: %v\n", err)
		return false
	}

	fmt.Fprintf(stdout, "User %s created.\n", strings.ToLower(email))
	return true
}

// promptPassword asks for a password twice and validates it.
func promptPassword(stdout, stderr io.Writer) ([]byte, bool) {
	fmt.Fprint(stdout, "New Password: ")
	password, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading password: %v\n", err)
		return nil, false
	}

	fmt.Fprint(stdout, "Confirm Password: ")
	confirm, err := readPassword()
	fmt.Fprintln(stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading password: %v\n", err)
		return nil, false
	}

	if err := validatePassword(password, confirm); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, false
	}
	return password, true
}

func showStatus(ctx context.Context, db *database.Database, stdout, stderr io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := db.CountUsers(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to read users: %v\n", err)
		return false
	}

	switch n {
	case 0:
		fmt.Fprintln(stdout, "Status: No users (create one with 'resetpw create <email>')")
	case 1:
		fmt.Fprintln(stdout, "Status: 1 user")
	default:
		fmt.Fprintf(stdout, "Status: %d users\n", n)
	}
	return true
}
