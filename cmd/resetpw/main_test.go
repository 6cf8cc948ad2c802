package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"journiv/internal/database"
)

// setupTestDB creates a migrated journal database and points DATABASE_PATH at it.
func setupTestDB(t *testing.T) *database.Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "journiv.db")
	t.Setenv("DATABASE_PATH", dbPath)

	ctx := context.Background()
	db, err := database.New(ctx, dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close database: %v", err)
		}
	})

	r, err := database.NewJournalMigrationRunner(ctx, db.DB())
	if err != nil {
		t.Fatalf("NewJournalMigrationRunner() error = %v", err)
	}
	if _, err := r.Upgrade(ctx, database.HeadRevision); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}
	return db
}

// stubPasswords makes readPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()

	old := readPassword
	t.Cleanup(func() { readPassword = old })

	i := 0
	readPassword = func() ([]byte, error) {
		if i >= len(answers) {
			return nil, errors.New("no more input")
		}
		i++
		return []byte(answers[i-1]), nil
	}
}

// passwordMatches reports whether the stored hash for email matches password.
func passwordMatches(t *testing.T, db *database.Database, email, password string) bool {
	t.Helper()

	var hash string
	err := db.DB().QueryRowContext(context.Background(),
		`SELECT password FROM "user" WHERE email = ?`, email).Scan(&hash)
	if err != nil {
		t.Fatalf("loading password hash for %s: %v", email, err)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)

	for _, want := range []string{"create <email>", "reset <email>", "status", "DATABASE_PATH"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("usage missing %q", want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		wantErr  bool
	}{
		{name: "valid password", password: "validpass123", confirm: "validpass123"},
		{name: "minimum length password", password: "12345678", confirm: "12345678"},
		{name: "too short password", password: "1234567", confirm: "1234567", wantErr: true},
		{name: "empty password", password: "", confirm: "", wantErr: true},
		{name: "mismatched passwords", password: "password123", confirm: "password456", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePassword([]byte(tt.password), []byte(tt.confirm))
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		answers   []string
		wantOK    bool
		wantError string
	}{
		{name: "success", email: "writer@example.com", answers: []string{"new-password", "new-password"}, wantOK: true},
		{name: "email is case insensitive", email: "Writer@Example.com", answers: []string{"new-password", "new-password"}, wantOK: true},
		{name: "mismatch", email: "writer@example.com", answers: []string{"new-password", "other-password"}, wantError: "do not match"},
		{name: "too short", email: "writer@example.com", answers: []string{"short", "short"}, wantError: "at least 8"},
		{name: "unknown user", email: "nobody@example.com", answers: []string{"new-password", "new-password"}, wantError: "No user with email"},
		{name: "read error", email: "writer@example.com", answers: nil, wantError: "reading password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			if _, err := db.CreateUser(ctx, "writer@example.com", "Writer", "old-password"); err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}
			stubPasswords(t, tt.answers...)

			var stdout, stderr bytes.Buffer
			ok := resetPassword(ctx, db, tt.email, &stdout, &stderr)
			if ok != tt.wantOK {
				t.Fatalf("resetPassword() = %v, want %v (stderr %q)", ok, tt.wantOK, stderr.String())
			}
			if tt.wantError != "" && !strings.Contains(stderr.String(), tt.wantError) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantError)
			}

			wantPassword := "old-password"
			if tt.wantOK {
				wantPassword = "new-password"
			}
			if !passwordMatches(t, db, "writer@example.com", wantPassword) {
				t.Errorf("stored password is not %q", wantPassword)
			}
		})
	}
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		answers   []string
		wantOK    bool
		wantError string
	}{
		{name: "success", email: "Writer@Example.com", answers: []string{"first-password", "first-password"}, wantOK: true},
		{name: "not an email", email: "writer", answers: []string{"first-password", "first-password"}, wantError: "not an email"},
		{name: "mismatch", email: "writer@example.com", answers: []string{"first-password", "other-password"}, wantError: "do not match"},
		{name: "too short", email: "writer@example.com", answers: []string{"short", "short"}, wantError: "at least 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			stubPasswords(t, tt.answers...)

			var stdout, stderr bytes.Buffer
			ok := createUser(ctx, db, tt.email, "Writer", &stdout, &stderr)
			if ok != tt.wantOK {
				t.Fatalf("createUser() = %v, want %v (stderr %q)", ok, tt.wantOK, stderr.String())
			}
			if tt.wantError != "" && !strings.Contains(stderr.String(), tt.wantError) {
				t.Errorf("stderr = %q, want it to contain %q", stderr.String(), tt.wantError)
			}

			n, err := db.CountUsers(ctx)
			if err != nil {
				t.Fatalf("CountUsers() error = %v", err)
			}
			if !tt.wantOK {
				if n != 0 {
					t.Errorf("CountUsers() = %d after a failed create, want 0", n)
				}
				return
			}
			if n != 1 {
				t.Fatalf("CountUsers() = %d, want 1", n)
			}
			if !passwordMatches(t, db, "writer@example.com", "first-password") {
				t.Error("stored password does not match")
			}
			if passwordMatches(t, db, "writer@example.com", "wrong-password") {
				t.Error("stored hash accepts the wrong password")
			}
		})
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	if _, err := db.CreateUser(ctx, "writer@example.com", "Writer", "old-password"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	stubPasswords(t, "new-password", "new-password")

	var stdout, stderr bytes.Buffer
	if createUser(ctx, db, "WRITER@example.com", "Writer", &stdout, &stderr) {
		t.Error("createUser() should reject an existing email")
	}
	if !passwordMatches(t, db, "writer@example.com", "old-password") {
		t.Error("existing user's password was changed")
	}
}

func TestResetPasswordNoUsers(t *testing.T) {
	db := setupTestDB(t)
	stubPasswords(t)

	var stdout, stderr bytes.Buffer
	if resetPassword(context.Background(), db, "a@example.com", &stdout, &stderr) {
		t.Error("resetPassword() should fail when no users exist")
	}
	if !strings.Contains(stderr.String(), "No users exist") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestShowStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		addUser string
		want    string
	}{
		{"", "No users"},
		{"a@example.com", "1 user"},
		{"b@example.com", "2 users"},
	}

	for _, tt := range tests {
		if tt.addUser != "" {
			if _, err := db.CreateUser(ctx, tt.addUser, "Name", "password-1"); err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}
		}
		var stdout, stderr bytes.Buffer
		if !showStatus(ctx, db, &stdout, &stderr) {
			t.Fatalf("showStatus() failed: %s", stderr.String())
		}
		if !strings.Contains(stdout.String(), tt.want) {
			t.Errorf("status = %q, want %q", stdout.String(), tt.want)
		}
	}
}

func TestShowStatusClosedDatabase(t *testing.T) {
	db := setupTestDB(t)
	_ = db.Close()

	var stdout, stderr bytes.Buffer
	if showStatus(context.Background(), db, &stdout, &stderr) {
		t.Error("showStatus() should fail on a closed database")
	}
}

func TestRun(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.CreateUser(context.Background(), "a@example.com", "A", "password-1"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{name: "status", args: []string{"status"}, wantCode: 0, wantOut: "1 user"},
		{name: "unknown command", args: []string{"rm -rf"}, wantCode: 1, wantErr: "Unknown command: rm_-rf"},
		{name: "reset without email", args: []string{"reset"}, wantCode: 1, wantErr: "requires the user's email"},
		{name: "create without email", args: []string{"create"}, wantCode: 1, wantErr: "create requires"},
		{name: "create with extra arguments", args: []string{"create", "b@example.com", "B", "extra"}, wantCode: 1, wantErr: "create requires"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			if code != tt.wantCode {
				t.Errorf("run() = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if tt.wantOut != "" && !strings.Contains(stdout.String(), tt.wantOut) {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.wantOut)
			}
			if tt.wantErr != "" && !strings.Contains(stderr.String(), tt.wantErr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.wantErr)
			}
		})
	}
}

func TestRunCreateDefaultName(t *testing.T) {
	db := setupTestDB(t)
	stubPasswords(t, "first-password", "first-password")

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"create", "a@example.com"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run(create) = %d (stderr %q)", code, stderr.String())
	}

	var name string
	err := db.DB().QueryRowContext(context.Background(),
		`SELECT name FROM "user" WHERE email = ?`, "a@example.com").Scan(&name)
	if err != nil {
		t.Fatalf("loading user: %v", err)
	}
	if name != database.DefaultUserName {
		t.Errorf("name = %q, want %q", name, database.DefaultUserName)
	}
}

func TestRunMissingDatabaseDirectory(t *testing.T) {
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "missing", "journiv.db"))

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"status"}, &stdout, &stderr); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "DATABASE_PATH") {
		t.Errorf("stderr = %q, want a DATABASE_PATH hint", stderr.String())
	}
}

func TestSanitizeCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"reset", "reset"},
		{"status", "status"},
		{"re set", "re_set"},
		{"cmd\nINJECTED", "cmd_INJECTED"},
		{"\x1b[31m", "__31m"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := sanitizeCommand(tt.in); got != tt.want {
			t.Errorf("sanitizeCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
