package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrUserNotFound is returned when no user matches the given email.
var ErrUserNotFound = errors.New("user not found")

// MinPasswordLength is the shortest password accepted for a journal user.
const MinPasswordLength = 8

// CountUsers returns the number of user accounts.
func (d *Database) CountUsers(ctx context.Context) (int, error) {
	return d.CountRows(ctx, "user")
}

// HasUsers reports whether at least one user account exists.
func (d *Database) HasUsers(ctx context.Context) bool {
	n, err := d.CountUsers(ctx)
	return err == nil && n > 0
}

// CreateUser adds a user with a bcrypt-hashed password and returns its id.
func (d *Database) CreateUser(ctx context.Context, email, name, password string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_user", start, err) }()

	if len(password) < MinPasswordLength {
		err = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO "user" (id, created_at, updated_at, email, password, name, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, id, now, now, strings.ToLower(email), string(hash), name)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// UpdatePassword replaces the password of the user with the given email.
func (d *Database) UpdatePassword(ctx context.Context, email, newPassword string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_password", start, err) }()

	if len(newPassword) < MinPasswordLength {
		err = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := d.db.ExecContext(ctx,
		`UPDATE "user" SET password = ?, updated_at = ? WHERE email = ?`,
		string(hash), time.Now().UTC(), strings.ToLower(email),
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		err = ErrUserNotFound
		return err
	}
	return nil
}
