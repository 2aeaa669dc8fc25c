package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

// CreateUser inserts a new user. The email is stored lowercased.
func (db *DB) CreateUser(ctx context.Context, c *model.Credential) error {
	const q = `
		INSERT INTO users (id, name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	c.Email = model.NormalizeEmail(c.Email)
	_, err := db.Pool.Exec(ctx, q, c.ID, c.Name, c.Email, c.PasswordHash, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.Credential, error) {
	const q = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, q, model.NormalizeEmail(email)))
}

// GetUserByID retrieves a user by identity id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.Credential, error) {
	const q = `
		SELECT id, name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return scanUser(db.Pool.QueryRow(ctx, q, id))
}

// UpdatePassword overwrites the user's password hash.
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const q = `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := db.Pool.Exec(ctx, q, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*model.Credential, error) {
	var c model.Credential
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &c, nil
}
