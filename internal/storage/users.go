package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/quickfit/internal/models"
)

// CreateUser inserts a password account and returns its ID.
// Returns ErrDuplicate if the email is already registered.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id`,
		email, passwordHash).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", pgErr(err))
	}
	return id, nil
}

// GetUserByEmail looks up a password account.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.scanUser(ctx, `SELECT id, COALESCE(email, ''), COALESCE(login, ''), display_name, password_hash, created_at
		FROM users WHERE email = $1`, email)
}

// GetUser looks up any account by ID.
func (db *DB) GetUser(ctx context.Context, id int) (*models.User, error) {
	return db.scanUser(ctx, `SELECT id, COALESCE(email, ''), COALESCE(login, ''), display_name, password_hash, created_at
		FROM users WHERE id = $1`, id)
}

func (db *DB) scanUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.Login, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", pgErr(err))
	}
	return &u, nil
}

// GetOrCreateUser finds or creates a user by identity-provider login name.
// Returns the user ID. Updates last_seen and display_name on each call.
func (db *DB) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	var id int
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (login, display_name)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = NOW(), display_name = COALESCE(NULLIF($2, ''), users.display_name)
		RETURNING id
	`, login, displayName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %s: %w", login, err)
	}
	return id, nil
}

// CreateSession stores a hashed session token for a user.
func (db *DB) CreateSession(ctx context.Context, tokenHash string, userID int, expiresAt time.Time) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at) VALUES ($1, $2, $3)`,
		tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSessionUser resolves an unexpired session to its user.
func (db *DB) GetSessionUser(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx,
		`SELECT u.id, COALESCE(u.email, ''), COALESCE(u.login, ''), u.display_name, u.password_hash, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = $1 AND s.expires_at > $2`,
		tokenHash, now).
		Scan(&u.ID, &u.Email, &u.Login, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", pgErr(err))
	}
	return &u, nil
}

// DeleteSession removes a session. Deleting an unknown session is not an error.
func (db *DB) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
