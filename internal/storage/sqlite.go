package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	email         TEXT UNIQUE,
	login         TEXT UNIQUE,
	display_name  TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL,
	last_seen     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sessions (
	token_hash TEXT PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS profiles (
	user_id    INTEGER PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	goal       TEXT NOT NULL DEFAULT '',
	equipment  TEXT NOT NULL DEFAULT '[]',
	mood       TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS workouts (
	id         TEXT PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS completed_workouts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	data         TEXT NOT NULL,
	completed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS completed_workouts_user_idx ON completed_workouts (user_id, completed_at DESC, id DESC);
`

// SQLite is a single-file store with the same methods as DB, for local use
// without a PostgreSQL server. Timestamps are stored as Unix nanoseconds.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database file at path and ensures the schema exists.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func liteErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return ErrDuplicate
	}
	return err
}

func nanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// CreateUser inserts a password account and returns its ID.
func (s *SQLite) CreateUser(ctx context.Context, email, passwordHash string) (int, error) {
	now := nanos(s.now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at, last_seen) VALUES (?, ?, ?, ?)`,
		email, passwordHash, now, now)
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", liteErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading user id: %w", err)
	}
	return int(id), nil
}

// GetUserByEmail looks up a password account.
func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanUser(ctx, `SELECT id, COALESCE(email, ''), COALESCE(login, ''), display_name, password_hash, created_at
		FROM users WHERE email = ?`, email)
}

// GetUser looks up any account by ID.
func (s *SQLite) GetUser(ctx context.Context, id int) (*models.User, error) {
	return s.scanUser(ctx, `SELECT id, COALESCE(email, ''), COALESCE(login, ''), display_name, password_hash, created_at
		FROM users WHERE id = ?`, id)
}

func (s *SQLite) scanUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	var u models.User
	var created int64
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.Login, &u.DisplayName, &u.PasswordHash, &created)
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", liteErr(err))
	}
	u.CreatedAt = fromNanos(created)
	return &u, nil
}

// GetOrCreateUser finds or creates a user by identity-provider login name.
func (s *SQLite) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	now := nanos(s.now())
	var id int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (login, display_name, created_at, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = excluded.last_seen,
			    display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name)
		RETURNING id
	`, login, displayName, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user %s: %w", login, err)
	}
	return id, nil
}

// CreateSession stores a hashed session token for a user.
func (s *SQLite) CreateSession(ctx context.Context, tokenHash string, userID int, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_id, expires_at) VALUES (?, ?, ?)`,
		tokenHash, userID, nanos(expiresAt))
	if err != nil {
		return fmt.Errorf("creating session: %w", liteErr(err))
	}
	return nil
}

// GetSessionUser resolves an unexpired session to its user.
func (s *SQLite) GetSessionUser(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	return s.scanUser(ctx,
		`SELECT u.id, COALESCE(u.email, ''), COALESCE(u.login, ''), u.display_name, u.password_hash, u.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token_hash = ? AND s.expires_at > ?`,
		tokenHash, nanos(now))
}

// DeleteSession removes a session. Deleting an unknown session is not an error.
func (s *SQLite) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// GetProfile returns the user's profile, or ErrNotFound before onboarding.
func (s *SQLite) GetProfile(ctx context.Context, userID int) (*models.Profile, error) {
	var p models.Profile
	var goal, equipment, mood string
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, goal, equipment, mood, updated_at FROM profiles WHERE user_id = ?`,
		userID).Scan(&p.UserID, &goal, &equipment, &mood, &updated)
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", liteErr(err))
	}
	if err := json.Unmarshal([]byte(equipment), &p.Equipment); err != nil {
		return nil, fmt.Errorf("decoding profile equipment: %w", err)
	}
	p.Goal = models.Goal(goal)
	p.Mood = models.Mood(mood)
	p.UpdatedAt = fromNanos(updated)
	return &p, nil
}

// UpsertProfile creates or replaces the user's profile.
func (s *SQLite) UpsertProfile(ctx context.Context, p models.Profile) error {
	equipment := p.Equipment
	if equipment == nil {
		equipment = []string{}
	}
	data, err := json.Marshal(equipment)
	if err != nil {
		return fmt.Errorf("encoding profile equipment: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, goal, equipment, mood, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
			SET goal = excluded.goal, equipment = excluded.equipment,
			    mood = excluded.mood, updated_at = excluded.updated_at
	`, p.UserID, string(p.Goal), string(data), string(p.Mood), nanos(s.now()))
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}

// InsertWorkout saves a generated plan snapshot and returns its ID.
func (s *SQLite) InsertWorkout(ctx context.Context, userID int, exercises []generator.Exercise) (uuid.UUID, error) {
	data, err := json.Marshal(exercises)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding workout: %w", err)
	}
	id := uuid.New()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO workouts (id, user_id, data, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), userID, string(data), nanos(s.now())); err != nil {
		return uuid.Nil, fmt.Errorf("inserting workout: %w", err)
	}
	return id, nil
}

// ListWorkouts returns saved plan snapshots, newest first.
func (s *SQLite) ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, data, created_at FROM workouts WHERE user_id = ? ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutRecord
	for rows.Next() {
		var w models.WorkoutRecord
		var id, data string
		var created int64
		if err := rows.Scan(&id, &w.UserID, &data, &created); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		if w.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing workout id: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &w.Exercises); err != nil {
			return nil, fmt.Errorf("decoding workout %s: %w", id, err)
		}
		w.CreatedAt = fromNanos(created)
		result = append(result, w)
	}
	return result, rows.Err()
}

// InsertCompletedWorkout appends a completed plan to the user's history.
func (s *SQLite) InsertCompletedWorkout(ctx context.Context, userID int, exercises []generator.Exercise, completedAt time.Time) (int64, error) {
	data, err := json.Marshal(exercises)
	if err != nil {
		return 0, fmt.Errorf("encoding completed workout: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO completed_workouts (user_id, data, completed_at) VALUES (?, ?, ?)`,
		userID, string(data), nanos(completedAt))
	if err != nil {
		return 0, fmt.Errorf("inserting completed workout: %w", liteErr(err))
	}
	return res.LastInsertId()
}

// ListCompletedWorkouts returns the user's history, most recent first.
// A limit of zero or less returns everything.
func (s *SQLite) ListCompletedWorkouts(ctx context.Context, userID, limit int) ([]models.CompletedWorkout, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, data, completed_at
		 FROM completed_workouts
		 WHERE user_id = ?
		 ORDER BY completed_at DESC, id DESC
		 LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying completed workouts: %w", err)
	}
	defer rows.Close()

	result := []models.CompletedWorkout{}
	for rows.Next() {
		var w models.CompletedWorkout
		var data string
		var completed int64
		if err := rows.Scan(&w.ID, &w.UserID, &data, &completed); err != nil {
			return nil, fmt.Errorf("scanning completed workout: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &w.Exercises); err != nil {
			return nil, fmt.Errorf("decoding completed workout %d: %w", w.ID, err)
		}
		w.CompletedAt = fromNanos(completed)
		result = append(result, w)
	}
	return result, rows.Err()
}
