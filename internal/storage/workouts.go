package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/google/uuid"
)

// InsertWorkout saves a generated plan snapshot and returns its ID.
func (db *DB) InsertWorkout(ctx context.Context, userID int, exercises []generator.Exercise) (uuid.UUID, error) {
	data, err := json.Marshal(exercises)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding workout: %w", err)
	}
	id := uuid.New()
	if _, err := db.Pool.Exec(ctx,
		`INSERT INTO workouts (id, user_id, data) VALUES ($1, $2, $3)`,
		id, userID, data); err != nil {
		return uuid.Nil, fmt.Errorf("inserting workout: %w", err)
	}
	return id, nil
}

// ListWorkouts returns saved plan snapshots, newest first.
func (db *DB) ListWorkouts(ctx context.Context, userID int) ([]models.WorkoutRecord, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, data, created_at FROM workouts WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.WorkoutRecord
	for rows.Next() {
		var w models.WorkoutRecord
		var data []byte
		if err := rows.Scan(&w.ID, &w.UserID, &data, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		if err := json.Unmarshal(data, &w.Exercises); err != nil {
			return nil, fmt.Errorf("decoding workout %s: %w", w.ID, err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// InsertCompletedWorkout appends a completed plan to the user's history.
func (db *DB) InsertCompletedWorkout(ctx context.Context, userID int, exercises []generator.Exercise, completedAt time.Time) (int64, error) {
	data, err := json.Marshal(exercises)
	if err != nil {
		return 0, fmt.Errorf("encoding completed workout: %w", err)
	}
	var id int64
	err = db.Pool.QueryRow(ctx,
		`INSERT INTO completed_workouts (user_id, data, completed_at) VALUES ($1, $2, $3) RETURNING id`,
		userID, data, completedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting completed workout: %w", err)
	}
	return id, nil
}

// ListCompletedWorkouts returns the user's history, most recent first.
// A limit of zero or less returns everything.
func (db *DB) ListCompletedWorkouts(ctx context.Context, userID, limit int) ([]models.CompletedWorkout, error) {
	query := `SELECT id, user_id, data, completed_at
		 FROM completed_workouts
		 WHERE user_id = $1
		 ORDER BY completed_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying completed workouts: %w", err)
	}
	defer rows.Close()

	return scanCompleted(rows)
}

func scanCompleted(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.CompletedWorkout, error) {
	result := []models.CompletedWorkout{}
	for rows.Next() {
		var w models.CompletedWorkout
		var data []byte
		if err := rows.Scan(&w.ID, &w.UserID, &data, &w.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning completed workout: %w", err)
		}
		if err := json.Unmarshal(data, &w.Exercises); err != nil {
			return nil, fmt.Errorf("decoding completed workout %d: %w", w.ID, err)
		}
		result = append(result, w)
	}
	return result, rows.Err()
}
