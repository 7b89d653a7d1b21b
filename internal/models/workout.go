package models

import (
	"time"

	"github.com/claude/quickfit/internal/generator"
	"github.com/google/uuid"
)

// WorkoutRecord is a generated plan saved when the user regenerates.
type WorkoutRecord struct {
	ID        uuid.UUID            `json:"id"`
	UserID    int                  `json:"user_id"`
	Exercises []generator.Exercise `json:"exercises"`
	CreatedAt time.Time            `json:"created_at"`
}

// CompletedWorkout is an append-only snapshot of a finished plan.
type CompletedWorkout struct {
	ID          int64                `json:"id"`
	UserID      int                  `json:"user_id"`
	Exercises   []generator.Exercise `json:"exercises"`
	CompletedAt time.Time            `json:"completed_at"`
}
