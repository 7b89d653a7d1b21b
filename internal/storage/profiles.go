package storage

import (
	"context"
	"fmt"

	"github.com/claude/quickfit/internal/models"
)

// GetProfile returns the user's profile, or ErrNotFound before onboarding.
func (db *DB) GetProfile(ctx context.Context, userID int) (*models.Profile, error) {
	var p models.Profile
	var goal, mood string
	err := db.Pool.QueryRow(ctx,
		`SELECT user_id, goal, equipment, mood, updated_at FROM profiles WHERE user_id = $1`,
		userID).Scan(&p.UserID, &goal, &p.Equipment, &mood, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", pgErr(err))
	}
	p.Goal = models.Goal(goal)
	p.Mood = models.Mood(mood)
	return &p, nil
}

// UpsertProfile creates or replaces the user's profile.
func (db *DB) UpsertProfile(ctx context.Context, p models.Profile) error {
	equipment := p.Equipment
	if equipment == nil {
		equipment = []string{}
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO profiles (user_id, goal, equipment, mood, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE
			SET goal = EXCLUDED.goal, equipment = EXCLUDED.equipment,
			    mood = EXCLUDED.mood, updated_at = NOW()
	`, p.UserID, string(p.Goal), equipment, string(p.Mood))
	if err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}
	return nil
}
