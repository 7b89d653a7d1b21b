package models

import (
	"slices"
	"time"
)

// Goal is the user's fitness objective. The catalog decides which goals
// exist; these are the ones it ships with.
type Goal string

const (
	GoalBuildMuscle Goal = "Build Muscle"
	GoalBurnFat     Goal = "Burn Fat"
	GoalGetToned    Goal = "Get Toned"
)

// Mood is an optional self-reported energy level.
type Mood string

const (
	MoodNone   Mood = ""
	MoodLow    Mood = "Low"
	MoodNormal Mood = "Normal"
	MoodHigh   Mood = "High"
)

// Moods lists the selectable moods.
var Moods = []Mood{MoodLow, MoodNormal, MoodHigh}

// Valid reports whether m is empty or one of Moods.
func (m Mood) Valid() bool {
	return m == MoodNone || slices.Contains(Moods, m)
}

// Profile holds a user's onboarding choices.
type Profile struct {
	UserID    int       `json:"user_id"`
	Goal      Goal      `json:"goal"`
	Equipment []string  `json:"equipment"`
	Mood      Mood      `json:"mood,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Complete reports whether the profile has enough to generate a workout.
func (p *Profile) Complete() bool {
	return p != nil && p.Goal != "" && len(p.Equipment) > 0
}
