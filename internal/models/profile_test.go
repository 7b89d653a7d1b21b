package models

import "testing"

// TestMoodValid verifies mood is optional but restricted when set.
func TestMoodValid(t *testing.T) {
	if !MoodNone.Valid() {
		t.Error("empty mood should be valid")
	}
	if !MoodHigh.Valid() {
		t.Error("High should be valid")
	}
	if Mood("Ecstatic").Valid() {
		t.Error("Ecstatic should be invalid")
	}
}

// TestProfileComplete verifies a profile needs both a goal and equipment
// before a workout can be generated.
func TestProfileComplete(t *testing.T) {
	cases := []struct {
		name string
		p    *Profile
		want bool
	}{
		{"nil", nil, false},
		{"empty", &Profile{}, false},
		{"goal only", &Profile{Goal: GoalBurnFat}, false},
		{"equipment only", &Profile{Equipment: []string{"Bench"}}, false},
		{"complete", &Profile{Goal: GoalBurnFat, Equipment: []string{"Bench"}}, true},
	}
	for _, tc := range cases {
		if got := tc.p.Complete(); got != tc.want {
			t.Errorf("%s: Complete() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
