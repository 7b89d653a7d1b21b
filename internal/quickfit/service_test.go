package quickfit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/claude/quickfit/internal/catalog"
	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/claude/quickfit/internal/storage"
	"github.com/google/uuid"
)

// failingStore lets tests break individual writes on top of a real store.
type failingStore struct {
	*storage.SQLite
	failInsert    bool
	failCompleted bool
	failHistory   bool
	failProfile   bool
}

var errBoom = errors.New("boom")

func (f *failingStore) GetProfile(ctx context.Context, userID int) (*models.Profile, error) {
	if f.failProfile {
		return nil, errBoom
	}
	return f.SQLite.GetProfile(ctx, userID)
}

func (f *failingStore) InsertWorkout(ctx context.Context, userID int, ex []generator.Exercise) (uuid.UUID, error) {
	if f.failInsert {
		return uuid.Nil, errBoom
	}
	return f.SQLite.InsertWorkout(ctx, userID, ex)
}

func (f *failingStore) InsertCompletedWorkout(ctx context.Context, userID int, ex []generator.Exercise, at time.Time) (int64, error) {
	if f.failCompleted {
		return 0, errBoom
	}
	return f.SQLite.InsertCompletedWorkout(ctx, userID, ex, at)
}

func (f *failingStore) ListCompletedWorkouts(ctx context.Context, userID, limit int) ([]models.CompletedWorkout, error) {
	if f.failHistory {
		return nil, errBoom
	}
	return f.SQLite.ListCompletedWorkouts(ctx, userID, limit)
}

func newTestService(t *testing.T) (*Service, *failingStore, int) {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "quickfit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	uid, err := db.CreateUser(context.Background(), "test@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}

	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(1, 2))
	dash := generator.NewShuffle(cat, generator.Options{Cap: generator.DashboardCap, Rand: rng})
	sess := generator.NewShuffle(cat, generator.Options{Cap: generator.SessionCap, Rand: rng})

	store := &failingStore{SQLite: db}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(store, cat, dash, sess, log)
	svc.rng = rand.New(rand.NewPCG(3, 4))
	return svc, store, uid
}

// TestRoute verifies users land on login, then onboarding, then the dashboard.
func TestRoute(t *testing.T) {
	ctx := context.Background()
	svc, _, uid := newTestService(t)

	if got, _ := svc.Route(ctx, nil); got != RouteLogin {
		t.Errorf("no user: route = %q, want %q", got, RouteLogin)
	}

	user := &models.User{ID: uid}
	if got, err := svc.Route(ctx, user); err != nil || got != RouteOnboarding {
		t.Errorf("no profile: route = %q, %v, want %q", got, err, RouteOnboarding)
	}

	if _, err := svc.Onboard(ctx, uid, "Burn Fat", []string{"Jump Rope"}, ""); err != nil {
		t.Fatal(err)
	}
	if got, err := svc.Route(ctx, user); err != nil || got != RouteDashboard {
		t.Errorf("onboarded: route = %q, %v, want %q", got, err, RouteDashboard)
	}
}

// TestRouteProfileReadFailure verifies a failed profile read is reported
// instead of sending an onboarded user back through onboarding.
func TestRouteProfileReadFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, uid := newTestService(t)

	if _, err := svc.Onboard(ctx, uid, "Burn Fat", []string{"Jump Rope"}, ""); err != nil {
		t.Fatal(err)
	}
	store.failProfile = true

	got, err := svc.Route(ctx, &models.User{ID: uid})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want errBoom", err)
	}
	if got != "" {
		t.Errorf("route = %q, want empty", got)
	}
}

// TestOnboardNormalizesEquipment verifies equipment is matched
// case-insensitively, stored in catalog spelling and de-duplicated.
func TestOnboardNormalizesEquipment(t *testing.T) {
	ctx := context.Background()
	svc, _, uid := newTestService(t)

	p, err := svc.Onboard(ctx, uid, "Build Muscle", []string{"dumbbells", " BARBELL ", "Dumbbells"}, "High")
	if err != nil {
		t.Fatalf("Onboard: %v", err)
	}
	if want := []string{"Dumbbells", "Barbell"}; !slices.Equal(p.Equipment, want) {
		t.Errorf("equipment = %v, want %v", p.Equipment, want)
	}

	stored, err := svc.Profile(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Goal != models.GoalBuildMuscle || stored.Mood != models.MoodHigh || len(stored.Equipment) != 2 {
		t.Errorf("stored profile = %+v", stored)
	}
}

// TestOnboardValidation verifies each bad field is rejected and nothing is
// stored.
func TestOnboardValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, uid := newTestService(t)

	cases := []struct {
		name      string
		goal      string
		equipment []string
		mood      string
		field     string
	}{
		{"missing goal", "", []string{"Bench"}, "", "goal"},
		{"unknown goal", "Get Huge", []string{"Bench"}, "", "goal"},
		{"no equipment", "Burn Fat", nil, "", "equipment"},
		{"unknown equipment", "Burn Fat", []string{"Hoverboard"}, "", "equipment"},
		{"bad mood", "Burn Fat", []string{"Bench"}, "Ecstatic", "mood"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Onboard(ctx, uid, tc.goal, tc.equipment, tc.mood)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}

	if _, err := svc.Profile(ctx, uid); !errors.Is(err, ErrIncompleteProfile) {
		t.Errorf("profile after rejected onboarding err = %v, want ErrIncompleteProfile", err)
	}
}

// TestPlanRequiresProfile verifies plans are refused until the user has
// onboarded.
func TestPlanRequiresProfile(t *testing.T) {
	svc, _, uid := newTestService(t)
	if _, err := svc.Plan(context.Background(), uid, generator.Intermediate, VariantDashboard); !errors.Is(err, ErrIncompleteProfile) {
		t.Errorf("err = %v, want ErrIncompleteProfile", err)
	}
}

// TestPlanVariants verifies each variant respects its cap and only
// prescribes equipment the user has.
func TestPlanVariants(t *testing.T) {
	ctx := context.Background()
	svc, _, uid := newTestService(t)

	if _, err := svc.Onboard(ctx, uid, "Burn Fat", []string{"Jump Rope", "Kettlebell"}, ""); err != nil {
		t.Fatal(err)
	}
	allowed := map[string]bool{
		"Burpees": true, "Jump Rope": true, "Mountain Climbers": true, "Step Ups": true,
		"High Knees": true, "Kettlebell Swings": true, "Jump Squats": true, "Jumping Jacks": true,
	}

	for _, tc := range []struct {
		variant Variant
		cap     int
	}{
		{VariantDashboard, generator.DashboardCap},
		{VariantSession, generator.SessionCap},
	} {
		for range 20 {
			w, err := svc.Plan(ctx, uid, generator.Advanced, tc.variant)
			if err != nil {
				t.Fatal(err)
			}
			if len(w.Exercises) != tc.cap {
				t.Fatalf("%s plan length = %d, want %d", tc.variant, len(w.Exercises), tc.cap)
			}
			for _, e := range w.Exercises {
				if !allowed[e.Name] {
					t.Errorf("%s plan includes %q", tc.variant, e.Name)
				}
			}
			if w.Variant != tc.variant || w.Goal != models.GoalBurnFat {
				t.Errorf("workout = %+v", w)
			}
		}
	}
}

// TestRegenerateSavesSnapshot verifies a regenerated plan is stored.
func TestRegenerateSavesSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, store, uid := newTestService(t)

	if _, err := svc.Onboard(ctx, uid, "Get Toned", []string{"Bench"}, ""); err != nil {
		t.Fatal(err)
	}
	w, err := svc.Regenerate(ctx, uid, generator.Beginner)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if w.SavedID == nil || w.Notice != "" {
		t.Errorf("workout = %+v, want saved without notice", w)
	}

	saved, err := store.ListWorkouts(ctx, uid)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 || saved[0].ID != *w.SavedID {
		t.Errorf("saved = %+v", saved)
	}
}

// TestRegenerateWriteFailure verifies a failed save keeps the plan and
// reports a notice instead of an error.
func TestRegenerateWriteFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, uid := newTestService(t)

	if _, err := svc.Onboard(ctx, uid, "Get Toned", []string{"Bench"}, ""); err != nil {
		t.Fatal(err)
	}
	store.failInsert = true

	w, err := svc.Regenerate(ctx, uid, generator.Intermediate)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(w.Exercises) == 0 {
		t.Error("plan should survive a failed save")
	}
	if w.Notice == "" || w.SavedID != nil {
		t.Errorf("workout = %+v, want notice and no id", w)
	}
}

// TestCompleteThenHistory verifies a completed workout is returned first by
// the history that follows it.
func TestCompleteThenHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, uid := newTestService(t)

	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	first := []generator.Exercise{{Name: "Plank", Sets: 3, Reps: "45 sec"}}
	second := []generator.Exercise{{Name: "Burpees", Sets: 4, Reps: "20"}, {Name: "Jump Squats", Sets: 3, Reps: "20"}}

	if _, err := svc.Complete(ctx, uid, first, base); err != nil {
		t.Fatal(err)
	}
	c, err := svc.Complete(ctx, uid, second, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(c.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(c.History))
	}
	if !slices.Equal(c.History[0].Exercises, second) {
		t.Errorf("history[0] = %+v, want the just-completed workout", c.History[0])
	}
	if c.History[0].ID != c.Record.ID {
		t.Errorf("history[0].ID = %d, record ID = %d", c.History[0].ID, c.Record.ID)
	}
	if c.Tip == "" || !slices.Contains(svc.Catalog().Tips(), c.Tip) {
		t.Errorf("tip = %q, want one from the catalog", c.Tip)
	}

	limited, err := svc.History(ctx, uid, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || !slices.Equal(limited[0].Exercises, second) {
		t.Errorf("History(1) = %+v", limited)
	}
}

// TestCompleteRejectsEmpty verifies an empty or malformed plan is not
// recorded.
func TestCompleteRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, uid := newTestService(t)

	var verr *ValidationError
	if _, err := svc.Complete(ctx, uid, nil, time.Now()); !errors.As(err, &verr) {
		t.Errorf("empty plan err = %v, want ValidationError", err)
	}
	bad := []generator.Exercise{{Name: " ", Sets: 3, Reps: "10"}}
	if _, err := svc.Complete(ctx, uid, bad, time.Now()); !errors.As(err, &verr) {
		t.Errorf("unnamed exercise err = %v, want ValidationError", err)
	}

	history, err := svc.History(ctx, uid, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Errorf("history = %+v, want empty", history)
	}
}

// TestCompleteWriteFailure verifies a failed write surfaces ErrWriteFailed.
func TestCompleteWriteFailure(t *testing.T) {
	svc, store, uid := newTestService(t)
	store.failCompleted = true

	ex := []generator.Exercise{{Name: "Plank", Sets: 3, Reps: "45 sec"}}
	if _, err := svc.Complete(context.Background(), uid, ex, time.Now()); !errors.Is(err, ErrWriteFailed) {
		t.Errorf("err = %v, want ErrWriteFailed", err)
	}
}

// TestCompleteHistoryFailure verifies the completion stands when only the
// history refresh fails.
func TestCompleteHistoryFailure(t *testing.T) {
	svc, store, uid := newTestService(t)
	store.failHistory = true

	ex := []generator.Exercise{{Name: "Plank", Sets: 3, Reps: "45 sec"}}
	c, err := svc.Complete(context.Background(), uid, ex, time.Now())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if c.Notice == "" || len(c.History) != 1 || c.History[0].ID != c.Record.ID {
		t.Errorf("completion = %+v", c)
	}
}

// TestHistoryNegativeLimit verifies a negative limit is a validation error.
func TestHistoryNegativeLimit(t *testing.T) {
	svc, _, uid := newTestService(t)
	var verr *ValidationError
	if _, err := svc.History(context.Background(), uid, -1); !errors.As(err, &verr) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

// TestParseVariant verifies variant names are case-insensitive and default to
// the dashboard.
func TestParseVariant(t *testing.T) {
	for in, want := range map[string]Variant{"": VariantDashboard, "Dashboard": VariantDashboard, "SESSION": VariantSession} {
		got, err := ParseVariant(in)
		if err != nil || got != want {
			t.Errorf("ParseVariant(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseVariant("weekly"); err == nil || !strings.Contains(err.Error(), "weekly") {
		t.Errorf("ParseVariant(weekly) err = %v", err)
	}
}

// TestOptions verifies the option lists come from the catalog.
func TestOptions(t *testing.T) {
	svc, _, _ := newTestService(t)
	o := svc.Options()
	if len(o.Goals) != 3 || len(o.Equipment) != 17 || len(o.Moods) != 3 || len(o.Levels) != 3 || len(o.Variants) != 2 {
		t.Errorf("options = %+v", o)
	}
}
