// Package quickfit ties the generator to the profile and history stores.
// It decides where a user belongs, validates onboarding input, and turns a
// stored profile into a workout plan.
package quickfit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/claude/quickfit/internal/catalog"
	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/claude/quickfit/internal/storage"
	"github.com/google/uuid"
)

// Destinations returned by Route.
const (
	RouteLogin      = "/login"
	RouteOnboarding = "/onboarding"
	RouteDashboard  = "/dashboard"
)

var (
	// ErrIncompleteProfile means the user has not picked a goal and equipment yet.
	ErrIncompleteProfile = errors.New("profile is incomplete")
	// ErrWriteFailed wraps a store write the user should be told about.
	ErrWriteFailed = errors.New("could not save workout")
)

// ValidationError describes input the user has to correct.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

// Store is the profile and history persistence the service needs.
type Store interface {
	GetProfile(ctx context.Context, userID int) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p models.Profile) error
	InsertWorkout(ctx context.Context, userID int, exercises []generator.Exercise) (uuid.UUID, error)
	InsertCompletedWorkout(ctx context.Context, userID int, exercises []generator.Exercise, completedAt time.Time) (int64, error)
	ListCompletedWorkouts(ctx context.Context, userID, limit int) ([]models.CompletedWorkout, error)
}

var (
	_ Store = (*storage.DB)(nil)
	_ Store = (*storage.SQLite)(nil)
)

// Variant selects which generator a plan comes from.
type Variant string

const (
	VariantDashboard Variant = "dashboard"
	VariantSession   Variant = "session"
)

// ParseVariant maps a query value to a Variant. Empty means dashboard.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "", VariantDashboard:
		return VariantDashboard, nil
	case VariantSession:
		return VariantSession, nil
	default:
		return "", &ValidationError{Field: "variant", Msg: fmt.Sprintf("unknown variant %q", s)}
	}
}

// Workout is a generated plan together with what it was generated from.
type Workout struct {
	Goal      models.Goal          `json:"goal"`
	Level     generator.Level      `json:"level"`
	Variant   Variant              `json:"variant"`
	Exercises []generator.Exercise `json:"exercises"`
	SavedID   *uuid.UUID           `json:"saved_id,omitempty"`
	Notice    string               `json:"notice,omitempty"`
}

// Completion is the result of finishing a workout.
type Completion struct {
	Record  models.CompletedWorkout   `json:"record"`
	History []models.CompletedWorkout `json:"history"`
	Tip     string                    `json:"tip,omitempty"`
	Notice  string                    `json:"notice,omitempty"`
}

// Options lists the choices offered during onboarding and planning.
type Options struct {
	Goals     []string          `json:"goals"`
	Equipment []string          `json:"equipment"`
	Moods     []models.Mood     `json:"moods"`
	Levels    []generator.Level `json:"levels"`
	Variants  []Variant         `json:"variants"`
}

// Service orchestrates profile reads, plan generation and history writes.
type Service struct {
	store     Store
	cat       *catalog.Catalog
	dashboard generator.Strategy
	session   generator.Strategy
	log       *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a Service. dashboard and session are the strategies
// used for the two plan variants.
func NewService(store Store, cat *catalog.Catalog, dashboard, session generator.Strategy, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		cat:       cat,
		dashboard: dashboard,
		session:   session,
		log:       log,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Catalog returns the catalog plans are drawn from.
func (s *Service) Catalog() *catalog.Catalog {
	return s.cat
}

// Options returns the selectable goals, equipment, moods, levels and variants.
func (s *Service) Options() Options {
	return Options{
		Goals:     s.cat.Goals(),
		Equipment: s.cat.Equipment(),
		Moods:     slices.Clone(models.Moods),
		Levels:    generator.Levels(),
		Variants:  []Variant{VariantDashboard, VariantSession},
	}
}

// Route reports where a user should land: the login page when there is no
// user, onboarding until a goal is chosen, otherwise the dashboard.
func (s *Service) Route(ctx context.Context, user *models.User) (string, error) {
	if user == nil {
		return RouteLogin, nil
	}
	p, err := s.store.GetProfile(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return RouteOnboarding, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading profile: %w", err)
	}
	if p.Goal == "" {
		return RouteOnboarding, nil
	}
	return RouteDashboard, nil
}

// Profile returns the user's profile, or ErrIncompleteProfile when they have
// not onboarded.
func (s *Service) Profile(ctx context.Context, userID int) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrIncompleteProfile
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return p, nil
}

// Onboard validates and stores the user's goal, equipment and mood.
// Equipment names are matched case-insensitively against the catalog
// options and stored in their canonical spelling without duplicates.
func (s *Service) Onboard(ctx context.Context, userID int, goal string, equipment []string, mood string) (*models.Profile, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, &ValidationError{Field: "goal", Msg: "please select a goal"}
	}
	if !s.cat.HasGoal(goal) {
		return nil, &ValidationError{Field: "goal", Msg: fmt.Sprintf("unknown goal %q", goal)}
	}

	canonical := make(map[string]string, len(s.cat.Equipment()))
	for _, name := range s.cat.Equipment() {
		canonical[strings.ToLower(name)] = name
	}
	var picked []string
	for _, raw := range equipment {
		name, ok := canonical[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, &ValidationError{Field: "equipment", Msg: fmt.Sprintf("unknown equipment %q", raw)}
		}
		if !slices.Contains(picked, name) {
			picked = append(picked, name)
		}
	}
	if len(picked) == 0 {
		return nil, &ValidationError{Field: "equipment", Msg: "please select at least one piece of equipment"}
	}

	m := models.Mood(strings.TrimSpace(mood))
	if !m.Valid() {
		return nil, &ValidationError{Field: "mood", Msg: fmt.Sprintf("unknown mood %q", mood)}
	}

	p := models.Profile{
		UserID:    userID,
		Goal:      models.Goal(goal),
		Equipment: picked,
		Mood:      m,
	}
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}
	s.log.Info("profile saved", "user_id", userID, "goal", goal, "equipment", len(picked))
	return &p, nil
}

// Plan reads the profile and generates a plan with the variant's strategy.
// It is not persisted.
func (s *Service) Plan(ctx context.Context, userID int, level generator.Level, variant Variant) (*Workout, error) {
	p, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !p.Complete() {
		return nil, ErrIncompleteProfile
	}

	strategy := s.dashboard
	if variant == VariantSession {
		strategy = s.session
	} else {
		variant = VariantDashboard
	}

	return &Workout{
		Goal:      p.Goal,
		Level:     level,
		Variant:   variant,
		Exercises: strategy.Generate(string(p.Goal), p.Equipment, level),
	}, nil
}

// Regenerate produces a fresh dashboard plan and saves a snapshot of it.
// A failed save is reported in Notice and the plan is still returned.
func (s *Service) Regenerate(ctx context.Context, userID int, level generator.Level) (*Workout, error) {
	w, err := s.Plan(ctx, userID, level, VariantDashboard)
	if err != nil {
		return nil, err
	}

	id, err := s.store.InsertWorkout(ctx, userID, w.Exercises)
	if err != nil {
		s.log.Warn("saving workout failed", "user_id", userID, "error", err)
		w.Notice = "Workout generated but could not be saved."
		return w, nil
	}
	w.SavedID = &id
	return w, nil
}

// Complete records a finished workout and returns the refreshed history
// along with a coach tip. Nothing is written for an empty plan.
func (s *Service) Complete(ctx context.Context, userID int, exercises []generator.Exercise, now time.Time) (*Completion, error) {
	if len(exercises) == 0 {
		return nil, &ValidationError{Field: "exercises", Msg: "no exercises to complete"}
	}
	for _, e := range exercises {
		if strings.TrimSpace(e.Name) == "" || e.Sets < 1 {
			return nil, &ValidationError{Field: "exercises", Msg: "each exercise needs a name and at least one set"}
		}
	}

	id, err := s.store.InsertCompletedWorkout(ctx, userID, exercises, now)
	if err != nil {
		s.log.Error("saving completed workout failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	c := &Completion{
		Record: models.CompletedWorkout{
			ID:          id,
			UserID:      userID,
			Exercises:   exercises,
			CompletedAt: now,
		},
		Tip: s.Tip(),
	}

	history, err := s.store.ListCompletedWorkouts(ctx, userID, 0)
	if err != nil {
		s.log.Warn("reading history failed", "user_id", userID, "error", err)
		c.History = []models.CompletedWorkout{c.Record}
		c.Notice = "Workout saved but history could not be refreshed."
		return c, nil
	}
	c.History = history
	return c, nil
}

// History lists completed workouts newest first. A limit of zero returns
// everything.
func (s *Service) History(ctx context.Context, userID, limit int) ([]models.CompletedWorkout, error) {
	if limit < 0 {
		return nil, &ValidationError{Field: "limit", Msg: "must not be negative"}
	}
	history, err := s.store.ListCompletedWorkouts(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return history, nil
}

// Tip returns a random coach tip, or "" if the catalog has none.
func (s *Service) Tip() string {
	tips := s.cat.Tips()
	if len(tips) == 0 {
		return ""
	}
	s.mu.Lock()
	i := s.rng.IntN(len(tips))
	s.mu.Unlock()
	return tips[i]
}
