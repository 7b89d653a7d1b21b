package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/claude/quickfit/internal/quickfit"
	"github.com/mark3labs/mcp-go/mcp"
)

// fakeSource records calls and returns canned data.
type fakeSource struct {
	planErr    error
	gotUser    int
	gotLevel   generator.Level
	gotVariant quickfit.Variant
	gotLimit   int
	completed  []generator.Exercise
	history    []models.CompletedWorkout
}

func (f *fakeSource) Plan(_ context.Context, userID int, level generator.Level, variant quickfit.Variant) (*quickfit.Workout, error) {
	f.gotUser, f.gotLevel, f.gotVariant = userID, level, variant
	if f.planErr != nil {
		return nil, f.planErr
	}
	return &quickfit.Workout{
		Goal:      models.GoalBurnFat,
		Level:     level,
		Variant:   variant,
		Exercises: []generator.Exercise{{Name: "Burpees", Sets: 4, Reps: "20"}},
	}, nil
}

func (f *fakeSource) Profile(_ context.Context, userID int) (*models.Profile, error) {
	f.gotUser = userID
	return &models.Profile{UserID: userID, Goal: models.GoalGetToned, Equipment: []string{"Bench"}}, nil
}

func (f *fakeSource) History(_ context.Context, userID, limit int) ([]models.CompletedWorkout, error) {
	f.gotUser, f.gotLimit = userID, limit
	return f.history, nil
}

func (f *fakeSource) Complete(_ context.Context, userID int, exercises []generator.Exercise, now time.Time) (*quickfit.Completion, error) {
	if len(exercises) == 0 {
		return nil, &quickfit.ValidationError{Field: "exercises", Msg: "no exercises to complete"}
	}
	f.gotUser, f.completed = userID, exercises
	rec := models.CompletedWorkout{ID: 1, UserID: userID, Exercises: exercises, CompletedAt: now}
	return &quickfit.Completion{Record: rec, History: []models.CompletedWorkout{rec}, Tip: "Rest days help you grow."}, nil
}

func (f *fakeSource) Options(context.Context) (quickfit.Options, error) {
	return quickfit.Options{Goals: []string{"Burn Fat"}, Equipment: []string{"Bench"}}, nil
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{
		ds:  ds,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time { return time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC) },
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// TestUserIDFromContext verifies the user ID is only present after
// WithUserID sets it.
func TestUserIDFromContext(t *testing.T) {
	if _, ok := UserIDFromContext(context.Background()); ok {
		t.Error("UserIDFromContext(empty) reported a user")
	}
	id, ok := UserIDFromContext(WithUserID(context.Background(), 42))
	if !ok || id != 42 {
		t.Errorf("UserIDFromContext = %d, %v, want 42, true", id, ok)
	}
}

// TestToolsRequireUser verifies every tool refuses to run without a user.
func TestToolsRequireUser(t *testing.T) {
	h := newHandlers(&fakeSource{})
	ctx := context.Background()
	for name, fn := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"generate_workout":        h.generateWorkout,
		"get_profile":             h.getProfile,
		"list_completed_workouts": h.listCompletedWorkouts,
		"complete_workout":        h.completeWorkout,
	} {
		res, err := fn(ctx, callRequest(nil))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !res.IsError {
			t.Errorf("%s without user should be a tool error", name)
		}
	}
}

// TestGenerateWorkoutTool verifies level and variant arguments reach the
// data source and the plan comes back as JSON.
func TestGenerateWorkoutTool(t *testing.T) {
	ds := &fakeSource{}
	h := newHandlers(ds)
	ctx := WithUserID(context.Background(), 7)

	res, err := h.generateWorkout(ctx, callRequest(map[string]any{"level": "Advanced", "variant": "session"}))
	if err != nil || res.IsError {
		t.Fatalf("generate_workout: %v %+v", err, res)
	}
	if ds.gotUser != 7 || ds.gotLevel != generator.Advanced || ds.gotVariant != quickfit.VariantSession {
		t.Errorf("source got user=%d level=%v variant=%q", ds.gotUser, ds.gotLevel, ds.gotVariant)
	}

	var w quickfit.Workout
	if err := json.Unmarshal([]byte(resultText(t, res)), &w); err != nil {
		t.Fatal(err)
	}
	if len(w.Exercises) != 1 || w.Exercises[0].Name != "Burpees" {
		t.Errorf("workout = %+v", w)
	}

	res, _ = h.generateWorkout(ctx, callRequest(map[string]any{"level": "Expert"}))
	if !res.IsError {
		t.Error("unknown level should be a tool error")
	}
}

// TestGenerateWorkoutIncompleteProfile verifies the model is told to finish
// onboarding rather than shown a raw error.
func TestGenerateWorkoutIncompleteProfile(t *testing.T) {
	h := newHandlers(&fakeSource{planErr: quickfit.ErrIncompleteProfile})
	res, err := h.generateWorkout(WithUserID(context.Background(), 1), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "onboarding") {
		t.Errorf("result = %+v", res)
	}

	h = newHandlers(&fakeSource{planErr: errors.New("db down")})
	res, _ = h.generateWorkout(WithUserID(context.Background(), 1), callRequest(nil))
	if !res.IsError || !strings.Contains(resultText(t, res), "db down") {
		t.Errorf("result = %+v", res)
	}
}

// TestListCompletedWorkoutsLimit verifies the default and explicit limits.
func TestListCompletedWorkoutsLimit(t *testing.T) {
	ds := &fakeSource{history: []models.CompletedWorkout{}}
	h := newHandlers(ds)
	ctx := WithUserID(context.Background(), 3)

	if _, err := h.listCompletedWorkouts(ctx, callRequest(nil)); err != nil {
		t.Fatal(err)
	}
	if ds.gotLimit != defaultHistoryLimit {
		t.Errorf("default limit = %d, want %d", ds.gotLimit, defaultHistoryLimit)
	}

	res, err := h.listCompletedWorkouts(ctx, callRequest(map[string]any{"limit": float64(5)}))
	if err != nil {
		t.Fatal(err)
	}
	if ds.gotLimit != 5 {
		t.Errorf("limit = %d, want 5", ds.gotLimit)
	}
	if got := resultText(t, res); got != "[]" {
		t.Errorf("history = %s, want []", got)
	}
}

// TestCompleteWorkoutTool verifies exercises are decoded from the tool
// arguments and stamped with the handler clock.
func TestCompleteWorkoutTool(t *testing.T) {
	ds := &fakeSource{}
	h := newHandlers(ds)
	ctx := WithUserID(context.Background(), 9)

	args := map[string]any{"exercises": []any{
		map[string]any{"name": "Plank", "sets": float64(3), "reps": "45 sec"},
		map[string]any{"name": "Leg Raises", "sets": float64(3), "reps": "15"},
	}}
	res, err := h.completeWorkout(ctx, callRequest(args))
	if err != nil || res.IsError {
		t.Fatalf("complete_workout: %v %+v", err, res)
	}
	if len(ds.completed) != 2 || ds.completed[1] != (generator.Exercise{Name: "Leg Raises", Sets: 3, Reps: "15"}) {
		t.Errorf("completed = %+v", ds.completed)
	}

	var c quickfit.Completion
	if err := json.Unmarshal([]byte(resultText(t, res)), &c); err != nil {
		t.Fatal(err)
	}
	if !c.Record.CompletedAt.Equal(h.now()) || c.Tip == "" {
		t.Errorf("completion = %+v", c)
	}

	res, _ = h.completeWorkout(ctx, callRequest(map[string]any{"exercises": []any{}}))
	if !res.IsError {
		t.Error("empty plan should be a tool error")
	}
}

// TestGetProfileTool verifies the profile is returned for the context user.
func TestGetProfileTool(t *testing.T) {
	ds := &fakeSource{}
	res, err := newHandlers(ds).getProfile(WithUserID(context.Background(), 4), callRequest(nil))
	if err != nil || res.IsError {
		t.Fatalf("get_profile: %v %+v", err, res)
	}
	if ds.gotUser != 4 || !strings.Contains(resultText(t, res), "Get Toned") {
		t.Errorf("user=%d result=%s", ds.gotUser, resultText(t, res))
	}
}

// TestCatalogResource verifies the catalog resource serves the option lists.
func TestCatalogResource(t *testing.T) {
	h := newHandlers(&fakeSource{})
	var req mcp.ReadResourceRequest
	req.Params.URI = "quickfit://catalog"

	contents, err := h.catalog(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content type %T", contents[0])
	}
	if text.URI != "quickfit://catalog" || !strings.Contains(text.Text, "Burn Fat") {
		t.Errorf("resource = %+v", text)
	}
}

// TestNewRegistersTools verifies the server builds with every tool.
func TestNewRegistersTools(t *testing.T) {
	s := New(&fakeSource{}, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, name := range []string{"generate_workout", "get_profile", "list_completed_workouts", "complete_workout"} {
		if s.GetTool(name) == nil {
			t.Errorf("tool %s not registered", name)
		}
	}
}

// TestGenerateWorkoutDescription verifies the tool does not promise equipment
// filtering unconditionally, since the permissive strategy skips it.
func TestGenerateWorkoutDescription(t *testing.T) {
	desc := toolGenerateWorkout.Description
	if strings.Contains(desc, "Every exercise") {
		t.Errorf("description promises filtering unconditionally: %q", desc)
	}
	if !strings.Contains(desc, "permissive") {
		t.Errorf("description should mention the permissive strategy: %q", desc)
	}
}
