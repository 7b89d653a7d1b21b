package mcp

import (
	"context"
	"errors"

	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/quickfit"
	"github.com/mark3labs/mcp-go/mcp"
)

const defaultHistoryLimit = 20

// --- Tool definitions ---

var toolGenerateWorkout = mcp.NewTool("generate_workout",
	mcp.WithDescription("Generate a workout from the user's saved goal and equipment. Exercises are filtered to the user's equipment unless the server is configured with the permissive strategy, which draws from the whole goal catalog. Plans are randomized; call again for a different selection."),
	mcp.WithString("level", mcp.Description("Experience level. Beginner drops a set, Advanced adds one. Defaults to Intermediate."), mcp.Enum("Beginner", "Intermediate", "Advanced")),
	mcp.WithString("variant", mcp.Description("dashboard returns up to 4 exercises, session up to 5. Defaults to dashboard."), mcp.Enum("dashboard", "session")),
)

var toolGetProfile = mcp.NewTool("get_profile",
	mcp.WithDescription("Get the user's goal, equipment and mood."),
)

var toolListCompletedWorkouts = mcp.NewTool("list_completed_workouts",
	mcp.WithDescription("List completed workouts, most recent first."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of workouts to return. Defaults to 20.")),
)

var toolCompleteWorkout = mcp.NewTool("complete_workout",
	mcp.WithDescription("Record a finished workout in the user's history. Returns the refreshed history and a coach tip."),
	mcp.WithArray("exercises", mcp.Required(), mcp.Description("Exercises performed, usually a plan from generate_workout"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
				"sets": map[string]any{"type": "integer", "minimum": 1},
				"reps": map[string]any{"type": "string"},
			},
			"required": []string{"name", "sets"},
		}),
	),
)

// --- Tool handlers ---

func (h *handlers) generateWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}

	level, err := generator.ParseLevel(req.GetString("level", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	variant, err := quickfit.ParseVariant(req.GetString("variant", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	workout, err := h.ds.Plan(ctx, uid, level, variant)
	if err != nil {
		return h.toolError("generate_workout", err), nil
	}
	return jsonResult(workout), nil
}

func (h *handlers) getProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}

	p, err := h.ds.Profile(ctx, uid)
	if err != nil {
		return h.toolError("get_profile", err), nil
	}
	return jsonResult(p), nil
}

func (h *handlers) listCompletedWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}

	limit := req.GetInt("limit", defaultHistoryLimit)
	history, err := h.ds.History(ctx, uid, limit)
	if err != nil {
		return h.toolError("list_completed_workouts", err), nil
	}
	return jsonResult(history), nil
}

func (h *handlers) completeWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}

	var args struct {
		Exercises []generator.Exercise `json:"exercises"`
	}
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid exercises: " + err.Error()), nil
	}

	c, err := h.ds.Complete(ctx, uid, args.Exercises, h.now())
	if err != nil {
		return h.toolError("complete_workout", err), nil
	}
	return jsonResult(c), nil
}

// toolError turns a service error into a message the model can act on.
func (h *handlers) toolError(tool string, err error) *mcp.CallToolResult {
	var verr *quickfit.ValidationError
	switch {
	case errors.Is(err, quickfit.ErrIncompleteProfile):
		return mcp.NewToolResultError("the user has not chosen a goal and equipment yet; ask them to finish onboarding")
	case errors.As(err, &verr):
		return mcp.NewToolResultError(verr.Error())
	case errors.Is(err, quickfit.ErrWriteFailed):
		return mcp.NewToolResultError("failed to save workout, please try again")
	}
	h.log.Error("mcp "+tool, "error", err)
	return mcp.NewToolResultError("request failed: " + err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed")
	}
	return result
}
