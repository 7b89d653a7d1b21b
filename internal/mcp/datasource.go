package mcp

import (
	"context"
	"time"

	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/claude/quickfit/internal/quickfit"
)

// DataSource abstracts the planner for MCP tools. Local (in-process) and
// HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Plan(ctx context.Context, userID int, level generator.Level, variant quickfit.Variant) (*quickfit.Workout, error)
	Profile(ctx context.Context, userID int) (*models.Profile, error)
	History(ctx context.Context, userID, limit int) ([]models.CompletedWorkout, error)
	Complete(ctx context.Context, userID int, exercises []generator.Exercise, now time.Time) (*quickfit.Completion, error)
	Options(ctx context.Context) (quickfit.Options, error)
}

// Local serves MCP requests from an in-process service.
type Local struct {
	*quickfit.Service
}

// Options returns the service's choice lists.
func (l Local) Options(context.Context) (quickfit.Options, error) {
	return l.Service.Options(), nil
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}
