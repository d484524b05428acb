package mcp

import (
	"context"

	"github.com/meltforce/run5k/internal/models"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
)

// DataSource abstracts the tracker for MCP tools. Both Local (in-process
// store) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListWorkouts(ctx context.Context) ([]models.Workout, error)
	GetProgress(ctx context.Context) (models.ProgressSummary, error)
	MarkCompleted(ctx context.Context, index int) (bool, error)
	ToggleWorkout(ctx context.Context, index int) (bool, error)
	GetPreferences(ctx context.Context) (models.Preferences, error)
	SetRunnerName(ctx context.Context, name string) (models.Preferences, error)
}

// Local serves the tracker from an in-process catalog and store.
type Local struct {
	Catalog *plan.Catalog
	Store   *progress.Store
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

func (l Local) ListWorkouts(context.Context) ([]models.Workout, error) {
	return l.Catalog.Workouts(l.Store.Progress()), nil
}

func (l Local) GetProgress(context.Context) (models.ProgressSummary, error) {
	return l.Store.Summary(), nil
}

func (l Local) MarkCompleted(ctx context.Context, index int) (bool, error) {
	return l.Store.MarkCompleted(ctx, index)
}

func (l Local) ToggleWorkout(ctx context.Context, index int) (bool, error) {
	return l.Store.Toggle(ctx, index)
}

func (l Local) GetPreferences(context.Context) (models.Preferences, error) {
	return l.Store.Preferences(), nil
}

func (l Local) SetRunnerName(ctx context.Context, name string) (models.Preferences, error) {
	l.Store.SetRunnerName(ctx, name)
	return l.Store.Preferences(), nil
}
