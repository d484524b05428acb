package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/run5k/internal/models"
	"github.com/meltforce/run5k/internal/plan"
)

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List every workout of the plan in order, with week, day, description, kind (interval or distance) and whether it is completed."),
)

var toolGetProgress = mcp.NewTool("get_progress",
	mcp.WithDescription("Get the completed workout indices, how many are completed and the plan size."),
)

var toolMarkWorkoutCompleted = mcp.NewTool("mark_workout_completed",
	mcp.WithDescription("Mark a workout completed. Completing an already completed workout changes nothing."),
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based workout index (0-23 for the default plan)")),
)

var toolToggleWorkout = mcp.NewTool("toggle_workout",
	mcp.WithDescription("Flip a workout between completed and not completed."),
	mcp.WithNumber("index", mcp.Required(), mcp.Description("Zero-based workout index")),
)

var toolGetPreferences = mcp.NewTool("get_preferences",
	mcp.WithDescription("Get the runner name and the mute and energy saver toggles."),
)

var toolSetRunnerName = mcp.NewTool("set_runner_name",
	mcp.WithDescription("Set the runner name shown in the greeting. Blank names are ignored."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Runner name")),
)

var toolParseWorkout = mcp.NewTool("parse_workout",
	mcp.WithDescription("Parse a workout description such as 'Corra 5 min, caminhe 2 min, repita 3x' into run/walk seconds and repetitions, or a distance goal when it mentions km."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Workout description")),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		h.log.Error("mcp list_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getProgress(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := h.ds.GetProgress(ctx)
	if err != nil {
		h.log.Error("mcp get_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) markWorkoutCompleted(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index parameter is required"), nil
	}

	changed, err := h.ds.MarkCompleted(ctx, index)
	if err != nil {
		h.log.Error("mcp mark_workout_completed", "index", index, "error", err)
		return mcp.NewToolResultError("update failed: " + err.Error()), nil
	}
	return h.progressResult(ctx, map[string]any{
		"index":     index,
		"completed": true,
		"changed":   changed,
	})
}

func (h *handlers) toggleWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError("index parameter is required"), nil
	}

	completed, err := h.ds.ToggleWorkout(ctx, index)
	if err != nil {
		h.log.Error("mcp toggle_workout", "index", index, "error", err)
		return mcp.NewToolResultError("update failed: " + err.Error()), nil
	}
	return h.progressResult(ctx, map[string]any{
		"index":     index,
		"completed": completed,
	})
}

// progressResult adds the current progress summary to a mutation result.
func (h *handlers) progressResult(ctx context.Context, out map[string]any) (*mcp.CallToolResult, error) {
	summary, err := h.ds.GetProgress(ctx)
	if err != nil {
		h.log.Warn("mcp progress after update", "error", err)
	} else {
		out["progress"] = summary
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPreferences(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefs, err := h.ds.GetPreferences(ctx)
	if err != nil {
		h.log.Error("mcp get_preferences", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(prefs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) setRunnerName(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name parameter is required"), nil
	}

	prefs, err := h.ds.SetRunnerName(ctx, name)
	if err != nil {
		h.log.Error("mcp set_runner_name", "error", err)
		return mcp.NewToolResultError("update failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(prefs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// parsedWorkout is the tool view of a parsed plan.
type parsedWorkout struct {
	Kind         models.PlanKind `json:"kind"`
	Description  string          `json:"description,omitempty"`
	RunSeconds   int             `json:"run_seconds,omitempty"`
	WalkSeconds  int             `json:"walk_seconds,omitempty"`
	TotalReps    int             `json:"total_reps,omitempty"`
	TotalSeconds int             `json:"total_seconds,omitempty"`
	Valid        bool            `json:"valid"`
}

func (h *handlers) parseWorkout(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text parameter is required"), nil
	}

	out := parsedWorkout{Valid: plan.Validate(text) == nil}
	switch p := plan.Parse(text).(type) {
	case models.Distance:
		out.Kind = models.KindDistance
		out.Description = p.Description
	case models.Interval:
		out.Kind = models.KindInterval
		out.RunSeconds = p.RunSeconds
		out.WalkSeconds = p.WalkSeconds
		out.TotalReps = p.TotalReps
		out.TotalSeconds = (p.RunSeconds + p.WalkSeconds) * p.TotalReps
	}

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
