package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/meltforce/run5k/internal/models"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
)

func newHandlers(t *testing.T) (*handlers, *progress.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := plan.Default()
	store := progress.New(progress.NewMemoryKV(), catalog.Len(), log)
	store.Load(context.Background())
	return &handlers{ds: Local{Catalog: catalog, Store: store}, log: log}, store
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
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
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

// TestNewRegistersServer verifies the server builds with the local data source.
func TestNewRegistersServer(t *testing.T) {
	h, _ := newHandlers(t)
	if s := New(h.ds, "test", h.log); s == nil {
		t.Fatal("New returned nil")
	}
}

// TestMarkWorkoutCompletedTool verifies the tool updates the store and
// reports the new summary.
func TestMarkWorkoutCompletedTool(t *testing.T) {
	h, store := newHandlers(t)
	res, err := h.markWorkoutCompleted(context.Background(), callTool("mark_workout_completed", map[string]any{"index": 3}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if !store.Progress().Has(3) {
		t.Error("workout 3 not completed")
	}

	var out struct {
		Changed  bool                   `json:"changed"`
		Progress models.ProgressSummary `json:"progress"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if !out.Changed || out.Progress.Count != 1 {
		t.Errorf("out = %+v", out)
	}
}

// TestMarkWorkoutCompletedOutOfRange verifies range errors are tool errors.
func TestMarkWorkoutCompletedOutOfRange(t *testing.T) {
	h, _ := newHandlers(t)
	res, err := h.markWorkoutCompleted(context.Background(), callTool("mark_workout_completed", map[string]any{"index": 40}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error for index 40")
	}
}

// TestToggleWorkoutMissingIndex verifies the index argument is required.
func TestToggleWorkoutMissingIndex(t *testing.T) {
	h, _ := newHandlers(t)
	res, _ := h.toggleWorkout(context.Background(), callTool("toggle_workout", map[string]any{}))
	if !res.IsError {
		t.Error("expected tool error without index")
	}
}

// TestListWorkoutsTool verifies the catalog is returned with completion.
func TestListWorkoutsTool(t *testing.T) {
	h, store := newHandlers(t)
	store.MarkCompleted(context.Background(), 0)

	res, err := h.listWorkouts(context.Background(), callTool("list_workouts", nil))
	if err != nil {
		t.Fatal(err)
	}
	var workouts []models.Workout
	if err := json.Unmarshal([]byte(resultText(t, res)), &workouts); err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 24 || !workouts[0].Completed {
		t.Errorf("got %d workouts, first completed = %v", len(workouts), len(workouts) > 0 && workouts[0].Completed)
	}
}

// TestParseWorkoutTool verifies interval and distance parsing.
func TestParseWorkoutTool(t *testing.T) {
	h, _ := newHandlers(t)

	res, _ := h.parseWorkout(context.Background(), callTool("parse_workout", map[string]any{"text": "Corra 5 min, caminhe 2 min, repita 3x"}))
	var out parsedWorkout
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Kind != models.KindInterval || out.RunSeconds != 300 || out.WalkSeconds != 120 || out.TotalReps != 3 || out.TotalSeconds != 1260 || !out.Valid {
		t.Errorf("interval = %+v", out)
	}

	res, _ = h.parseWorkout(context.Background(), callTool("parse_workout", map[string]any{"text": "Corra 5 km"}))
	out = parsedWorkout{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Kind != models.KindDistance || out.Description != "Corra 5 km" {
		t.Errorf("distance = %+v", out)
	}

	res, _ = h.parseWorkout(context.Background(), callTool("parse_workout", map[string]any{"text": "descanso"}))
	out = parsedWorkout{}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Valid {
		t.Error("text without pattern reported valid")
	}
}

// TestSetRunnerNameTool verifies the name is stored.
func TestSetRunnerNameTool(t *testing.T) {
	h, store := newHandlers(t)
	if _, err := h.setRunnerName(context.Background(), callTool("set_runner_name", map[string]any{"name": "Ana"})); err != nil {
		t.Fatal(err)
	}
	if store.Preferences().RunnerName != "Ana" {
		t.Errorf("runner name = %q", store.Preferences().RunnerName)
	}
}

// TestProgressResource verifies the progress resource contents.
func TestProgressResource(t *testing.T) {
	h, store := newHandlers(t)
	store.MarkCompleted(context.Background(), 1)

	var req mcp.ReadResourceRequest
	req.Params.URI = "run5k://progress"
	contents, err := h.progress(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content type = %T", contents[0])
	}
	var summary models.ProgressSummary
	if err := json.Unmarshal([]byte(tc.Text), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Count != 1 || summary.Total != 24 || tc.URI != "run5k://progress" {
		t.Errorf("summary = %+v, uri = %q", summary, tc.URI)
	}
}
