package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("run5k", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("run5k running plan tracker. List the 24 workouts of the 5 km plan, read and update completion progress, read runner preferences, and parse workout descriptions into run/walk/repeat intervals."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListWorkouts, Handler: h.listWorkouts},
		server.ServerTool{Tool: toolGetProgress, Handler: h.getProgress},
		server.ServerTool{Tool: toolMarkWorkoutCompleted, Handler: h.markWorkoutCompleted},
		server.ServerTool{Tool: toolToggleWorkout, Handler: h.toggleWorkout},
		server.ServerTool{Tool: toolGetPreferences, Handler: h.getPreferences},
		server.ServerTool{Tool: toolSetRunnerName, Handler: h.setRunnerName},
		server.ServerTool{Tool: toolParseWorkout, Handler: h.parseWorkout},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resProgress, Handler: h.progress},
		server.ServerResource{Resource: resPlan, Handler: h.plan},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resProgress = mcp.NewResource(
	"run5k://progress",
	"Progress",
	mcp.WithResourceDescription("Completed workout indices, completed count and plan size"),
	mcp.WithMIMEType("application/json"),
)

var resPlan = mcp.NewResource(
	"run5k://plan",
	"Training Plan",
	mcp.WithResourceDescription("All workouts of the plan by week and day, with completion flags"),
	mcp.WithMIMEType("application/json"),
)
