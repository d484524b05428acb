package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) progress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	summary, err := h.ds.GetProgress(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, summary)
}

func (h *handlers) plan(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.ListWorkouts(ctx)
	if err != nil {
		return nil, err
	}

	weeks := map[int][]string{}
	for _, w := range workouts {
		weeks[w.Week] = append(weeks[w.Week], w.Text)
	}
	return jsonContents(req.Params.URI, map[string]any{
		"workouts": workouts,
		"weeks":    weeks,
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
