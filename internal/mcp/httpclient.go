package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/meltforce/run5k/internal/models"
)

// HTTPClient implements DataSource by calling the run5k REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// progressChange mirrors the server's progress mutation response.
type progressChange struct {
	Completed bool `json:"completed"`
	Changed   bool `json:"changed"`
}

func (c *HTTPClient) ListWorkouts(ctx context.Context) ([]models.Workout, error) {
	var workouts []models.Workout
	if err := c.do(ctx, http.MethodGet, "/api/v1/workouts", nil, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

func (c *HTTPClient) GetProgress(ctx context.Context) (models.ProgressSummary, error) {
	var summary models.ProgressSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/progress", nil, &summary)
	return summary, err
}

func (c *HTTPClient) MarkCompleted(ctx context.Context, index int) (bool, error) {
	var change progressChange
	if err := c.do(ctx, http.MethodPost, "/api/v1/progress/"+strconv.Itoa(index)+"/complete", nil, &change); err != nil {
		return false, err
	}
	return change.Changed, nil
}

func (c *HTTPClient) ToggleWorkout(ctx context.Context, index int) (bool, error) {
	var change progressChange
	if err := c.do(ctx, http.MethodPost, "/api/v1/progress/"+strconv.Itoa(index)+"/toggle", nil, &change); err != nil {
		return false, err
	}
	return change.Completed, nil
}

func (c *HTTPClient) GetPreferences(ctx context.Context) (models.Preferences, error) {
	var prefs models.Preferences
	err := c.do(ctx, http.MethodGet, "/api/v1/preferences", nil, &prefs)
	return prefs, err
}

func (c *HTTPClient) SetRunnerName(ctx context.Context, name string) (models.Preferences, error) {
	var prefs models.Preferences
	err := c.do(ctx, http.MethodPut, "/api/v1/preferences/name", map[string]string{"name": name}, &prefs)
	return prefs, err
}
