package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/models"
	"github.com/claude/quickfit/internal/quickfit"
)

// HTTPClient implements DataSource by calling the QuickFit REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server. The token decides whose data is
// served, so the userID arguments are ignored.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. token
// may be empty when the server identifies callers by tailnet address.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
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

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(path, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// statusError maps API error responses back onto the service's errors so
// tool handlers treat local and remote failures alike.
func statusError(path string, status int, body []byte) error {
	var e struct {
		Error    string `json:"error"`
		Redirect string `json:"redirect"`
	}
	_ = json.Unmarshal(body, &e)

	switch {
	case status == http.StatusConflict && e.Redirect == quickfit.RouteOnboarding:
		return quickfit.ErrIncompleteProfile
	case status == http.StatusBadRequest:
		return &quickfit.ValidationError{Field: "request", Msg: e.Error}
	case status == http.StatusBadGateway:
		return fmt.Errorf("%w: %s", quickfit.ErrWriteFailed, e.Error)
	}
	return fmt.Errorf("httpclient: %s returned %d: %s", path, status, body)
}

func (c *HTTPClient) Plan(ctx context.Context, _ int, level generator.Level, variant quickfit.Variant) (*quickfit.Workout, error) {
	params := url.Values{}
	params.Set("level", level.String())
	params.Set("variant", string(variant))

	var w quickfit.Workout
	if err := c.do(ctx, http.MethodGet, "/api/v1/workout", params, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *HTTPClient) Profile(ctx context.Context, _ int) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/profile", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) History(ctx context.Context, _ int, limit int) ([]models.CompletedWorkout, error) {
	if limit < 0 {
		return nil, &quickfit.ValidationError{Field: "limit", Msg: "must not be negative"}
	}
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var history []models.CompletedWorkout
	if err := c.do(ctx, http.MethodGet, "/api/v1/workouts/history", params, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// Complete posts the workout; the server stamps the completion time.
func (c *HTTPClient) Complete(ctx context.Context, _ int, exercises []generator.Exercise, _ time.Time) (*quickfit.Completion, error) {
	in := map[string]any{"exercises": exercises}

	var out quickfit.Completion
	if err := c.do(ctx, http.MethodPost, "/api/v1/workouts/complete", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Options(ctx context.Context) (quickfit.Options, error) {
	var o quickfit.Options
	err := c.do(ctx, http.MethodGet, "/api/v1/options", nil, nil, &o)
	return o, err
}
