package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/sessiontrack/internal/domain/model"
)

// apiClient talks to the sessiontrack API as a BCBA.
type apiClient struct {
	client  *http.Client
	baseURL string
	userID  string
}

func newAPIClient(baseURL string, timeout time.Duration, userID string) *apiClient {
	return &apiClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
	}
}

// statusError is returned for any non-2xx response.
type statusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(e.Body))
}

// do sends body as JSON and decodes a 2xx response into out.
func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-Role", "BCBA")
	req.Header.Set("X-User-Id", c.userID)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (c *apiClient) health(ctx context.Context) (healthResponse, error) {
	var out healthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func (c *apiClient) createClient(ctx context.Context, name, birthdate string) (model.Client, error) {
	var out model.Client
	err := c.do(ctx, http.MethodPost, "/api/clients", map[string]any{"name": name, "birthdate": birthdate}, &out)
	return out, err
}

func (c *apiClient) createBehavior(ctx context.Context, clientID int64, body map[string]any) (model.Behavior, error) {
	var out model.Behavior
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/clients/%d/behaviors", clientID), body, &out)
	return out, err
}

func (c *apiClient) createSkill(ctx context.Context, clientID int64, body map[string]any) (model.Skill, error) {
	var out model.Skill
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/clients/%d/skills", clientID), body, &out)
	return out, err
}

func (c *apiClient) startSession(ctx context.Context, clientID int64) (model.Session, error) {
	var out model.Session
	err := c.do(ctx, http.MethodPost, "/api/sessions/start", map[string]any{"client_id": clientID}, &out)
	return out, err
}

// batchResult mirrors the ingestion response.
type batchResult struct {
	OK       bool `json:"ok"`
	Accepted int  `json:"accepted"`
	Rejected []struct {
		Index  int    `json:"index"`
		Reason string `json:"reason"`
	} `json:"rejected"`
}

func (c *apiClient) postEvents(ctx context.Context, sessionID int64, events []map[string]any) (batchResult, error) {
	var out batchResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/sessions/%d/events", sessionID), map[string]any{"events": events}, &out)
	return out, err
}

func (c *apiClient) postSkillEvents(ctx context.Context, sessionID int64, events []map[string]any) (batchResult, error) {
	var out batchResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/sessions/%d/skill-events", sessionID), map[string]any{"events": events}, &out)
	return out, err
}

type endResult struct {
	model.Session
	Events      batchResult `json:"events"`
	SkillEvents batchResult `json:"skill_events"`
}

func (c *apiClient) endSession(ctx context.Context, sessionID int64, events, skillEvents []map[string]any) (endResult, error) {
	var out endResult
	body := map[string]any{"events": events, "skill_events": skillEvents}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/sessions/%d/end", sessionID), body, &out)
	return out, err
}

func (c *apiClient) behaviorPoints(ctx context.Context, behaviorID int64) (model.BehaviorPoints, error) {
	var out model.BehaviorPoints
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/analysis/behavior/%d/session-points", behaviorID), nil, &out)
	return out, err
}

func (c *apiClient) skillPoints(ctx context.Context, skillID int64) (model.SkillPoints, error) {
	var out model.SkillPoints
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/analysis/skill/%d/session-points", skillID), nil, &out)
	return out, err
}
