// Package client provides test clients for e2e scenarios.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps HTTP calls to the EcoQuest API for e2e scenarios.
type HTTPClient struct {
	baseURL    string
	playerID   string
	httpClient *http.Client
}

// NewHTTPClient creates a client for the given base URL. An empty playerID
// gets a generated one so each run starts with a fresh rate-limit identity.
func NewHTTPClient(baseURL, playerID string) *HTTPClient {
	if playerID == "" {
		playerID = fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	}
	return &HTTPClient{
		baseURL:  baseURL,
		playerID: playerID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// PlayerID returns the identity sent with every request.
func (c *HTTPClient) PlayerID() string {
	return c.playerID
}

// APIError is the error envelope the API returns for non-2xx responses.
type APIError struct {
	StatusCode   int      `json:"-"`
	Status       string   `json:"status"`
	Message      string   `json:"error"`
	Code         string   `json:"code"`
	ValidActions []string `json:"valid_actions,omitempty"`
	RetryAfter   int      `json:"retry_after,omitempty"`
	Endpoints    []string `json:"endpoints_disponiveis,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Message is one entry of a session's conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GameState mirrors the session state the API echoes back each turn.
type GameState struct {
	Phase               string    `json:"phase"`
	EvidenceCollected   []string  `json:"evidence_collected"`
	DangerMeter         int       `json:"danger_meter"`
	ConversationHistory []Message `json:"conversation_history"`
}

// Narrative mirrors the structured narrative block of a turn response.
type Narrative struct {
	PanelDescription   string   `json:"panel_description"`
	InnerVoiceOptions  []string `json:"inner_voice_options"`
	EvidenceDiscovered *string  `json:"evidence_discovered"`
	DangerLevel        string   `json:"danger_level"`
	Phase              string   `json:"phase"`
}

// TurnResponse is a successful start or continue turn.
type TurnResponse struct {
	Status       string     `json:"status"`
	Operation    string     `json:"operation"`
	Chapter      string     `json:"chapter"`
	Timestamp    string     `json:"timestamp"`
	PlayerAction string     `json:"player_action,omitempty"`
	Narrative    *Narrative `json:"narrative"`
	GameState    *GameState `json:"game_state"`
	Progress     string     `json:"progress,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status              string `json:"status"`
	Timestamp           string `json:"timestamp"`
	GroqAPIConfigured   bool   `json:"groq_api_configured"`
	CenariosDisponiveis int    `json:"cenarios_disponiveis"`
}

// ScenarioInfo is one entry of the scenario listing.
type ScenarioInfo struct {
	ID        string `json:"id"`
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao"`
	Icon      string `json:"icon"`
	Endpoint  string `json:"endpoint"`
}

// ScenarioList is the body of GET /api/cenarios.
type ScenarioList struct {
	Status   string         `json:"status"`
	Total    int            `json:"total"`
	Cenarios []ScenarioInfo `json:"cenarios"`
}

// GetDocs retrieves the API documentation payload.
// GET /
func (c *HTTPClient) GetDocs(ctx context.Context) (map[string]any, error) {
	var docs map[string]any
	if err := c.getJSON(ctx, "/", &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Health retrieves the service health payload.
// GET /health
func (c *HTTPClient) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListScenarios retrieves the available scenarios.
// GET /api/cenarios
func (c *HTTPClient) ListScenarios(ctx context.Context) (*ScenarioList, error) {
	var list ScenarioList
	if err := c.getJSON(ctx, "/api/cenarios", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// StartTurn opens a new session on a scenario.
// POST /api/{scenario} with {"action":"start"}
func (c *HTTPClient) StartTurn(ctx context.Context, scenarioID string) (*TurnResponse, error) {
	return c.postTurn(ctx, scenarioID, map[string]any{
		"action": "start",
	})
}

// ContinueTurn advances an existing session with the player's decision and
// the state echoed by the previous turn.
// POST /api/{scenario} with {"action":"continue",...}
func (c *HTTPClient) ContinueTurn(ctx context.Context, scenarioID, decision string, state *GameState) (*TurnResponse, error) {
	return c.postTurn(ctx, scenarioID, map[string]any{
		"action":          "continue",
		"player_decision": decision,
		"game_state":      state,
	})
}

func (c *HTTPClient) postTurn(ctx context.Context, scenarioID string, payload map[string]any) (*TurnResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	status, body, err := c.Request(ctx, "POST", "/api/"+scenarioID, "application/json", data)
	if err != nil {
		return nil, err
	}

	if status >= 400 {
		return nil, decodeAPIError(status, body)
	}

	var turn TurnResponse
	if err := json.Unmarshal(body, &turn); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(body))
	}

	return &turn, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out any) error {
	status, body, err := c.Request(ctx, "GET", path, "", nil)
	if err != nil {
		return err
	}

	if status >= 400 {
		return decodeAPIError(status, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w (body: %s)", err, string(body))
	}

	return nil
}

// Request performs a raw HTTP request against the API and returns the status
// code and body without interpreting them. Scenarios use it directly to probe
// the error contract with malformed inputs the typed methods cannot produce.
func (c *HTTPClient) Request(ctx context.Context, method, path, contentType string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("X-Player-ID", c.playerID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

func decodeAPIError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("HTTP %d: %s", status, string(body))
	}
	return apiErr
}

// HealthCheck verifies the service responds to health checks.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "healthy" {
		return fmt.Errorf("unexpected health status: %s", health.Status)
	}
	return nil
}

// WaitForHealthy polls the health endpoint until the service responds or the
// timeout expires.
func (c *HTTPClient) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for service to be healthy: %w", lastErr)
			}
			if err := c.HealthCheck(ctx); err != nil {
				lastErr = err
				continue
			}
			return nil
		}
	}
}
