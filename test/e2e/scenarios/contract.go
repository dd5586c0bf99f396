package scenarios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/laredonunes/ecoquest-api/test/e2e/client"
	"github.com/laredonunes/ecoquest-api/test/e2e/config"
)

// ContractScenario probes the documented API surface: the discovery
// endpoints and the JSON error envelope for every rejection the service
// can produce.
type ContractScenario struct {
	name        string
	description string
	config      *config.Config
	http        *client.HTTPClient
}

// NewContractScenario creates a new API contract scenario.
func NewContractScenario(cfg *config.Config) *ContractScenario {
	return &ContractScenario{
		name:        "contract",
		description: "Tests discovery endpoints and the error envelope (docs, health, scenario list, rejections)",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *ContractScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *ContractScenario) Description() string {
	return s.description
}

// Setup prepares the scenario environment.
func (s *ContractScenario) Setup(ctx context.Context) error {
	s.http = client.NewHTTPClient(s.config.BaseURL, s.config.PlayerID)

	if err := s.http.WaitForHealthy(ctx, config.DefaultWaitTimeout); err != nil {
		return fmt.Errorf("service not healthy: %w", err)
	}

	return nil
}

// Execute runs the contract scenario.
func (s *ContractScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []struct {
		name string
		fn   func(context.Context, *Result) error
	}{
		{"docs", s.stageDocs},
		{"health", s.stageHealth},
		{"list-scenarios", s.stageListScenarios},
		{"wrong-content-type", s.stageWrongContentType},
		{"missing-action", s.stageMissingAction},
		{"invalid-action", s.stageInvalidAction},
		{"continue-missing-fields", s.stageContinueMissingFields},
		{"unknown-scenario", s.stageUnknownScenario},
		{"unknown-path", s.stageUnknownPath},
		{"method-not-allowed", s.stageMethodNotAllowed},
	}

	for _, stage := range stages {
		stageStart := time.Now()
		stageCtx, cancel := context.WithTimeout(ctx, s.config.StageTimeout)

		err := stage.fn(stageCtx, result)
		cancel()

		stageDuration := time.Since(stageStart)
		result.SetMetric(fmt.Sprintf("%s_duration_us", stage.name), stageDuration.Microseconds())

		if err != nil {
			result.AddStage(stage.name, false, stageDuration, err.Error())
			result.AddError(fmt.Sprintf("%s: %v", stage.name, err))
			result.Error = fmt.Sprintf("%s failed: %v", stage.name, err)
			return result, nil
		}

		result.AddStage(stage.name, true, stageDuration, "")
	}

	result.Success = true
	return result, nil
}

// Teardown cleans up after the scenario.
func (s *ContractScenario) Teardown(_ context.Context) error {
	return nil
}

// stageDocs verifies GET / serves the self-describing documentation.
func (s *ContractScenario) stageDocs(ctx context.Context, result *Result) error {
	docs, err := s.http.GetDocs(ctx)
	if err != nil {
		return fmt.Errorf("get docs: %w", err)
	}

	nome, _ := docs["nome"].(string)
	if nome != "ECO QUEST - API de RPG Ambiental" {
		return fmt.Errorf("unexpected api name: %q", nome)
	}

	versao, _ := docs["versao"].(string)
	if versao == "" {
		return fmt.Errorf("docs missing versao")
	}
	result.SetDetail("api_version", versao)

	if _, ok := docs["endpoints_gerais"]; !ok {
		return fmt.Errorf("docs missing endpoints_gerais")
	}
	if _, ok := docs["exemplo_uso"]; !ok {
		return fmt.Errorf("docs missing exemplo_uso")
	}

	cenarios, ok := docs["cenarios"].(map[string]any)
	if !ok {
		return fmt.Errorf("docs missing cenarios map")
	}
	if _, ok := cenarios["floresta"]; !ok {
		return fmt.Errorf("docs cenarios missing floresta")
	}
	result.SetDetail("documented_scenarios", len(cenarios))

	return nil
}

// stageHealth verifies GET /health reports a healthy service.
func (s *ContractScenario) stageHealth(ctx context.Context, result *Result) error {
	health, err := s.http.Health(ctx)
	if err != nil {
		return fmt.Errorf("get health: %w", err)
	}

	if health.Status != "healthy" {
		return fmt.Errorf("expected status 'healthy', got %q", health.Status)
	}
	if health.Timestamp == "" {
		return fmt.Errorf("health missing timestamp")
	}
	if health.CenariosDisponiveis < 3 {
		return fmt.Errorf("expected at least 3 scenarios, got %d", health.CenariosDisponiveis)
	}

	result.SetDetail("groq_configured", health.GroqAPIConfigured)
	result.SetDetail("scenarios_available", health.CenariosDisponiveis)

	if !health.GroqAPIConfigured {
		result.AddWarning("Groq API key not configured - turn scenarios will fail upstream")
	}

	return nil
}

// stageListScenarios verifies GET /api/cenarios lists the playable scenarios.
func (s *ContractScenario) stageListScenarios(ctx context.Context, result *Result) error {
	list, err := s.http.ListScenarios(ctx)
	if err != nil {
		return fmt.Errorf("list scenarios: %w", err)
	}

	if list.Status != "success" {
		return fmt.Errorf("expected status 'success', got %q", list.Status)
	}
	if list.Total < 3 {
		return fmt.Errorf("expected at least 3 scenarios, got %d", list.Total)
	}
	if list.Total != len(list.Cenarios) {
		return fmt.Errorf("total %d does not match %d listed scenarios", list.Total, len(list.Cenarios))
	}

	ids := make(map[string]bool, len(list.Cenarios))
	for _, sc := range list.Cenarios {
		ids[sc.ID] = true
		if sc.Titulo == "" {
			return fmt.Errorf("scenario %s missing titulo", sc.ID)
		}
		if sc.Endpoint != "/api/"+sc.ID {
			return fmt.Errorf("scenario %s has unexpected endpoint %q", sc.ID, sc.Endpoint)
		}
	}

	for _, id := range []string{"floresta", "mangue", "mar"} {
		if !ids[id] {
			return fmt.Errorf("builtin scenario %s not listed", id)
		}
	}

	result.SetDetail("scenario_ids", len(ids))
	return nil
}

// stageWrongContentType verifies a non-JSON turn request is rejected.
func (s *ContractScenario) stageWrongContentType(ctx context.Context, _ *Result) error {
	status, body, err := s.http.Request(ctx, "POST", "/api/floresta", "text/plain", []byte(`{"action":"start"}`))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return expectEnvelope(status, body, 400, "INVALID_CONTENT_TYPE")
}

// stageMissingAction verifies an empty turn request names the valid actions.
func (s *ContractScenario) stageMissingAction(ctx context.Context, result *Result) error {
	status, body, err := s.http.Request(ctx, "POST", "/api/floresta", "application/json", []byte(`{}`))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	if err := expectEnvelope(status, body, 400, "MISSING_ACTION"); err != nil {
		return err
	}

	var envelope client.APIError
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if len(envelope.ValidActions) == 0 {
		return fmt.Errorf("envelope missing valid_actions")
	}
	result.SetDetail("valid_actions", envelope.ValidActions)

	return nil
}

// stageInvalidAction verifies an unknown action is rejected.
func (s *ContractScenario) stageInvalidAction(ctx context.Context, _ *Result) error {
	status, body, err := s.http.Request(ctx, "POST", "/api/floresta", "application/json", []byte(`{"action":"voar"}`))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return expectEnvelope(status, body, 400, "INVALID_ACTION")
}

// stageContinueMissingFields verifies a continue without state is rejected.
func (s *ContractScenario) stageContinueMissingFields(ctx context.Context, _ *Result) error {
	status, body, err := s.http.Request(ctx, "POST", "/api/floresta", "application/json", []byte(`{"action":"continue"}`))
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return expectEnvelope(status, body, 400, "MISSING_FIELDS")
}

// stageUnknownScenario verifies an unregistered scenario returns 404 with
// the available endpoints.
func (s *ContractScenario) stageUnknownScenario(ctx context.Context, result *Result) error {
	_, err := s.http.StartTurn(ctx, "deserto")
	if err == nil {
		return fmt.Errorf("expected error for unknown scenario, got nil")
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("expected API error envelope, got: %v", err)
	}
	if apiErr.StatusCode != 404 {
		return fmt.Errorf("expected 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "NOT_FOUND" {
		return fmt.Errorf("expected code NOT_FOUND, got %q", apiErr.Code)
	}
	if len(apiErr.Endpoints) == 0 {
		return fmt.Errorf("envelope missing endpoints_disponiveis")
	}
	result.SetDetail("advertised_endpoints", len(apiErr.Endpoints))

	return nil
}

// stageUnknownPath verifies unrouted paths still answer with the JSON envelope.
func (s *ContractScenario) stageUnknownPath(ctx context.Context, _ *Result) error {
	status, body, err := s.http.Request(ctx, "GET", "/nada", "", nil)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return expectEnvelope(status, body, 404, "NOT_FOUND")
}

// stageMethodNotAllowed verifies turn endpoints reject non-POST methods.
func (s *ContractScenario) stageMethodNotAllowed(ctx context.Context, _ *Result) error {
	status, body, err := s.http.Request(ctx, "GET", "/api/floresta", "", nil)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return expectEnvelope(status, body, 405, "METHOD_NOT_ALLOWED")
}

// expectEnvelope asserts a rejection carries the expected status code and
// the standard error envelope.
func expectEnvelope(status int, body []byte, wantStatus int, wantCode string) error {
	if status != wantStatus {
		return fmt.Errorf("expected HTTP %d, got %d (body: %s)", wantStatus, status, string(body))
	}

	var envelope client.APIError
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("response is not the JSON envelope: %w (body: %s)", err, string(body))
	}
	if envelope.Status != "error" {
		return fmt.Errorf("expected envelope status 'error', got %q", envelope.Status)
	}
	if envelope.Code != wantCode {
		return fmt.Errorf("expected code %s, got %q", wantCode, envelope.Code)
	}
	if envelope.Message == "" {
		return fmt.Errorf("envelope missing error message")
	}

	return nil
}
