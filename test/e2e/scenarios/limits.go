package scenarios

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/laredonunes/ecoquest-api/test/e2e/client"
	"github.com/laredonunes/ecoquest-api/test/e2e/config"
)

// LimitsScenario exercises the per-player rate limiting: a back-to-back
// second turn must be denied with a retry hint, other players must be
// unaffected, and honoring the hint must let the denied player back in.
type LimitsScenario struct {
	name        string
	description string
	config      *config.Config
	http        *client.HTTPClient

	scenarioID       string
	retryAfter       int
	cooldownDisabled bool
}

// NewLimitsScenario creates a new rate limiting scenario.
func NewLimitsScenario(cfg *config.Config) *LimitsScenario {
	return &LimitsScenario{
		name:        "limits",
		description: "Tests per-player cooldown denial, identity isolation, and the retry_after contract",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *LimitsScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *LimitsScenario) Description() string {
	return s.description
}

// Setup prepares the scenario environment. The scenario always generates
// its own identity so traffic from earlier scenarios cannot skew the
// limit measurements.
func (s *LimitsScenario) Setup(ctx context.Context) error {
	s.http = client.NewHTTPClient(s.config.BaseURL, "")
	s.scenarioID = "floresta"

	if err := s.http.WaitForHealthy(ctx, config.DefaultWaitTimeout); err != nil {
		return fmt.Errorf("service not healthy: %w", err)
	}

	return nil
}

// Execute runs the rate limiting scenario.
func (s *LimitsScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []struct {
		name string
		fn   func(context.Context, *Result) error
	}{
		{"first-start", s.stageFirstStart},
		{"cooldown-denied", s.stageCooldownDenied},
		{"identity-isolation", s.stageIdentityIsolation},
		{"retry-after-honored", s.stageRetryAfterHonored},
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
func (s *LimitsScenario) Teardown(_ context.Context) error {
	return nil
}

// stageFirstStart verifies a fresh identity's first turn goes through.
func (s *LimitsScenario) stageFirstStart(ctx context.Context, result *Result) error {
	turn, err := s.http.StartTurn(ctx, s.scenarioID)
	if err != nil {
		return fmt.Errorf("first start: %w", err)
	}
	if turn.Status != "success" {
		return fmt.Errorf("expected status 'success', got %q", turn.Status)
	}

	result.SetDetail("player_id", s.http.PlayerID())
	return nil
}

// stageCooldownDenied verifies an immediate second turn is denied with
// the 429 envelope and a retry hint.
func (s *LimitsScenario) stageCooldownDenied(ctx context.Context, result *Result) error {
	_, err := s.http.StartTurn(ctx, s.scenarioID)
	if err == nil {
		s.cooldownDisabled = true
		result.AddWarning("Second immediate turn succeeded - cooldown appears disabled, skipping limit checks")
		result.SetDetail("cooldown_disabled", true)
		return nil
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("expected API error envelope, got: %v", err)
	}
	if apiErr.StatusCode != 429 {
		return fmt.Errorf("expected 429, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "COOLDOWN_ACTIVE" {
		return fmt.Errorf("expected code COOLDOWN_ACTIVE, got %q", apiErr.Code)
	}
	if apiErr.RetryAfter < 1 {
		return fmt.Errorf("expected retry_after >= 1, got %d", apiErr.RetryAfter)
	}

	s.retryAfter = apiErr.RetryAfter
	result.SetDetail("retry_after", apiErr.RetryAfter)

	return nil
}

// stageIdentityIsolation verifies another player is served while the
// first one is cooling down.
func (s *LimitsScenario) stageIdentityIsolation(ctx context.Context, result *Result) error {
	if s.cooldownDisabled {
		result.AddWarning("Skipping identity-isolation - cooldown disabled")
		return nil
	}

	other := client.NewHTTPClient(s.config.BaseURL, "")
	turn, err := other.StartTurn(ctx, s.scenarioID)
	if err != nil {
		return fmt.Errorf("other player's start should not be limited: %w", err)
	}
	if turn.Status != "success" {
		return fmt.Errorf("expected status 'success', got %q", turn.Status)
	}

	result.SetDetail("other_player_id", other.PlayerID())
	return nil
}

// stageRetryAfterHonored verifies waiting out retry_after readmits the
// denied player.
func (s *LimitsScenario) stageRetryAfterHonored(ctx context.Context, result *Result) error {
	if s.cooldownDisabled {
		result.AddWarning("Skipping retry-after-honored - cooldown disabled")
		return nil
	}

	wait := time.Duration(s.retryAfter)*time.Second + 500*time.Millisecond
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("waiting out retry_after: %w", ctx.Err())
	case <-timer.C:
	}

	turn, err := s.http.StartTurn(ctx, s.scenarioID)
	if err != nil {
		return fmt.Errorf("start after waiting %v: %w", wait, err)
	}
	if turn.Status != "success" {
		return fmt.Errorf("expected status 'success', got %q", turn.Status)
	}

	result.SetMetric("waited_seconds", s.retryAfter)
	return nil
}
