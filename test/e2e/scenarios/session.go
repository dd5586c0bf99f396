package scenarios

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/laredonunes/ecoquest-api/test/e2e/client"
	"github.com/laredonunes/ecoquest-api/test/e2e/config"
)

const sessionContinueTurns = 3

// SessionScenario plays a complete investigative session: it starts a
// case, answers three turns picking from the narrator's options, and
// checks the session state the caller carries between turns.
type SessionScenario struct {
	name        string
	description string
	config      *config.Config
	http        *client.HTTPClient

	scenarioID string
	state      *client.GameState
	options    []string
	lastTurn   *client.TurnResponse
}

// NewSessionScenario creates a new gameplay session scenario.
func NewSessionScenario(cfg *config.Config) *SessionScenario {
	return &SessionScenario{
		name:        "session",
		description: "Plays a full session (start plus three continues) and verifies the carried game state",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *SessionScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *SessionScenario) Description() string {
	return s.description
}

// Setup prepares the scenario environment.
func (s *SessionScenario) Setup(ctx context.Context) error {
	s.http = client.NewHTTPClient(s.config.BaseURL, s.config.PlayerID)

	if err := s.http.WaitForHealthy(ctx, config.DefaultWaitTimeout); err != nil {
		return fmt.Errorf("service not healthy: %w", err)
	}

	return nil
}

// Execute runs the session scenario.
func (s *SessionScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []struct {
		name string
		fn   func(context.Context, *Result) error
	}{
		{"pick-scenario", s.stagePickScenario},
		{"start", s.stageStart},
		{"continue-turns", s.stageContinueTurns},
		{"final-state", s.stageFinalState},
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

// Teardown cleans up after the scenario. Sessions live entirely in the
// request/response cycle, so there is nothing to remove server-side.
func (s *SessionScenario) Teardown(_ context.Context) error {
	return nil
}

// stagePickScenario chooses which case to play from the live listing.
func (s *SessionScenario) stagePickScenario(ctx context.Context, result *Result) error {
	list, err := s.http.ListScenarios(ctx)
	if err != nil {
		return fmt.Errorf("list scenarios: %w", err)
	}
	if len(list.Cenarios) == 0 {
		return fmt.Errorf("no scenarios available")
	}

	s.scenarioID = list.Cenarios[0].ID
	for _, sc := range list.Cenarios {
		if sc.ID == "floresta" {
			s.scenarioID = sc.ID
			break
		}
	}

	result.SetDetail("scenario_id", s.scenarioID)
	return nil
}

// stageStart opens the session and checks the first turn.
func (s *SessionScenario) stageStart(ctx context.Context, result *Result) error {
	turn, err := turnWithRetry(ctx, func() (*client.TurnResponse, error) {
		return s.http.StartTurn(ctx, s.scenarioID)
	})
	if err != nil {
		return fmt.Errorf("start turn: %w", err)
	}

	if err := checkTurn(turn); err != nil {
		return fmt.Errorf("start turn: %w", err)
	}
	if turn.PlayerAction != "" {
		return fmt.Errorf("start turn must not echo a player action, got %q", turn.PlayerAction)
	}
	if len(turn.GameState.ConversationHistory) != 2 {
		return fmt.Errorf("expected 2 history entries after start, got %d", len(turn.GameState.ConversationHistory))
	}

	if len(turn.Narrative.InnerVoiceOptions) != 3 {
		result.AddWarning(fmt.Sprintf("Expected 3 inner voice options, got %d", len(turn.Narrative.InnerVoiceOptions)))
	}

	s.state = turn.GameState
	s.options = turn.Narrative.InnerVoiceOptions
	s.lastTurn = turn

	result.SetDetail("operation", turn.Operation)
	result.SetDetail("opening_chapter", turn.Chapter)
	result.SetMetric("start_danger_meter", turn.GameState.DangerMeter)

	return nil
}

// stageContinueTurns advances the session three turns, always taking the
// narrator's first suggestion.
func (s *SessionScenario) stageContinueTurns(ctx context.Context, result *Result) error {
	for i := 1; i <= sessionContinueTurns; i++ {
		decision := "Continuar a investigação"
		if len(s.options) > 0 {
			decision = s.options[0]
		}

		historyBefore := len(s.state.ConversationHistory)
		evidenceBefore := len(s.state.EvidenceCollected)

		turn, err := turnWithRetry(ctx, func() (*client.TurnResponse, error) {
			return s.http.ContinueTurn(ctx, s.scenarioID, decision, s.state)
		})
		if err != nil {
			return fmt.Errorf("continue turn %d: %w", i, err)
		}

		if err := checkTurn(turn); err != nil {
			return fmt.Errorf("continue turn %d: %w", i, err)
		}
		if turn.PlayerAction != decision {
			return fmt.Errorf("turn %d echoed action %q, sent %q", i, turn.PlayerAction, decision)
		}
		if got := len(turn.GameState.ConversationHistory); got != historyBefore+2 {
			return fmt.Errorf("turn %d: expected history to grow from %d to %d, got %d",
				i, historyBefore, historyBefore+2, got)
		}
		if turn.Progress == "" {
			return fmt.Errorf("turn %d missing progress summary", i)
		}
		if len(turn.GameState.EvidenceCollected) < evidenceBefore {
			return fmt.Errorf("turn %d: evidence shrank from %d to %d",
				i, evidenceBefore, len(turn.GameState.EvidenceCollected))
		}

		s.state = turn.GameState
		s.options = turn.Narrative.InnerVoiceOptions
		s.lastTurn = turn
	}

	result.SetMetric("turns_played", sessionContinueTurns+1)
	return nil
}

// stageFinalState checks the session state after the last turn.
func (s *SessionScenario) stageFinalState(_ context.Context, result *Result) error {
	if s.state.Phase == "" {
		return fmt.Errorf("final state missing phase")
	}

	wantHistory := 2 * (sessionContinueTurns + 1)
	if got := len(s.state.ConversationHistory); got != wantHistory {
		return fmt.Errorf("expected %d history entries after %d turns, got %d",
			wantHistory, sessionContinueTurns+1, got)
	}

	result.SetDetail("final_phase", s.state.Phase)
	result.SetDetail("final_progress", s.lastTurn.Progress)
	result.SetMetric("final_danger_meter", s.state.DangerMeter)
	result.SetMetric("evidence_collected", len(s.state.EvidenceCollected))

	return nil
}

// turnWithRetry performs a turn, honoring one rate-limit denial by
// waiting the advertised retry_after before trying again. Back-to-back
// turns from one identity legitimately hit the cooldown when no human
// is pacing them.
func turnWithRetry(ctx context.Context, fn func() (*client.TurnResponse, error)) (*client.TurnResponse, error) {
	turn, err := fn()

	var apiErr *client.APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.StatusCode != 429 || apiErr.RetryAfter <= 0 {
		return turn, err
	}

	wait := time.Duration(apiErr.RetryAfter)*time.Second + 200*time.Millisecond
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	return fn()
}

// checkTurn validates the fields every successful turn must carry.
func checkTurn(turn *client.TurnResponse) error {
	if turn.Status != "success" {
		return fmt.Errorf("expected status 'success', got %q", turn.Status)
	}
	if turn.Operation == "" {
		return fmt.Errorf("missing operation")
	}
	if turn.Chapter == "" {
		return fmt.Errorf("missing chapter")
	}
	if turn.Narrative == nil {
		return fmt.Errorf("missing narrative")
	}
	if turn.Narrative.PanelDescription == "" {
		return fmt.Errorf("narrative missing panel description")
	}
	if turn.Narrative.Phase == "" {
		return fmt.Errorf("narrative missing phase")
	}
	if turn.GameState == nil {
		return fmt.Errorf("missing game state")
	}
	if turn.GameState.Phase == "" {
		return fmt.Errorf("game state missing phase")
	}
	if turn.GameState.DangerMeter < 0 || turn.GameState.DangerMeter > 100 {
		return fmt.Errorf("danger meter %d outside [0,100]", turn.GameState.DangerMeter)
	}
	return nil
}
