package scenarios

import (
	"context"
	"fmt"
	"time"

	"github.com/laredonunes/ecoquest-api/test/e2e/client"
	"github.com/laredonunes/ecoquest-api/test/e2e/config"
)

// EventsScenario verifies the API publishes a turn event to NATS for
// every successful turn, with the identity and state the turn produced.
type EventsScenario struct {
	name        string
	description string
	config      *config.Config
	http        *client.HTTPClient
	nats        *client.NATSClient
	capture     *client.TurnCapture

	scenarioID string
	turn       *client.TurnResponse
}

// NewEventsScenario creates a new turn event scenario.
func NewEventsScenario(cfg *config.Config) *EventsScenario {
	return &EventsScenario{
		name:        "events",
		description: "Tests that successful turns publish telemetry events to NATS",
		config:      cfg,
	}
}

// Name returns the scenario name.
func (s *EventsScenario) Name() string {
	return s.name
}

// Description returns the scenario description.
func (s *EventsScenario) Description() string {
	return s.description
}

// Setup prepares the scenario environment.
func (s *EventsScenario) Setup(ctx context.Context) error {
	if s.config.NATSURL == "" {
		return fmt.Errorf("events scenario requires --nats-url")
	}

	s.http = client.NewHTTPClient(s.config.BaseURL, "")
	s.scenarioID = "floresta"

	if err := s.http.WaitForHealthy(ctx, config.DefaultWaitTimeout); err != nil {
		return fmt.Errorf("service not healthy: %w", err)
	}

	nc, err := client.NewNATSClient(ctx, s.config.NATSURL)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	s.nats = nc

	return nil
}

// Execute runs the turn event scenario.
func (s *EventsScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.name)
	defer result.Complete()

	stages := []struct {
		name string
		fn   func(context.Context, *Result) error
	}{
		{"capture", s.stageCapture},
		{"play-turn", s.stagePlayTurn},
		{"verify-event", s.stageVerifyEvent},
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

// Teardown stops the capture and closes the NATS connection.
func (s *EventsScenario) Teardown(_ context.Context) error {
	if s.capture != nil {
		if err := s.capture.Stop(); err != nil {
			return fmt.Errorf("stop capture: %w", err)
		}
	}
	if s.nats != nil {
		s.nats.Close()
	}
	return nil
}

// stageCapture subscribes to the turn event subjects before playing.
func (s *EventsScenario) stageCapture(_ context.Context, result *Result) error {
	capture, err := s.nats.CaptureTurnEvents(s.config.SubjectPrefix)
	if err != nil {
		return fmt.Errorf("capture turn events: %w", err)
	}
	s.capture = capture

	result.SetDetail("subject_prefix", s.config.SubjectPrefix)
	return nil
}

// stagePlayTurn starts a session so the API has a turn to publish.
func (s *EventsScenario) stagePlayTurn(ctx context.Context, result *Result) error {
	turn, err := s.http.StartTurn(ctx, s.scenarioID)
	if err != nil {
		return fmt.Errorf("start turn: %w", err)
	}
	if turn.Status != "success" {
		return fmt.Errorf("expected status 'success', got %q", turn.Status)
	}

	s.turn = turn
	result.SetDetail("player_id", s.http.PlayerID())
	return nil
}

// stageVerifyEvent waits for the published event and checks it mirrors
// the turn.
func (s *EventsScenario) stageVerifyEvent(ctx context.Context, result *Result) error {
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.capture.WaitForCount(waitCtx, 1); err != nil {
		return fmt.Errorf("no turn event published: %w", err)
	}

	events := s.capture.Events()
	var ev *client.TurnEvent
	for i := range events {
		if events[i].Identity == s.http.PlayerID() {
			ev = &events[i]
			break
		}
	}
	if ev == nil {
		return fmt.Errorf("no event matched player %s among %d captured", s.http.PlayerID(), s.capture.Count())
	}

	if ev.TurnID == "" {
		return fmt.Errorf("event missing turn_id")
	}
	if ev.Scenario != s.scenarioID {
		return fmt.Errorf("event scenario %q, expected %q", ev.Scenario, s.scenarioID)
	}
	if ev.Action != "start" {
		return fmt.Errorf("event action %q, expected 'start'", ev.Action)
	}
	if ev.Phase != s.turn.GameState.Phase {
		return fmt.Errorf("event phase %q, turn reported %q", ev.Phase, s.turn.GameState.Phase)
	}
	if ev.DangerMeter != s.turn.GameState.DangerMeter {
		return fmt.Errorf("event danger %d, turn reported %d", ev.DangerMeter, s.turn.GameState.DangerMeter)
	}
	if ev.EvidenceCount != len(s.turn.GameState.EvidenceCollected) {
		return fmt.Errorf("event evidence count %d, turn reported %d", ev.EvidenceCount, len(s.turn.GameState.EvidenceCollected))
	}
	if ev.Timestamp.IsZero() {
		return fmt.Errorf("event missing timestamp")
	}

	result.SetDetail("turn_id", ev.TurnID)
	result.SetMetric("events_captured", s.capture.Count())

	return nil
}
