// Package engine runs narrative turns: it builds prompts from session
// state, calls the upstream model through the rate-limited client, and
// folds the normalized reply back into the caller's session.
//
// The engine is stateless between calls. A session arrives in the
// request, is mutated exactly once on upstream success, and travels
// back in the response; on failure it is returned untouched.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/laredonunes/ecoquest-api/clock"
	"github.com/laredonunes/ecoquest-api/events"
	"github.com/laredonunes/ecoquest-api/llm"
	"github.com/laredonunes/ecoquest-api/metrics"
	"github.com/laredonunes/ecoquest-api/scenario"
)

// Danger labels map to the 0-100 meter; unknown labels read as médio.
var dangerMeter = map[string]int{
	"baixo":   20,
	"médio":   40,
	"alto":    70,
	"crítico": 95,
}

const defaultDanger = 40

// Completer is the upstream surface the engine needs. Satisfied by
// *llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error)
}

// Config bounds how much transcript a turn carries upstream.
type Config struct {
	// MaxRecentPairs is how many recent user/assistant exchanges
	// survive compression verbatim.
	MaxRecentPairs int `yaml:"max_recent_pairs"`

	// MaxDecisions is how many elided decisions the summary keeps.
	MaxDecisions int `yaml:"max_decisions"`
}

// DefaultConfig returns the settings the API ships with.
func DefaultConfig() Config {
	return Config{
		MaxRecentPairs: 3,
		MaxDecisions:   3,
	}
}

// Engine orchestrates narrative turns against one upstream client.
type Engine struct {
	cfg       Config
	client    Completer
	clk       clock.Clock
	logger    *slog.Logger
	publisher *events.Publisher
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for timestamps. Tests inject clock.Fake.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) {
		e.clk = clk
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPublisher wires turn telemetry. A nil publisher is fine.
func WithPublisher(p *events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// New creates an Engine speaking through client.
func New(cfg Config, client Completer, opts ...Option) *Engine {
	if cfg.MaxRecentPairs <= 0 {
		cfg.MaxRecentPairs = DefaultConfig().MaxRecentPairs
	}
	if cfg.MaxDecisions <= 0 {
		cfg.MaxDecisions = DefaultConfig().MaxDecisions
	}
	e := &Engine{
		cfg:    cfg,
		client: client,
		clk:    clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Turn is the wire envelope for one narrative turn.
type Turn struct {
	Status       string    `json:"status"`
	Operation    string    `json:"operation"`
	Chapter      string    `json:"chapter"`
	Timestamp    string    `json:"timestamp"`
	PlayerAction string    `json:"player_action,omitempty"`
	Narrative    Narrative `json:"narrative"`
	GameState    *Session  `json:"game_state"`
	Progress     string    `json:"progress,omitempty"`
}

// StartTurn opens a fresh investigation and returns the opening scene
// plus the session the caller must carry into continue turns.
func (e *Engine) StartTurn(ctx context.Context, sc *scenario.Scenario, identity string) (*Turn, error) {
	turnID := uuid.NewString()

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: sc.SystemPrompt},
		{Role: llm.RoleUser, Content: sc.OpeningPrompt},
	}

	reply, err := e.complete(ctx, sc, "start", turnID, messages)
	if err != nil {
		return nil, err
	}

	narrative := Normalize(reply, sc)
	if narrative.Phase == "" {
		narrative.Phase = sc.InitialPhase()
	}

	session := &Session{
		Phase:             sc.InitialPhase(),
		EvidenceCollected: []string{},
		DangerMeter:       sc.InitialDanger,
		History: []llm.Message{
			{Role: llm.RoleUser, Content: sc.OpeningPrompt},
			{Role: llm.RoleAssistant, Content: reply},
		},
	}
	if clue := narrative.EvidenceDiscovered; clue != nil && *clue != "" {
		session.EvidenceCollected = append(session.EvidenceCollected, *clue)
	}

	e.logger.Debug("session started",
		"turn_id", turnID,
		"scenario", sc.ID,
		"identity", identity,
		"danger", session.DangerMeter,
		"evidence", len(session.EvidenceCollected))
	e.emit(turnID, sc, "start", identity, session)

	return &Turn{
		Status:    "success",
		Operation: sc.Operation,
		Chapter:   sc.Chapter(session.Phase),
		Timestamp: e.clk.Now().Format(time.RFC3339),
		Narrative: narrative,
		GameState: session,
	}, nil
}

// ContinueTurn advances an existing session with the player's decision.
func (e *Engine) ContinueTurn(ctx context.Context, sc *scenario.Scenario, identity, decision string, session *Session) (*Turn, error) {
	turnID := uuid.NewString()
	phase := sc.PhaseInfo(session.Phase)
	prompt := continuePrompt(buildContext(sc, phase, session.EvidenceCollected), phase.Atmosphere, decision)

	compressed := Compress(session.History, e.cfg.MaxRecentPairs, e.cfg.MaxDecisions)
	messages := make([]llm.Message, 0, len(compressed)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sc.SystemPrompt})
	messages = append(messages, compressed...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	reply, err := e.complete(ctx, sc, "continue", turnID, messages)
	if err != nil {
		return nil, err
	}

	narrative := Normalize(reply, sc)
	if narrative.Phase == "" {
		narrative.Phase = session.Phase
	}

	if session.EvidenceCollected == nil {
		session.EvidenceCollected = []string{}
	}
	if clue := narrative.EvidenceDiscovered; clue != nil && *clue != "" {
		session.EvidenceCollected = append(session.EvidenceCollected, *clue)
	}

	meter, ok := dangerMeter[narrative.DangerLevel]
	if !ok {
		meter = defaultDanger
	}
	session.DangerMeter = meter

	if sc.KnownPhase(narrative.Phase) {
		session.Phase = narrative.Phase
	} else {
		e.logger.Debug("holding phase, model named an unknown one",
			"turn_id", turnID,
			"scenario", sc.ID,
			"stored", session.Phase,
			"returned", narrative.Phase)
	}

	session.History = append(session.History,
		llm.Message{Role: llm.RoleUser, Content: prompt},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)

	e.logger.Debug("turn complete",
		"turn_id", turnID,
		"scenario", sc.ID,
		"identity", identity,
		"phase", session.Phase,
		"danger", session.DangerMeter,
		"evidence", len(session.EvidenceCollected))
	e.emit(turnID, sc, "continue", identity, session)

	return &Turn{
		Status:       "success",
		Operation:    sc.Operation,
		Chapter:      sc.Chapter(session.Phase),
		Timestamp:    e.clk.Now().Format(time.RFC3339),
		PlayerAction: decision,
		Narrative:    narrative,
		GameState:    session,
		Progress:     fmt.Sprintf("%d evidências", len(session.EvidenceCollected)),
	}, nil
}

// complete performs the upstream call with latency and outcome metrics.
func (e *Engine) complete(ctx context.Context, sc *scenario.Scenario, action, turnID string, messages []llm.Message) (string, error) {
	start := e.clk.Now()
	reply, err := e.client.Complete(ctx, messages, 0)
	metrics.UpstreamLatency.Observe(e.clk.Now().Sub(start).Seconds())

	if err != nil {
		metrics.Turns.WithLabelValues(sc.ID, action, "error").Inc()
		e.logger.Warn("upstream turn failed",
			"turn_id", turnID,
			"scenario", sc.ID,
			"action", action,
			"error", err)
		return "", err
	}
	metrics.Turns.WithLabelValues(sc.ID, action, "success").Inc()
	return reply, nil
}

func (e *Engine) emit(turnID string, sc *scenario.Scenario, action, identity string, session *Session) {
	e.publisher.PublishTurn(events.TurnEvent{
		TurnID:        turnID,
		Scenario:      sc.ID,
		Action:        action,
		Identity:      identity,
		Phase:         session.Phase,
		DangerMeter:   session.DangerMeter,
		EvidenceCount: len(session.EvidenceCollected),
		Timestamp:     e.clk.Now(),
	})
}

// buildContext renders the compact state line the model sees each turn.
func buildContext(sc *scenario.Scenario, phase scenario.Phase, evidence []string) string {
	parts := []string{
		fmt.Sprintf("Fase %d/%d: %s", phase.Number, len(sc.PhaseOrder), phase.Title),
		"Pistas: " + strings.Join(phase.KeyClues, ", "),
	}

	start := len(evidence) - 3
	if start < 0 {
		start = 0
	}
	var recent []string
	for _, ev := range evidence[start:] {
		if ev != "" {
			recent = append(recent, ev)
		}
	}
	if len(recent) > 0 {
		parts = append(parts, "Evidências: "+strings.Join(recent, ", "))
	}
	return strings.Join(parts, " | ")
}

// continuePrompt builds the user turn. The decision sits behind the
// "Decisão:" marker so compression can recover it later.
func continuePrompt(contextLine, atmosphere, decision string) string {
	return fmt.Sprintf(`CONTINUAR

%s
Atmosfera: %s

Decisão: "%s"

Narre consequências. Revele NOVA pista se apropriado. 3 opções.
JSON apenas.`, contextLine, atmosphere, decision)
}
