// Package events publishes turn telemetry to NATS. Publishing is
// fire-and-forget: a turn never fails because telemetry did.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "ecoquest.turns"

// TurnEvent is the message published after every successful turn, on
// subject <prefix>.<scenario> (ecoquest.turns.<scenario> by default).
type TurnEvent struct {
	TurnID        string    `json:"turn_id"`
	Scenario      string    `json:"scenario"`
	Action        string    `json:"action"`
	Identity      string    `json:"identity"`
	Phase         string    `json:"phase"`
	DangerMeter   int       `json:"danger_meter"`
	EvidenceCount int       `json:"evidence_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits TurnEvents over a NATS connection. A nil Publisher
// is valid and publishes nothing, so wiring stays optional.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// Option adjusts a Publisher.
type Option func(*Publisher)

// WithSubjectPrefix overrides the subject prefix turn events publish
// under.
func WithSubjectPrefix(prefix string) Option {
	return func(p *Publisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// Connect dials NATS and returns a ready Publisher.
func Connect(url string, logger *slog.Logger, opts ...Option) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("ecoquest-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}
	p := &Publisher{conn: conn, prefix: defaultSubjectPrefix, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PublishTurn emits one turn event.
func (p *Publisher) PublishTurn(ev TurnEvent) {
	if p == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("Failed to encode turn event", "turn_id", ev.TurnID, "error", err)
		return
	}
	subject := p.prefix + "." + ev.Scenario
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish turn event", "subject", subject, "error", err)
	}
}

// Close drains the connection, flushing buffered events.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("Failed to drain nats connection", "error", err)
	}
}
