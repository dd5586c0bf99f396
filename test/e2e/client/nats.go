package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSClient captures turn events published by the API for validation.
type NATSClient struct {
	nc     *nats.Conn
	closed bool
	mu     sync.Mutex
}

// NewNATSClient connects to the NATS server the API publishes turn
// events to.
func NewNATSClient(ctx context.Context, natsURL string) (*NATSClient, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled before connect: %w", err)
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("ecoquest-e2e"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return &NATSClient{nc: nc}, nil
}

// Close closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.nc.Close()
}

// IsConnected returns true if the client is connected to NATS.
func (c *NATSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.nc.IsConnected()
}

// TurnEvent mirrors the event the API publishes after every successful
// turn on <prefix>.<scenario>.
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

// TurnCapture collects turn events from a subject wildcard.
type TurnCapture struct {
	sub    *nats.Subscription
	events []TurnEvent
	mu     sync.Mutex
}

// CaptureTurnEvents starts capturing turn events under the given subject
// prefix. The caller MUST call Stop() when done to prevent goroutine leaks.
func (c *NATSClient) CaptureTurnEvents(subjectPrefix string) (*TurnCapture, error) {
	capture := &TurnCapture{
		events: make([]TurnEvent, 0),
	}

	subject := subjectPrefix + ".>"
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev TurnEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		capture.mu.Lock()
		defer capture.mu.Unlock()
		capture.events = append(capture.events, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	capture.sub = sub
	return capture, nil
}

// Events returns a copy of all captured turn events.
func (tc *TurnCapture) Events() []TurnEvent {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	result := make([]TurnEvent, len(tc.events))
	copy(result, tc.events)
	return result
}

// Count returns the number of captured turn events.
func (tc *TurnCapture) Count() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.events)
}

// WaitForCount waits until the specified number of turn events are captured.
func (tc *TurnCapture) WaitForCount(ctx context.Context, count int) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if tc.Count() >= count {
				return nil
			}
		}
	}
}

// Stop stops capturing turn events.
func (tc *TurnCapture) Stop() error {
	if tc.sub != nil {
		return tc.sub.Unsubscribe()
	}
	return nil
}
