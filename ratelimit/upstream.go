package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/laredonunes/ecoquest-api/clock"
)

// UpstreamConfig bounds the global rate of outbound completion calls.
// There is one shared budget for the whole process: the upstream API
// key, not the player, is the contended resource.
type UpstreamConfig struct {
	// MaxCalls is the number of calls permitted within Window.
	MaxCalls int `yaml:"max_calls"`

	// Window is the trailing interval the call count applies to.
	Window time.Duration `yaml:"window"`

	// SafetyMargin is added to every computed wait so a released slot
	// is genuinely free when the waiter re-checks.
	SafetyMargin time.Duration `yaml:"safety_margin"`
}

// DefaultUpstreamConfig returns the pacing the API ships with.
func DefaultUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		MaxCalls:     25,
		Window:       60 * time.Second,
		SafetyMargin: 100 * time.Millisecond,
	}
}

// Upstream paces outbound completion calls so the process stays under
// the provider's request budget. This is the preventive half of the
// rate-limit handling; the retry-on-429 path in the client remains
// necessary because concurrent processes can still overrun the shared
// budget.
type Upstream struct {
	cfg    UpstreamConfig
	clk    clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	calls []time.Time
}

// UpstreamOption configures an Upstream limiter.
type UpstreamOption func(*Upstream)

// WithUpstreamClock sets the clock. Tests inject clock.Fake.
func WithUpstreamClock(clk clock.Clock) UpstreamOption {
	return func(l *Upstream) {
		l.clk = clk
	}
}

// WithUpstreamLogger sets the logger.
func WithUpstreamLogger(logger *slog.Logger) UpstreamOption {
	return func(l *Upstream) {
		l.logger = logger
	}
}

// NewUpstream creates the global outbound pacing gate.
func NewUpstream(cfg UpstreamConfig, opts ...UpstreamOption) *Upstream {
	l := &Upstream{
		cfg:    cfg,
		clk:    clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the call budget has room, then registers the call
// and returns. When the window is full it sleeps until the oldest
// entry expires plus the safety margin, then re-checks: another waiter
// may have taken the freed slot first. Registration happens only after
// the wait resolves, inside the same critical section as the capacity
// check that admitted it.
//
// Wait returns early with ctx.Err() if the context is cancelled.
func (l *Upstream) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.clk.Now()
		l.calls = pruneBefore(l.calls, now.Add(-l.cfg.Window))
		if len(l.calls) < l.cfg.MaxCalls {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}
		wait := l.calls[0].Add(l.cfg.Window).Sub(now) + l.cfg.SafetyMargin
		l.mu.Unlock()

		l.logger.Debug("upstream window full, pacing",
			"wait", wait,
			"max_calls", l.cfg.MaxCalls)

		select {
		case <-l.clk.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Used reports how many calls currently count against the window.
func (l *Upstream) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = pruneBefore(l.calls, l.clk.Now().Add(-l.cfg.Window))
	return len(l.calls)
}
