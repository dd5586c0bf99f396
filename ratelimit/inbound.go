// Package ratelimit implements the two admission controls of the API:
// a per-player sliding window with a mandatory cooldown on inbound
// turns, and a global pacing gate on outbound completion calls.
//
// Both limiters take an injected clock so tests can drive them without
// sleeping real time.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/laredonunes/ecoquest-api/clock"
)

// sweepInterval bounds how often Check scans for idle identities.
const sweepInterval = time.Minute

// Reason identifies why an inbound request was denied. The values are
// the wire reason codes.
type Reason string

const (
	ReasonOK       Reason = "OK"
	ReasonCooldown Reason = "COOLDOWN_ACTIVE"
	ReasonWindow   Reason = "RATE_LIMIT_EXCEEDED"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Reason     Reason
}

// InboundConfig bounds how often a single player identity may submit
// turns.
type InboundConfig struct {
	// MaxRequests is the number of requests admitted per identity
	// within Window.
	MaxRequests int `yaml:"max_requests"`

	// Window is the trailing interval the request count applies to.
	Window time.Duration `yaml:"window"`

	// Cooldown is the minimum gap between two admitted requests from
	// the same identity. Zero disables the cooldown.
	Cooldown time.Duration `yaml:"cooldown"`

	// IdleEviction is how long an identity may sit idle before its
	// window is garbage-collected.
	IdleEviction time.Duration `yaml:"idle_eviction"`
}

// DefaultInboundConfig returns the limits the API ships with.
func DefaultInboundConfig() InboundConfig {
	return InboundConfig{
		MaxRequests:  20,
		Window:       60 * time.Second,
		Cooldown:     3 * time.Second,
		IdleEviction: time.Hour,
	}
}

// Inbound admits or denies player turns. Each identity gets an
// independent sliding window and cooldown; the check and the
// registration of an admitted request happen in one critical section,
// so two concurrent requests can never both consume the last slot.
//
// Denied requests register nothing: they leave the window and the
// cooldown anchor untouched.
type Inbound struct {
	cfg    InboundConfig
	clk    clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	players   map[string]*playerWindow
	lastSweep time.Time
}

// playerWindow tracks one identity. lastAdmitted anchors the cooldown
// and doubles as the idle-eviction mark.
type playerWindow struct {
	stamps       []time.Time
	lastAdmitted time.Time
}

// InboundOption configures an Inbound limiter.
type InboundOption func(*Inbound)

// WithInboundClock sets the clock. Tests inject clock.Fake.
func WithInboundClock(clk clock.Clock) InboundOption {
	return func(l *Inbound) {
		l.clk = clk
	}
}

// WithInboundLogger sets the logger.
func WithInboundLogger(logger *slog.Logger) InboundOption {
	return func(l *Inbound) {
		l.logger = logger
	}
}

// NewInbound creates an inbound limiter with the given limits.
func NewInbound(cfg InboundConfig, opts ...InboundOption) *Inbound {
	l := &Inbound{
		cfg:     cfg,
		clk:     clock.Real(),
		logger:  slog.Default(),
		players: make(map[string]*playerWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check admits or denies one request from identity. On admission the
// request is registered immediately; on denial RetryAfter tells the
// caller the minimum wait before a retry can succeed.
func (l *Inbound) Check(identity string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clk.Now()
	l.sweepLocked(now)

	p := l.players[identity]
	if p == nil {
		p = &playerWindow{}
		l.players[identity] = p
	}

	// Cooldown first: a fixed minimum gap since the last admitted
	// request, independent of the window count.
	if !p.lastAdmitted.IsZero() {
		if elapsed := now.Sub(p.lastAdmitted); elapsed < l.cfg.Cooldown {
			retry := l.cfg.Cooldown - elapsed
			l.logger.Debug("turn denied by cooldown",
				"identity", identity,
				"retry_after", retry)
			return Decision{RetryAfter: retry, Reason: ReasonCooldown}
		}
	}

	p.stamps = pruneBefore(p.stamps, now.Add(-l.cfg.Window))
	if len(p.stamps) >= l.cfg.MaxRequests {
		retry := l.cfg.Window - now.Sub(p.stamps[0])
		l.logger.Debug("turn denied by window",
			"identity", identity,
			"requests", len(p.stamps),
			"retry_after", retry)
		return Decision{RetryAfter: retry, Reason: ReasonWindow}
	}

	p.stamps = append(p.stamps, now)
	p.lastAdmitted = now
	return Decision{Allowed: true, Reason: ReasonOK}
}

// Size reports how many identities are currently tracked.
func (l *Inbound) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.players)
}

// sweepLocked evicts identities idle beyond the retention threshold.
// It runs inline on Check at most once per sweepInterval; there is no
// dedicated timer.
func (l *Inbound) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now

	for identity, p := range l.players {
		if now.Sub(p.lastAdmitted) >= l.cfg.IdleEviction {
			delete(l.players, identity)
		}
	}
}

// pruneBefore drops timestamps at or before cutoff, preserving order.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
