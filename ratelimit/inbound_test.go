package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laredonunes/ecoquest-api/clock"
	"github.com/laredonunes/ecoquest-api/ratelimit"
)

func newInbound(cfg ratelimit.InboundConfig) (*ratelimit.Inbound, *clock.FakeClock) {
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	lim := ratelimit.NewInbound(cfg, ratelimit.WithInboundClock(fake))
	return lim, fake
}

func TestInboundAllowsPacedRequests(t *testing.T) {
	lim, fake := newInbound(ratelimit.DefaultInboundConfig())

	// Requests spaced past the cooldown and under the window budget
	// are always admitted.
	for i := 0; i < 10; i++ {
		d := lim.Check("player-1")
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
		assert.Equal(t, ratelimit.ReasonOK, d.Reason)
		fake.Advance(3 * time.Second)
	}
}

func TestInboundCooldownDenies(t *testing.T) {
	lim, fake := newInbound(ratelimit.DefaultInboundConfig())

	require.True(t, lim.Check("player-1").Allowed)

	fake.Advance(time.Second)
	d := lim.Check("player-1")
	require.False(t, d.Allowed)
	assert.Equal(t, ratelimit.ReasonCooldown, d.Reason)
	assert.Equal(t, 2*time.Second, d.RetryAfter)

	// The denial must not have reset the cooldown anchor.
	fake.Advance(2 * time.Second)
	assert.True(t, lim.Check("player-1").Allowed)
}

func TestInboundWindowDenies(t *testing.T) {
	cfg := ratelimit.DefaultInboundConfig()
	cfg.Cooldown = 0
	lim, fake := newInbound(cfg)

	for i := 0; i < cfg.MaxRequests; i++ {
		require.True(t, lim.Check("player-1").Allowed)
	}

	d := lim.Check("player-1")
	require.False(t, d.Allowed)
	assert.Equal(t, ratelimit.ReasonWindow, d.Reason)
	assert.Equal(t, cfg.Window, d.RetryAfter)

	// Halfway through the window the hint shrinks accordingly.
	fake.Advance(30 * time.Second)
	d = lim.Check("player-1")
	require.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// Once the oldest request leaves the window, admission resumes.
	fake.Advance(30 * time.Second)
	assert.True(t, lim.Check("player-1").Allowed)
}

func TestInboundDenialsRegisterNothing(t *testing.T) {
	cfg := ratelimit.DefaultInboundConfig()
	cfg.MaxRequests = 2
	lim, fake := newInbound(cfg)

	require.True(t, lim.Check("player-1").Allowed) // t=0

	fake.Advance(time.Second)
	require.False(t, lim.Check("player-1").Allowed) // cooldown denial, t=1

	fake.Advance(2 * time.Second)
	require.True(t, lim.Check("player-1").Allowed) // t=3

	fake.Advance(3 * time.Second)
	d := lim.Check("player-1") // t=6, window holds t=0 and t=3
	require.False(t, d.Allowed)
	assert.Equal(t, ratelimit.ReasonWindow, d.Reason)
	// retry_after counts from the oldest admitted request: the t=1
	// denial left no timestamp behind.
	assert.Equal(t, 54*time.Second, d.RetryAfter)
}

func TestInboundIdentitiesAreIndependent(t *testing.T) {
	cfg := ratelimit.DefaultInboundConfig()
	cfg.Cooldown = 0
	lim, _ := newInbound(cfg)

	for i := 0; i < cfg.MaxRequests; i++ {
		require.True(t, lim.Check("player-1").Allowed)
	}
	require.False(t, lim.Check("player-1").Allowed)

	assert.True(t, lim.Check("player-2").Allowed)
}

func TestInboundConcurrentChecksNeverOverAdmit(t *testing.T) {
	cfg := ratelimit.DefaultInboundConfig()
	cfg.Cooldown = 0
	lim, _ := newInbound(cfg)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lim.Check("player-1").Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, cfg.MaxRequests, admitted)
}

func TestInboundEvictsIdleIdentities(t *testing.T) {
	lim, fake := newInbound(ratelimit.DefaultInboundConfig())

	require.True(t, lim.Check("player-1").Allowed)
	require.Equal(t, 1, lim.Size())

	fake.Advance(2 * time.Hour)

	// The next check sweeps opportunistically; the idle identity is
	// gone, the active one remains.
	require.True(t, lim.Check("player-2").Allowed)
	assert.Equal(t, 1, lim.Size())
}
