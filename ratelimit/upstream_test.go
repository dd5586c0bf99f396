package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laredonunes/ecoquest-api/clock"
	"github.com/laredonunes/ecoquest-api/ratelimit"
)

func newUpstream(cfg ratelimit.UpstreamConfig) (*ratelimit.Upstream, *clock.FakeClock) {
	fake := clock.Fake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	lim := ratelimit.NewUpstream(cfg, ratelimit.WithUpstreamClock(fake))
	return lim, fake
}

func TestUpstreamAdmitsBurstUpToBudget(t *testing.T) {
	lim, _ := newUpstream(ratelimit.DefaultUpstreamConfig())

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, lim.Wait(ctx), "call %d should pass without waiting", i+1)
	}
	assert.Equal(t, 25, lim.Used())
}

func TestUpstreamBlocksWhenFullAndReleasesAfterWindow(t *testing.T) {
	lim, fake := newUpstream(ratelimit.DefaultUpstreamConfig())

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, lim.Wait(ctx))
	}

	released := make(chan error, 1)
	go func() {
		released <- lim.Wait(ctx)
	}()

	fake.WaitForWaiters(1)
	select {
	case <-released:
		t.Fatal("26th call passed a full window")
	default:
	}

	// The waiter sleeps until the oldest entry expires plus the
	// safety margin; advancing past that releases it.
	fake.Advance(60*time.Second + 100*time.Millisecond)
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter never released after the window slid")
	}
	assert.Equal(t, 1, lim.Used())
}

func TestUpstreamWaitersReCheckAfterWaking(t *testing.T) {
	cfg := ratelimit.UpstreamConfig{
		MaxCalls:     1,
		Window:       60 * time.Second,
		SafetyMargin: 100 * time.Millisecond,
	}
	lim, fake := newUpstream(cfg)

	ctx := context.Background()
	require.NoError(t, lim.Wait(ctx))

	var done atomic.Int32
	for i := 0; i < 2; i++ {
		go func() {
			if lim.Wait(ctx) == nil {
				done.Add(1)
			}
		}()
	}
	fake.WaitForWaiters(2)

	// One freed slot wakes both waiters, but only one may register;
	// the other re-checks and parks again.
	fake.Advance(60*time.Second + 100*time.Millisecond)
	fake.WaitForWaiters(1)
	require.Eventually(t, func() bool { return done.Load() == 1 },
		time.Second, 5*time.Millisecond)

	fake.Advance(60*time.Second + 200*time.Millisecond)
	require.Eventually(t, func() bool { return done.Load() == 2 },
		time.Second, 5*time.Millisecond)
}

func TestUpstreamWaitHonorsCancellation(t *testing.T) {
	lim, fake := newUpstream(ratelimit.DefaultUpstreamConfig())

	for i := 0; i < 25; i++ {
		require.NoError(t, lim.Wait(context.Background()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() {
		released <- lim.Wait(ctx)
	}()

	fake.WaitForWaiters(1)
	cancel()

	select {
	case err := <-released:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter never returned")
	}

	// The cancelled waiter must not have registered a call.
	assert.Equal(t, 25, lim.Used())
}
