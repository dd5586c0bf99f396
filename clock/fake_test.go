package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laredonunes/ecoquest-api/clock"
)

func TestFakeNowAdvances(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := clock.Fake(start)

	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	start := time.Unix(1000, 0)
	c := clock.Fake(start)

	ch := c.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("fired before any advance")
	default:
	}

	c.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before the deadline")
	default:
	}

	c.Advance(1 * time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(5*time.Second), got)
	case <-time.After(time.Second):
		t.Fatal("never fired after advancing past the deadline")
	}
}

func TestFakeAfterZeroFiresImmediately(t *testing.T) {
	c := clock.Fake(time.Unix(0, 0))

	select {
	case <-c.After(0):
	case <-time.After(time.Second):
		t.Fatal("After(0) did not fire immediately")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFakeSleepBlocksUntilAdvance(t *testing.T) {
	c := clock.Fake(time.Unix(0, 0))

	done := make(chan struct{})
	go func() {
		c.Sleep(10 * time.Second)
		close(done)
	}()

	c.WaitForWaiters(1)
	select {
	case <-done:
		t.Fatal("Sleep returned before the clock advanced")
	default:
	}

	c.Advance(10 * time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep never returned")
	}
}

func TestFakeAdvanceFiresOnlyDueWaiters(t *testing.T) {
	c := clock.Fake(time.Unix(0, 0))

	early := c.After(2 * time.Second)
	late := c.After(20 * time.Second)
	require.Equal(t, 2, c.PendingCount())

	c.Advance(5 * time.Second)

	select {
	case <-early:
	case <-time.After(time.Second):
		t.Fatal("due waiter never fired")
	}
	select {
	case <-late:
		t.Fatal("waiter fired ahead of its deadline")
	default:
	}
	assert.Equal(t, 1, c.PendingCount())
}
