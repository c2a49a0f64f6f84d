// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/dimensiongate/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_TimerFiresAtDeadline(t *testing.T) {
	c := clock.Fake(epoch)
	timer := c.NewTimer(time.Second)

	c.Advance(999 * time.Millisecond)
	select {
	case <-timer.C:
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(time.Millisecond)
	select {
	case got := <-timer.C:
		assert.Equal(t, epoch.Add(time.Second), got)
	default:
		t.Fatal("timer did not fire")
	}
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_StoppedTimerNeverFires(t *testing.T) {
	c := clock.Fake(epoch)
	timer := c.NewTimer(time.Second)

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	c.Advance(time.Hour)
	select {
	case <-timer.C:
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFake_ZeroTimerIsReady(t *testing.T) {
	c := clock.Fake(epoch)
	timer := c.NewTimer(0)

	select {
	case <-timer.C:
	default:
		t.Fatal("zero timer should be ready immediately")
	}
}

func TestFake_TickerReschedules(t *testing.T) {
	c := clock.Fake(epoch)
	ticker := c.NewTicker(time.Minute)
	defer ticker.Stop()

	for i := 1; i <= 3; i++ {
		c.Advance(time.Minute)
		select {
		case got := <-ticker.C:
			assert.Equal(t, epoch.Add(time.Duration(i)*time.Minute), got)
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
	assert.Equal(t, 1, c.PendingCount())

	ticker.Stop()
	assert.Equal(t, 0, c.PendingCount())
}

func TestFake_TickerPanicsOnNonPositive(t *testing.T) {
	c := clock.Fake(epoch)
	require.Panics(t, func() { c.NewTicker(0) })
}

func TestFake_WaitForTimers(t *testing.T) {
	c := clock.Fake(epoch)
	done := make(chan struct{})

	go func() {
		timer := c.NewTimer(time.Second)
		<-timer.C
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine did not observe timer")
	}
}

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := clock.Real().Now()
	assert.False(t, got.Before(before))
}
