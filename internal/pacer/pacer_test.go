// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pacer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const interval = 100 * time.Millisecond

// fakeClock only moves when the loop sleeps or a tick advances it.
type fakeClock struct {
	now    time.Time
	events []string
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.events = append(c.events, "sleep")
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// runTicks drives the pacer for n ticks; duration(i) is how long tick i takes.
func runTicks(t *testing.T, c *fakeClock, n int, duration func(i int) time.Duration, options ...Option) []time.Time {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts []time.Time
	p := New(interval, append([]Option{WithClock(c)}, options...)...)
	err := p.Run(ctx, func() {
		c.events = append(c.events, "tick")
		starts = append(starts, c.now)
		c.now = c.now.Add(duration(len(starts) - 1))
		if len(starts) == n {
			cancel()
		}
	})
	require.NoError(t, err)
	require.Len(t, starts, n)
	return starts
}

func TestRunFixedRateWithoutDrift(t *testing.T) {
	c := newFakeClock()
	origin := c.now
	// uneven tick costs, always below the interval
	costs := []time.Duration{0, 10 * time.Millisecond, 95 * time.Millisecond, 42 * time.Millisecond}

	starts := runTicks(t, c, 1000, func(i int) time.Duration { return costs[i%len(costs)] })

	for i, s := range starts {
		require.Equal(t, origin.Add(time.Duration(i)*interval), s, "tick %d drifted", i)
	}
}

func TestRunMeanIntervalConverges(t *testing.T) {
	c := newFakeClock()
	starts := runTicks(t, c, 501, func(i int) time.Duration { return time.Duration(i%7) * time.Millisecond })

	total := starts[len(starts)-1].Sub(starts[0])
	mean := total / time.Duration(len(starts)-1)
	require.Equal(t, interval, mean)
}

func TestRunSlowTickDoesNotCatchUp(t *testing.T) {
	c := newFakeClock()
	var lags []time.Duration

	// first tick takes 3.5 intervals, the rest are instant
	starts := runTicks(t, c, 5, func(i int) time.Duration {
		if i == 0 {
			return 350 * time.Millisecond
		}
		return 0
	}, WithLagHandler(func(behind time.Duration) { lags = append(lags, behind) }))

	require.Equal(t, []time.Duration{250 * time.Millisecond}, lags)

	// the slot after the reset fires at once, then the normal cadence resumes
	require.Equal(t, []string{"tick", "tick", "sleep", "tick", "sleep", "tick", "sleep", "tick"}, c.events)
	for _, d := range c.sleeps {
		require.Equal(t, interval, d)
	}
	require.Equal(t, 350*time.Millisecond, starts[1].Sub(starts[0]))
	require.Equal(t, interval, starts[2].Sub(starts[1]))
}

func TestRunSustainedOverloadStaysBounded(t *testing.T) {
	c := newFakeClock()
	var lags []time.Duration

	starts := runTicks(t, c, 200, func(int) time.Duration { return 150 * time.Millisecond },
		WithLagHandler(func(behind time.Duration) { lags = append(lags, behind) }))

	require.Len(t, lags, 200)
	for _, l := range lags {
		// a catch-up scheduler would fall further behind on every tick
		require.Equal(t, 50*time.Millisecond, l)
	}
	for i := 1; i < len(starts); i++ {
		require.Equal(t, 150*time.Millisecond, starts[i].Sub(starts[i-1]))
	}
	require.Empty(t, c.sleeps)
}

func TestRunExactDeadlineCountsAsLag(t *testing.T) {
	c := newFakeClock()
	lagged := 0
	runTicks(t, c, 3, func(int) time.Duration { return interval },
		WithLagHandler(func(time.Duration) { lagged++ }))
	require.Equal(t, 3, lagged)
	require.Empty(t, c.sleeps)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ticks := 0
	err := New(interval).Run(ctx, func() { ticks++ })
	require.NoError(t, err)
	require.Zero(t, ticks)
}

func TestRunCancelWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ticks := 0
	done := make(chan error, 1)

	go func() {
		done <- New(time.Hour).Run(ctx, func() { ticks++ })
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Equal(t, 1, ticks)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSystemClockSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, SystemClock.Sleep(context.Background(), 5*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, SystemClock.Sleep(ctx, time.Hour), context.Canceled)
}
