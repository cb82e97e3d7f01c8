// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

/*
Package pacer implements drift-corrected fixed-rate scheduling.

Deadlines advance from a fixed anchor by one interval per tick, so slow ticks
do not accumulate drift. When the loop falls behind, the anchor is reset to
"now" instead of firing the missed ticks back to back.
*/
package pacer

import (
	"context"
	"time"
)

// Clock abstracts time for the pacing loop.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Pacer runs a tick function at a fixed rate.
type Pacer struct {
	interval time.Duration
	clock    Clock
	onLag    func(behind time.Duration)
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(p *Pacer) { p.clock = c }
}

// WithLagHandler registers a callback invoked every time the schedule is reset.
// behind is how late the loop was against the missed deadline.
func WithLagHandler(f func(behind time.Duration)) Option {
	return func(p *Pacer) { p.onLag = f }
}

// New returns a Pacer firing every interval. interval must be positive.
func New(interval time.Duration, options ...Option) *Pacer {
	p := &Pacer{interval: interval, clock: SystemClock}
	for _, o := range options {
		o(p)
	}
	return p
}

// Interval returns the configured period.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Run calls tick until ctx is cancelled. The first tick fires immediately.
// Cancellation is the normal way out, so Run returns nil in that case.
func (p *Pacer) Run(ctx context.Context, tick func()) error {
	next := p.clock.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}

		tick()

		next = next.Add(p.interval)
		remaining := next.Sub(p.clock.Now())
		if remaining > 0 {
			if err := p.clock.Sleep(ctx, remaining); err != nil {
				return nil
			}
			continue
		}

		// Lagging: drop the missed slot and restart the schedule from now.
		if p.onLag != nil {
			p.onLag(-remaining)
		}
		next = p.clock.Now()
	}
}
