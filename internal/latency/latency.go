// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package latency tracks end-to-end telemetry latency (arrival minus the
// payload's own timestamp) and gaps in the sequence counter.
package latency

import (
	"math"
	"sync"

	"github.com/eclesh/welford"
)

// Summary is a snapshot of a Tracker.
type Summary struct {
	Count    int64   `json:"count"`
	LastMs   float64 `json:"last_ms"`
	MeanMs   float64 `json:"mean_ms"`
	StddevMs float64 `json:"stddev_ms"`
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	Missed   uint64  `json:"missed"`   // counter values never seen
	Restarts int64   `json:"restarts"` // counter went backwards
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	stats   *welford.Stats
	count   int64
	last    float64
	min     float64
	max     float64
	lastCnt uint64
	missed  uint64
	restart int64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		stats: welford.New(),
		min:   math.Inf(1),
		max:   math.Inf(-1),
	}
}

// Observe records one message with sequence cnt, published at sentMs and received at arrivedMs.
func (t *Tracker) Observe(cnt uint64, sentMs, arrivedMs int64) float64 {
	l := float64(arrivedMs - sentMs)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Add(l)
	t.count++
	t.last = l
	t.min = math.Min(t.min, l)
	t.max = math.Max(t.max, l)

	switch {
	case t.lastCnt == 0:
	case cnt > t.lastCnt+1:
		t.missed += cnt - t.lastCnt - 1
	case cnt <= t.lastCnt:
		t.restart++
	}
	t.lastCnt = cnt
	return l
}

// Summary returns the current statistics. Min and max are zero before the first sample.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return Summary{}
	}
	s := Summary{
		Count:    t.count,
		LastMs:   t.last,
		MeanMs:   t.stats.Mean(),
		MinMs:    t.min,
		MaxMs:    t.max,
		Missed:   t.missed,
		Restarts: t.restart,
	}
	if t.count > 1 {
		s.StddevMs = t.stats.Stddev()
	}
	return s
}
