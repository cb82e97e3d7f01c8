// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geopose

import (
	"math/rand/v2"
	"time"
)

// Base position of the synthetic reading and the jitter applied around it.
const (
	BaseLon = 21.7300
	BaseLat = 38.2466
	BaseAlt = 50.0

	PositionJitter = 0.0001 // degrees, applied to lon and lat
	AltitudeJitter = 1.0    // meters
)

// Generator produces synthetic payloads. It owns the sequence counter, so a
// single Generator must only be driven from one goroutine.
type Generator struct {
	cnt uint64
	rnd *rand.Rand
	now func() time.Time
}

// NewGenerator creates a synthetic source seeded from the wall clock.
func NewGenerator() *Generator {
	seed := uint64(time.Now().UnixNano())
	return newGenerator(rand.New(rand.NewPCG(seed, seed>>1|1)), time.Now)
}

func newGenerator(rnd *rand.Rand, now func() time.Time) *Generator {
	return &Generator{rnd: rnd, now: now}
}

// Next increments the counter, stamps the payload and fills a random body.
func (g *Generator) Next() (Payload, error) {
	g.cnt++

	return Payload{
		Cnt: g.cnt,
		Ts:  g.now().UnixMilli(),
		Body: Body{
			Lon:   BaseLon + g.uniform(-PositionJitter, PositionJitter),
			Lat:   BaseLat + g.uniform(-PositionJitter, PositionJitter),
			Alt:   BaseAlt + g.uniform(-AltitudeJitter, AltitudeJitter),
			Yaw:   g.uniform(-180, 180),
			Pitch: g.uniform(-90, 90),
			Roll:  g.uniform(-180, 180),
		},
	}, nil
}

// Count returns the sequence number of the last payload, 0 before the first.
func (g *Generator) Count() uint64 {
	return g.cnt
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}
