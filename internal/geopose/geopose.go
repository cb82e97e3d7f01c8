// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geopose

// Body is a single position plus orientation reading.
type Body struct {
	Lon   float64 `json:"lon"`   // decimal degrees
	Lat   float64 `json:"lat"`   // decimal degrees
	Alt   float64 `json:"alt"`   // meters
	Yaw   float64 `json:"yaw"`   // degrees, [-180, 180]
	Pitch float64 `json:"pitch"` // degrees, [-90, 90]
	Roll  float64 `json:"roll"`  // degrees, [-180, 180]
}

// Payload is the telemetry message published on the geopose topic.
type Payload struct {
	Cnt  uint64 `json:"cnt"` // starts at 1, +1 per publish
	Ts   int64  `json:"ts"`  // Unix milliseconds at publish time
	Body Body   `json:"body"`
}

// Source is anything that can provide geopose payloads over time.
type Source interface {
	Next() (Payload, error)
}
