// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

/*
Package timesync implements both ends of a minimal NTP-style exchange over
MQTT.

The client publishes {"t1":<client send ms>}; the responder answers with
{"t1":<echo>,"t2":<server receive ms>,"t3":<server send ms>}; the client
stamps t4 on receipt and derives clock offset and round-trip delay.
*/
package timesync

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidRequest is returned for payloads that are not a usable sync request.
var ErrInvalidRequest = errors.New("invalid sync request")

// Request is the inbound sync request. T1 is opaque and echoed verbatim.
type Request struct {
	T1 json.Number `json:"t1"`
}

// Response answers a Request.
type Response struct {
	T1 json.Number `json:"t1"`
	T2 int64       `json:"t2"` // server receive, Unix ms
	T3 int64       `json:"t3"` // server send, Unix ms
}

// ParseRequest decodes payload and checks that t1 is present and a JSON number.
// Quoted numbers, booleans and null are rejected.
func ParseRequest(payload []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	raw, ok := fields["t1"]
	if !ok {
		return Request{}, fmt.Errorf("%w: missing t1", ErrInvalidRequest)
	}
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return Request{}, fmt.Errorf("%w: t1 is not a number: %s", ErrInvalidRequest, raw)
	}

	var req Request
	if err := json.Unmarshal(raw, &req.T1); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

// Sample is one complete exchange as seen by the client, all in Unix ms.
type Sample struct {
	T1 int64 // client send
	T2 int64 // server receive
	T3 int64 // server send
	T4 int64 // client receive
}

// Offset is the estimated server clock minus client clock, in ms.
func (s Sample) Offset() float64 {
	return float64((s.T2-s.T1)+(s.T3-s.T4)) / 2
}

// Delay is the round trip minus server processing time, in ms.
func (s Sample) Delay() int64 {
	return (s.T4 - s.T1) - (s.T3 - s.T2)
}
