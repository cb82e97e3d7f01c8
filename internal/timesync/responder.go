// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package timesync

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
)

// Publisher is the outbound half of the transport.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Stats is what the responder reports.
type Stats interface {
	IncSyncRequests()
	IncSyncResponses()
	IncInvalidRequests()
	IncPublishErrors()
}

// Responder answers sync requests. OnMessage is safe to call from any goroutine;
// it shares nothing with the telemetry loop.
type Responder struct {
	RequestTopic  string
	ResponseTopic string
	Publisher     Publisher
	Stats         Stats

	now func() time.Time
}

// NewResponder builds a Responder using the wall clock.
func NewResponder(requestTopic, responseTopic string, p Publisher, s Stats) *Responder {
	return &Responder{
		RequestTopic:  requestTopic,
		ResponseTopic: responseTopic,
		Publisher:     p,
		Stats:         s,
		now:           time.Now,
	}
}

// OnMessage handles one inbound message. Messages on other topics are
// ignored; malformed requests are dropped without a reply.
func (r *Responder) OnMessage(topic string, payload []byte) {
	if topic != r.RequestTopic {
		return
	}

	req, err := ParseRequest(payload)
	if err != nil {
		log.Debugf("timesync: discarding request: %v", err)
		r.Stats.IncInvalidRequests()
		return
	}
	r.Stats.IncSyncRequests()

	// t2 and t3 are taken back to back on purpose.
	t2 := r.now().UnixMilli()
	t3 := r.now().UnixMilli()

	resp, err := json.Marshal(Response{T1: req.T1, T2: t2, T3: t3})
	if err != nil {
		log.Errorf("timesync: marshal response: %v", err)
		return
	}

	if err := r.Publisher.Publish(r.ResponseTopic, resp); err != nil {
		log.Warningf("timesync: publish response: %v", err)
		r.Stats.IncPublishErrors()
		return
	}
	r.Stats.IncSyncResponses()
	log.Debugf("timesync: answered t1=%s t2=%d t3=%d", req.T1, t2, t3)
}
