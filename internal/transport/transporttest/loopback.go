// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transporttest provides an in-memory broker for tests.
package transporttest

import (
	"sync"

	"github.com/relabs-tech/geopose_telemetry/internal/transport"
)

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload []byte
}

// Loopback records every publish and hands it to handlers subscribed to the
// exact same topic, synchronously on the publisher's goroutine.
type Loopback struct {
	mu           sync.Mutex
	published    []Message
	handlers     map[string][]transport.Handler
	disconnected bool
	publishErr   error
	subscribeErr error
}

var _ transport.Transport = (*Loopback)(nil)

// New returns an empty Loopback.
func New() *Loopback {
	return &Loopback{handlers: make(map[string][]transport.Handler)}
}

// Publish implements transport.Transport.
func (l *Loopback) Publish(topic string, payload []byte) error {
	l.mu.Lock()
	if l.publishErr != nil {
		err := l.publishErr
		l.mu.Unlock()
		return err
	}
	cp := append([]byte(nil), payload...)
	l.published = append(l.published, Message{Topic: topic, Payload: cp})
	hs := append([]transport.Handler(nil), l.handlers[topic]...)
	l.mu.Unlock()

	for _, h := range hs {
		h(topic, cp)
	}
	return nil
}

// Subscribe implements transport.Transport.
func (l *Loopback) Subscribe(topic string, h transport.Handler) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.subscribeErr != nil {
		return l.subscribeErr
	}
	l.handlers[topic] = append(l.handlers[topic], h)
	return nil
}

// Disconnect implements transport.Transport.
func (l *Loopback) Disconnect() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disconnected = true
}

// SetPublishErr makes Publish fail with err without recording anything. nil restores it.
func (l *Loopback) SetPublishErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publishErr = err
}

// SetSubscribeErr makes Subscribe fail with err. nil restores it.
func (l *Loopback) SetSubscribeErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribeErr = err
}

// Deliver simulates an inbound message from another client.
func (l *Loopback) Deliver(topic string, payload []byte) {
	l.mu.Lock()
	hs := append([]transport.Handler(nil), l.handlers[topic]...)
	l.mu.Unlock()
	for _, h := range hs {
		h(topic, payload)
	}
}

// Published returns the messages published on topic, or all of them when topic is "".
func (l *Loopback) Published(topic string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Message
	for _, m := range l.published {
		if topic == "" || m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Disconnected reports whether Disconnect was called.
func (l *Loopback) Disconnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disconnected
}
