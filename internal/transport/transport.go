// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

/*
Package transport wraps the paho MQTT client behind a small publish/subscribe
interface. Every publish is QoS 0 with retain off: the call never waits for
the broker.
*/
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// QoS is fixed at "at most once" for every publish and subscription.
const QoS byte = 0

// quiesce is how long Disconnect lets in-flight work drain, in milliseconds.
const quiesce = 250

// ErrSubscribeTimeout is returned when the broker does not acknowledge a subscription in time.
var ErrSubscribeTimeout = errors.New("subscribe timed out")

// Handler receives inbound messages. It runs on a client goroutine, not on
// the caller of Subscribe.
type Handler func(topic string, payload []byte)

// Transport is the publish/subscribe surface used by the publisher, the
// time-sync responder and the subscriber tools.
type Transport interface {
	// Publish sends payload fire-and-forget. A returned error means the
	// message was rejected immediately; later failures go to OnPublishError.
	Publish(topic string, payload []byte) error
	Subscribe(topic string, h Handler) error
	Disconnect()
}

// Options describes a broker connection.
type Options struct {
	Broker           string // e.g. tcp://localhost:1883
	ClientID         string
	Username         string // optional, passed through as-is
	Password         string
	KeepAlive        time.Duration
	SubscribeTimeout time.Duration
	// OnPublishError is called from a background goroutine when a publish
	// fails after Publish has returned.
	OnPublishError func(topic string, err error)
}

// MQTT is a Transport backed by paho.
type MQTT struct {
	client  mqtt.Client
	opts    Options
	mu      sync.Mutex
	handles map[string]Handler
}

// clientOptions maps Options onto paho's options.
func clientOptions(o Options, onConnect mqtt.OnConnectHandler) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetKeepAlive(o.KeepAlive).
		SetCleanSession(true).
		SetAutoReconnect(true).
		// handlers run in their own goroutine so a slow one never stalls the router
		SetOrderMatters(false).
		SetOnConnectHandler(onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warningf("mqtt: connection lost: %v", err)
		})

	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	return opts
}

// Connect dials the broker and blocks until the connection is up, the broker
// refuses it, or ctx is done.
func Connect(ctx context.Context, o Options) (*MQTT, error) {
	if o.SubscribeTimeout == 0 {
		o.SubscribeTimeout = 10 * time.Second
	}
	t := &MQTT{opts: o, handles: make(map[string]Handler)}
	t.client = mqtt.NewClient(clientOptions(o, t.onConnect))

	log.Infof("mqtt: connecting to %s as %q", o.Broker, o.ClientID)
	token := t.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		t.client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", o.Broker, err)
	}
	return t, nil
}

// onConnect runs on every (re)connect. The session is clean, so
// subscriptions have to be restored by hand after a reconnect.
func (t *MQTT) onConnect(c mqtt.Client) {
	log.Infof("mqtt: connected to %s", t.opts.Broker)

	t.mu.Lock()
	defer t.mu.Unlock()
	for topic, h := range t.handles {
		log.Debugf("mqtt: restoring subscription to %s", topic)
		c.Subscribe(topic, QoS, wrap(h))
	}
}

// Publish implements Transport.
func (t *MQTT) Publish(topic string, payload []byte) error {
	token := t.client.Publish(topic, QoS, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	default:
	}

	if t.opts.OnPublishError != nil {
		go func() {
			<-token.Done()
			if err := token.Error(); err != nil {
				t.opts.OnPublishError(topic, err)
			}
		}()
	}
	return nil
}

// Subscribe implements Transport. It waits for the broker's SUBACK.
func (t *MQTT) Subscribe(topic string, h Handler) error {
	t.mu.Lock()
	t.handles[topic] = h
	t.mu.Unlock()

	token := t.client.Subscribe(topic, QoS, wrap(h))
	if !token.WaitTimeout(t.opts.SubscribeTimeout) {
		return fmt.Errorf("%s: %w", topic, ErrSubscribeTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	log.Infof("mqtt: subscribed to %s", topic)
	return nil
}

// Disconnect implements Transport.
func (t *MQTT) Disconnect() {
	t.client.Disconnect(quiesce)
}

func wrap(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Topic(), msg.Payload())
	}
}
