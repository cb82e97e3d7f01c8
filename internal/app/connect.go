// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/geopose_telemetry/internal/config"
	"github.com/relabs-tech/geopose_telemetry/internal/stats"
	"github.com/relabs-tech/geopose_telemetry/internal/transport"
)

// connect dials the configured broker. A failure here is fatal for every binary.
func connect(ctx context.Context, cfg *config.Config, clientID string, st stats.Stats) (*transport.MQTT, error) {
	tr, err := transport.Connect(ctx, transportOptions(cfg, clientID, st))
	if err != nil {
		return nil, fmt.Errorf("MQTT connect error: %w", err)
	}
	return tr, nil
}

// dial is how every binary reaches the broker. Tests replace it with an
// in-memory transport.
var dial = func(ctx context.Context, cfg *config.Config, clientID string, st stats.Stats) (transport.Transport, error) {
	tr, err := connect(ctx, cfg, clientID, st)
	if err != nil {
		return nil, err
	}
	return tr, nil
}

func transportOptions(cfg *config.Config, clientID string, st stats.Stats) transport.Options {
	return transport.Options{
		Broker:    cfg.BrokerURL(),
		ClientID:  clientID,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		KeepAlive: cfg.KeepAlive(),
		OnPublishError: func(topic string, err error) {
			log.Warningf("mqtt: publish to %s failed: %v", topic, err)
			if st != nil {
				st.IncPublishErrors()
			}
		},
	}
}

// uniqueClientID appends a random suffix so several subscriber tools can share a broker.
func uniqueClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}
