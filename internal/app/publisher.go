// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/geopose_telemetry/internal/config"
	"github.com/relabs-tech/geopose_telemetry/internal/geopose"
	"github.com/relabs-tech/geopose_telemetry/internal/pacer"
	"github.com/relabs-tech/geopose_telemetry/internal/stats"
	"github.com/relabs-tech/geopose_telemetry/internal/timesync"
	"github.com/relabs-tech/geopose_telemetry/internal/transport"
)

// publisher owns the geopose source and, through it, the sequence counter.
// Only the pacing loop calls tick.
type publisher struct {
	transport transport.Transport
	source    geopose.Source
	topic     string
	stats     stats.Stats
}

// tick publishes one payload. Every failure is logged and absorbed.
func (p *publisher) tick() {
	payload, err := p.source.Next()
	if err != nil {
		log.Errorf("publisher: geopose source error: %v", err)
		return
	}

	b, err := json.Marshal(payload)
	if err != nil {
		log.Errorf("publisher: json marshal error: %v", err)
		return
	}

	if err := p.transport.Publish(p.topic, b); err != nil {
		log.Warningf("publisher: MQTT publish error (cnt=%d): %v", payload.Cnt, err)
		p.stats.IncPublishErrors()
		return
	}
	p.stats.IncPublished()
	log.Debugf("publisher: published cnt=%d ts=%d", payload.Cnt, payload.Ts)
}

// RunTelemetryPublisher connects to the broker and publishes synthetic
// geopose telemetry at MQTT_RATE_HZ until ctx is cancelled.
func RunTelemetryPublisher(ctx context.Context, cfg *config.Config) error {
	log.Info("starting geopose telemetry publisher")
	return runPublisher(ctx, cfg, false)
}

// RunTimeSyncPublisher is RunTelemetryPublisher plus a responder answering
// time-sync requests on MQTT_SYNC_REQUEST_TOPIC.
func RunTimeSyncPublisher(ctx context.Context, cfg *config.Config) error {
	log.Info("starting geopose telemetry publisher with time-sync responder")
	if err := cfg.ValidateSync(); err != nil {
		return err
	}
	return runPublisher(ctx, cfg, true)
}

func runPublisher(ctx context.Context, cfg *config.Config, withSync bool) error {
	st := stats.NewPrometheusStats()

	tr, err := dial(ctx, cfg, cfg.MQTTClientID, st)
	if err != nil {
		return err
	}
	defer func() {
		tr.Disconnect()
		log.Info("publisher: disconnected cleanly")
	}()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MonitoringPort > 0 {
		g.Go(func() error { return st.Serve(ctx, cfg.MonitoringPort) })
	}
	g.Go(func() error { return serve(ctx, cfg, tr, st, geopose.NewGenerator(), withSync) })
	return g.Wait()
}

// serve wires the responder (when asked) and runs the pacing loop on tr.
func serve(ctx context.Context, cfg *config.Config, tr transport.Transport, st stats.Stats, src geopose.Source, withSync bool) error {
	if withSync {
		responder := timesync.NewResponder(cfg.TopicSyncRequest, cfg.TopicSyncResponse, tr, st)
		if err := tr.Subscribe(cfg.TopicSyncRequest, responder.OnMessage); err != nil {
			return fmt.Errorf("time-sync subscribe: %w", err)
		}
		log.Infof("publisher: answering time-sync requests on %s -> %s", cfg.TopicSyncRequest, cfg.TopicSyncResponse)
	}

	p := &publisher{transport: tr, source: src, topic: cfg.TopicTelemetry, stats: st}
	pc := pacer.New(cfg.Interval(), pacer.WithLagHandler(func(behind time.Duration) {
		st.IncLagResets()
		log.Debugf("publisher: behind schedule by %v, resetting", behind)
	}))

	log.Infof("publisher: publishing to %s at %.2f Hz (every %v)", cfg.TopicTelemetry, cfg.MQTTRateHz, pc.Interval())
	if err := pc.Run(ctx, p.tick); err != nil {
		return err
	}
	log.Info("publisher: stopping")
	return nil
}
