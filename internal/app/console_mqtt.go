// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/geopose_telemetry/internal/config"
	"github.com/relabs-tech/geopose_telemetry/internal/geopose"
	"github.com/relabs-tech/geopose_telemetry/internal/latency"
	"github.com/relabs-tech/geopose_telemetry/internal/transport"
)

// console prints every geopose it receives and tracks its latency.
type console struct {
	out     io.Writer
	tracker *latency.Tracker
	now     func() time.Time
}

func newConsole(out io.Writer) *console {
	return &console{out: out, tracker: latency.NewTracker(), now: time.Now}
}

func (c *console) onMessage(_ string, payload []byte) {
	arrived := c.now().UnixMilli()

	var p geopose.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Warningf("console: geopose unmarshal error: %v", err)
		return
	}
	l := c.tracker.Observe(p.Cnt, p.Ts, arrived)

	fmt.Fprintf(c.out,
		"[GEO] cnt=%-7d lon=%.6f lat=%.6f alt=%6.2f  YAW=%7.2f PITCH=%6.2f ROLL=%7.2f  latency=%4.0fms\n",
		p.Cnt, p.Body.Lon, p.Body.Lat, p.Body.Alt, p.Body.Yaw, p.Body.Pitch, p.Body.Roll, l,
	)
}

func (c *console) logSummary() {
	s := c.tracker.Summary()
	if s.Count == 0 {
		log.Info("console: no telemetry received yet")
		return
	}
	log.Infof("console: %s msgs, latency last=%.1fms avg=%.1fms sd=%.1fms min/max=%.1f/%.1fms, missed=%s restarts=%d",
		humanize.Comma(s.Count), s.LastMs, s.MeanMs, s.StddevMs, s.MinMs, s.MaxMs,
		humanize.Comma(int64(s.Missed)), s.Restarts,
	)
}

// watch subscribes to the telemetry topic and logs a summary every interval until ctx is done.
func (c *console) watch(ctx context.Context, tr transport.Transport, topic string, interval time.Duration) error {
	if err := tr.Subscribe(topic, c.onMessage); err != nil {
		return err
	}
	log.Infof("console: subscribed to %s", topic)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logSummary()
			return nil
		case <-ticker.C:
			c.logSummary()
		}
	}
}

// RunConsoleMQTT subscribes to the telemetry topic and prints every geopose
// along with end-to-end latency until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config) error {
	log.Info("starting geopose console (MQTT subscriber)")

	if err := cfg.ValidateConsole(); err != nil {
		return err
	}

	tr, err := dial(ctx, cfg, uniqueClientID("geopose-console"), nil)
	if err != nil {
		return err
	}
	defer func() {
		tr.Disconnect()
		log.Info("console: shutting down")
	}()

	interval := time.Duration(cfg.ConsoleLogInterval) * time.Millisecond
	return newConsole(os.Stdout).watch(ctx, tr, cfg.TopicTelemetry, interval)
}
