// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/geopose_telemetry/internal/config"
	"github.com/relabs-tech/geopose_telemetry/internal/timesync"
	"github.com/relabs-tech/geopose_telemetry/internal/transport"
)

var errProbeTimeout = errors.New("no sync response before timeout")

// syncProbe is the client side of the time-sync exchange.
type syncProbe struct {
	tr        transport.Transport
	reqTopic  string
	responses chan timesync.Sample
	now       func() time.Time
}

// probeResult aggregates a probe run.
type probeResult struct {
	Sent     int
	Received int
	offsets  *welford.Stats
	delays   *welford.Stats
}

func newSyncProbe(tr transport.Transport, reqTopic string) *syncProbe {
	return &syncProbe{
		tr:        tr,
		reqTopic:  reqTopic,
		responses: make(chan timesync.Sample, 16),
		now:       time.Now,
	}
}

// onResponse stamps t4 first, then decodes.
func (p *syncProbe) onResponse(_ string, payload []byte) {
	t4 := p.now().UnixMilli()

	var resp timesync.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		log.Debugf("probe: bad sync response: %v", err)
		return
	}
	t1, err := resp.T1.Int64()
	if err != nil {
		log.Debugf("probe: response t1 %q is not ours: %v", resp.T1, err)
		return
	}

	select {
	case p.responses <- timesync.Sample{T1: t1, T2: resp.T2, T3: resp.T3, T4: t4}:
	default:
		log.Debug("probe: response buffer full, dropping")
	}
}

// exchange sends one request and waits for the matching response.
func (p *syncProbe) exchange(ctx context.Context, timeout time.Duration) (timesync.Sample, error) {
	t1 := p.now().UnixMilli()
	req, err := json.Marshal(struct {
		T1 int64 `json:"t1"`
	}{T1: t1})
	if err != nil {
		return timesync.Sample{}, err
	}

	if err := p.tr.Publish(p.reqTopic, req); err != nil {
		return timesync.Sample{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case s := <-p.responses:
			if s.T1 == t1 {
				return s, nil
			}
			log.Debugf("probe: ignoring response for t1=%d", s.T1)
		case <-timer.C:
			return timesync.Sample{}, errProbeTimeout
		case <-ctx.Done():
			return timesync.Sample{}, ctx.Err()
		}
	}
}

// run performs count exchanges spaced by interval. Cancellation stops early
// without an error.
func (p *syncProbe) run(ctx context.Context, count int, interval, timeout time.Duration) probeResult {
	res := probeResult{offsets: welford.New(), delays: welford.New()}

	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return res
			case <-time.After(interval):
			}
		}

		res.Sent++
		s, err := p.exchange(ctx, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return res
			}
			log.Warningf("probe: exchange %d/%d failed: %v", i+1, count, err)
			continue
		}

		res.Received++
		res.offsets.Add(s.Offset())
		res.delays.Add(float64(s.Delay()))
		log.Infof("probe: t1=%d t2=%d t3=%d t4=%d offset=%.1fms delay=%dms",
			s.T1, s.T2, s.T3, s.T4, s.Offset(), s.Delay())
	}
	return res
}

func (r probeResult) log() {
	if r.Received == 0 {
		log.Warningf("probe: %d requests sent, no responses", r.Sent)
		return
	}
	log.Infof("probe: %d/%d answered, offset avg=%.2fms sd=%.2fms, delay avg=%.2fms sd=%.2fms",
		r.Received, r.Sent, r.offsets.Mean(), r.stddev(r.offsets), r.delays.Mean(), r.stddev(r.delays))
}

func (r probeResult) stddev(s *welford.Stats) float64 {
	if r.Received < 2 {
		return 0
	}
	return s.Stddev()
}

// RunSyncProbe measures clock offset and round-trip delay against a running
// time-sync responder.
func RunSyncProbe(ctx context.Context, cfg *config.Config) error {
	log.Info("starting time-sync probe")

	if err := cfg.ValidateProbe(); err != nil {
		return err
	}

	tr, err := dial(ctx, cfg, uniqueClientID("geopose-sync-probe"), nil)
	if err != nil {
		return err
	}
	defer tr.Disconnect()

	p := newSyncProbe(tr, cfg.TopicSyncRequest)
	if err := tr.Subscribe(cfg.TopicSyncResponse, p.onResponse); err != nil {
		return err
	}

	res := p.run(ctx,
		cfg.SyncProbeCount,
		time.Duration(cfg.SyncProbeInterval)*time.Millisecond,
		time.Duration(cfg.SyncProbeTimeout)*time.Millisecond,
	)
	res.log()
	return nil
}
