// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

/*
Package stats implements statistics collection and reporting.
It is used by the publisher and the time-sync responder to report counters,
such as number of published messages and answered sync requests.
*/
package stats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Stats is the counter set shared by the publisher and the responder.
type Stats interface {
	IncPublished()
	IncPublishErrors()
	IncLagResets()
	IncSyncRequests()
	IncSyncResponses()
	IncInvalidRequests()
}

// PrometheusStats implements Stats on a private Prometheus registry.
type PrometheusStats struct {
	registry        *prometheus.Registry
	published       prometheus.Counter
	publishErrors   prometheus.Counter
	lagResets       prometheus.Counter
	syncRequests    prometheus.Counter
	syncResponses   prometheus.Counter
	invalidRequests prometheus.Counter
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geopose",
		Name:      name,
		Help:      help,
	})
}

// NewPrometheusStats creates and registers all counters.
func NewPrometheusStats() *PrometheusStats {
	s := &PrometheusStats{
		registry:        prometheus.NewRegistry(),
		published:       newCounter("published_total", "Telemetry messages handed to the broker client."),
		publishErrors:   newCounter("publish_errors_total", "Publishes that failed, immediately or in the background."),
		lagResets:       newCounter("lag_resets_total", "Times the pacing loop fell behind and reset its schedule."),
		syncRequests:    newCounter("sync_requests_total", "Valid time-sync requests received."),
		syncResponses:   newCounter("sync_responses_total", "Time-sync responses handed to the broker client."),
		invalidRequests: newCounter("sync_invalid_requests_total", "Time-sync requests discarded as malformed."),
	}
	s.registry.MustRegister(
		s.published,
		s.publishErrors,
		s.lagResets,
		s.syncRequests,
		s.syncResponses,
		s.invalidRequests,
	)
	return s
}

// IncPublished adds 1 to the counter
func (s *PrometheusStats) IncPublished() { s.published.Inc() }

// IncPublishErrors adds 1 to the counter
func (s *PrometheusStats) IncPublishErrors() { s.publishErrors.Inc() }

// IncLagResets adds 1 to the counter
func (s *PrometheusStats) IncLagResets() { s.lagResets.Inc() }

// IncSyncRequests adds 1 to the counter
func (s *PrometheusStats) IncSyncRequests() { s.syncRequests.Inc() }

// IncSyncResponses adds 1 to the counter
func (s *PrometheusStats) IncSyncResponses() { s.syncResponses.Inc() }

// IncInvalidRequests adds 1 to the counter
func (s *PrometheusStats) IncInvalidRequests() { s.invalidRequests.Inc() }

// Handler serves the registry in the Prometheus exposition format.
func (s *PrometheusStats) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	})
}

// Serve exposes /metrics on port until ctx is done. Failing to listen is
// logged, not returned: metrics must never take the publisher down.
func (s *PrometheusStats) Serve(ctx context.Context, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("stats: serving metrics on %s/metrics", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("stats: failed to start listener: %v", err)
	}
	return nil
}
