// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geopose_telemetry/internal/transport/transporttest"
)

const sampleGeopose = `{"cnt":7,"ts":1700000000000,"body":{"lon":-3.7038,"lat":40.4168,"alt":650.5,"yaw":12.5,"pitch":-3.25,"roll":170}}`

func TestConsolePrintsGeopose(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)
	c.now = func() time.Time { return time.UnixMilli(1700000000042) }

	c.onMessage("telemetry/geopose", []byte(sampleGeopose))

	line := out.String()
	require.True(t, strings.HasPrefix(line, "[GEO] cnt=7"))
	require.Contains(t, line, "lon=-3.703800")
	require.Contains(t, line, "lat=40.416800")
	require.Contains(t, line, "alt=650.50")
	require.Contains(t, line, "YAW=  12.50")
	require.Contains(t, line, "PITCH= -3.25")
	require.Contains(t, line, "ROLL= 170.00")
	require.Contains(t, line, "latency=  42ms")

	s := c.tracker.Summary()
	require.Equal(t, int64(1), s.Count)
	require.InDelta(t, 42.0, s.LastMs, 1e-9)
}

func TestConsoleIgnoresGarbage(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)

	c.onMessage("telemetry/geopose", []byte("{broken"))

	require.Empty(t, out.String())
	require.Zero(t, c.tracker.Summary().Count)
}

func TestConsoleWatchSubscribesUntilCancelled(t *testing.T) {
	var out bytes.Buffer
	c := newConsole(&out)
	lb := transporttest.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.watch(ctx, lb, "telemetry/geopose", 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		lb.Deliver("telemetry/geopose", []byte(sampleGeopose))
		return c.tracker.Summary().Count > 0
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
