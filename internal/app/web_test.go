// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/geopose_telemetry/internal/geopose"
	"github.com/relabs-tech/geopose_telemetry/internal/latency"
)

func newTestWebServer(t *testing.T) (*webState, *httptest.Server) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>geopose</html>"), 0o644))

	state := newWebState()
	state.now = func() time.Time { return time.UnixMilli(1700000000010) }
	srv := httptest.NewServer(state.mux(dir))
	t.Cleanup(srv.Close)
	return state, srv
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestWebGeoposeUnavailableUntilFirstMessage(t *testing.T) {
	state, srv := newTestWebServer(t)

	code, _ := get(t, srv.URL+"/api/geopose")
	require.Equal(t, http.StatusServiceUnavailable, code)

	state.onMessage("telemetry/geopose", []byte(sampleGeopose))

	code, body := get(t, srv.URL+"/api/geopose")
	require.Equal(t, http.StatusOK, code)
	var p geopose.Payload
	require.NoError(t, json.Unmarshal(body, &p))
	require.Equal(t, uint64(7), p.Cnt)
	require.InDelta(t, 40.4168, p.Body.Lat, 1e-9)
}

func TestWebIgnoresGarbage(t *testing.T) {
	state, srv := newTestWebServer(t)

	state.onMessage("telemetry/geopose", []byte("[]"))

	code, _ := get(t, srv.URL+"/api/geopose")
	require.Equal(t, http.StatusServiceUnavailable, code)
}

func TestWebLatency(t *testing.T) {
	state, srv := newTestWebServer(t)
	state.onMessage("telemetry/geopose", []byte(sampleGeopose))

	code, body := get(t, srv.URL+"/api/latency")
	require.Equal(t, http.StatusOK, code)
	var s latency.Summary
	require.NoError(t, json.Unmarshal(body, &s))
	require.Equal(t, int64(1), s.Count)
	require.InDelta(t, 10.0, s.LastMs, 1e-9)
}

func TestWebServesStaticFiles(t *testing.T) {
	_, srv := newTestWebServer(t)

	code, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "geopose")
}

func TestWebSocketReceivesTelemetry(t *testing.T) {
	state, srv := newTestWebServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return state.clientCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	state.onMessage("telemetry/geopose", []byte(sampleGeopose))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	require.JSONEq(t, sampleGeopose, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return state.clientCount() == 0 }, 5*time.Second, 5*time.Millisecond)
}
