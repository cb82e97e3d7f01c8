// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/geopose_telemetry/internal/config"
	"github.com/relabs-tech/geopose_telemetry/internal/geopose"
	"github.com/relabs-tech/geopose_telemetry/internal/latency"
)

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webState holds the latest geopose and the websocket subscribers.
type webState struct {
	mu       sync.RWMutex
	last     geopose.Payload
	haveLast bool

	tracker *latency.Tracker
	now     func() time.Time

	clientsMu sync.Mutex
	clients   map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWebState() *webState {
	return &webState{
		tracker: latency.NewTracker(),
		now:     time.Now,
		clients: make(map[*wsClient]struct{}),
	}
}

// onMessage is the MQTT handler: remember the payload and fan it out.
func (s *webState) onMessage(_ string, payload []byte) {
	arrived := s.now().UnixMilli()

	var p geopose.Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Warningf("web: MQTT payload unmarshal error: %v", err)
		return
	}
	s.tracker.Observe(p.Cnt, p.Ts, arrived)

	s.mu.Lock()
	s.last = p
	s.haveLast = true
	s.mu.Unlock()

	s.broadcast(payload)
}

// broadcast never blocks: a client whose buffer is full misses the message.
func (s *webState) broadcast(msg []byte) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (s *webState) clientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func (s *webState) handleGeopose(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.haveLast {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.last); err != nil {
		log.Errorf("web: json encode error: %v", err)
	}
}

func (s *webState) handleLatency(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.tracker.Summary()); err != nil {
		log.Errorf("web: json encode error: %v", err)
	}
}

// handleWS streams every telemetry message to the browser as a text frame.
func (s *webState) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warningf("web: websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()
	log.Debugf("web: websocket client %s connected", r.RemoteAddr)

	go c.writeLoop()

	// Reads only detect the close; browsers send nothing else.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, c)
	close(c.send)
	s.clientsMu.Unlock()
	log.Debugf("web: websocket client %s disconnected", r.RemoteAddr)
}

func (c *wsClient) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debugf("web: websocket write error: %v", err)
			return
		}
	}
}

func (s *webState) mux(staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/geopose", s.handleGeopose)
	mux.HandleFunc("/api/latency", s.handleLatency)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	return mux
}

// RunWeb subscribes to the telemetry topic and serves the latest geopose,
// latency statistics and a live websocket stream over HTTP.
func RunWeb(ctx context.Context, cfg *config.Config) error {
	log.Info("starting geopose web server (MQTT subscriber)")

	state := newWebState()

	if err := cfg.ValidateWeb(); err != nil {
		return err
	}

	tr, err := dial(ctx, cfg, uniqueClientID("geopose-web"), nil)
	if err != nil {
		return err
	}
	defer tr.Disconnect()

	if err := tr.Subscribe(cfg.TopicTelemetry, state.onMessage); err != nil {
		return err
	}
	log.Infof("web: subscribed to MQTT topic %s", cfg.TopicTelemetry)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           state.mux("web"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("web: server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("web: shutting down")
	return nil
}
