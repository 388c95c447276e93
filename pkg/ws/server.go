/*
 * Copyright 2026 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package ws is the WebSocket transport layer: it upgrades HTTP
// connections, feeds decoded events to the relay engine, and provides
// the send/broadcast primitives the engine emits through.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carverauto/fleetrelay/pkg/logger"
	"github.com/carverauto/fleetrelay/pkg/models"
	"github.com/carverauto/fleetrelay/pkg/relay"
)

const disconnectTimeout = 10 * time.Second

// EventHandler receives decoded inbound events and disconnect
// notifications. The relay engine implements it.
type EventHandler interface {
	HandleEvent(ctx context.Context, h relay.Handle, env models.Envelope)
	HandleDisconnect(ctx context.Context, h relay.Handle)
}

// Server accepts WebSocket connections and implements
// relay.Broadcaster over the set of live connections.
type Server struct {
	handler  EventHandler
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewServer builds the transport. The origin check mirrors the REST
// CORS configuration.
func NewServer(handler EventHandler, cors models.CORSConfig, log logger.Logger) *Server {
	s := &Server{
		handler: handler,
		logger:  log,
		conns:   make(map[string]*Conn),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, cors)
		},
	}

	return s
}

// HandleWS upgrades the request and runs the connection's read loop.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	c := newConn(sock, s.logger)

	s.mu.Lock()
	s.conns[c.ID()] = c
	s.mu.Unlock()

	s.logger.Info().
		Str("conn", c.ID()).
		Str("remote_addr", r.RemoteAddr).
		Msg("Connection established")

	go c.writePump()
	s.readLoop(c)
}

// readLoop decodes inbound envelopes until the connection dies, then
// runs disconnect cleanup exactly once.
func (s *Server) readLoop(c *Conn) {
	defer s.teardown(c)

	c.sock.SetReadLimit(maxMessageSize)

	if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Warn().Err(err).Str("conn", c.ID()).Msg("Failed to set read deadline")
	}

	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("conn", c.ID()).Msg("Unexpected close")
			} else {
				s.logger.Debug().Err(err).Str("conn", c.ID()).Msg("Read loop ended")
			}

			return
		}

		if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			s.logger.Warn().Err(err).Str("conn", c.ID()).Msg("Failed to reset read deadline")
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			s.logger.Warn().Str("conn", c.ID()).Msg("Dropping undecodable frame")
			continue
		}

		s.handler.HandleEvent(context.Background(), c, env)
	}
}

// teardown removes the connection and notifies the relay engine. The
// request context is already dead here, so cleanup gets its own
// bounded one: the disconnected-state cache writes must still happen.
func (s *Server) teardown(c *Conn) {
	_ = c.Close()

	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	s.handler.HandleDisconnect(ctx, c)

	s.logger.Info().Str("conn", c.ID()).Msg("Connection closed")
}

// Broadcast sends the event to every connection subscribed to topic.
// Refused sends (slow clients) are logged and skipped; one stalled
// operator never blocks the rest.
func (s *Server) Broadcast(event string, payload interface{}, topic string) {
	s.mu.RLock()
	targets := make([]*Conn, 0, len(s.conns))

	for _, c := range s.conns {
		if c.Subscribed(topic) {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if err := c.Send(event, payload); err != nil {
			s.logger.Warn().
				Err(err).
				Str("conn", c.ID()).
				Str("event", event).
				Str("topic", topic).
				Msg("Broadcast send refused")
		}
	}
}

// ConnCount reports the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.conns)
}

// checkOrigin validates the WebSocket origin against the CORS
// configuration. No Origin header means a non-browser client.
func checkOrigin(r *http.Request, cors models.CORSConfig) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range cors.AllowedOrigins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}

	return false
}

var _ relay.Broadcaster = (*Server)(nil)
var _ relay.Handle = (*Conn)(nil)
