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

package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carverauto/fleetrelay/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20 // image frames are base64 blobs
	sendBufferSize = 64
)

var (
	errConnClosed     = errors.New("connection closed")
	errSendBufferFull = errors.New("send buffer full")
)

// frame is one outbound message queued for the write pump.
type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Conn is one live duplex connection. It satisfies relay.Handle: sends
// are queued on a buffered channel and delivered by a dedicated write
// pump, so the relay engine never blocks on a slow client.
type Conn struct {
	id     string
	sock   *websocket.Conn
	send   chan frame
	done   chan struct{}
	logger logger.Logger

	topicsMu sync.RWMutex
	topics   map[string]struct{}

	closeOnce sync.Once
}

func newConn(sock *websocket.Conn, log logger.Logger) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		sock:   sock,
		send:   make(chan frame, sendBufferSize),
		done:   make(chan struct{}),
		logger: log,
		topics: make(map[string]struct{}),
	}
}

// ID returns the opaque connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// Send queues one event for this connection. It never blocks: a full
// buffer means the client is too slow and the message is refused.
func (c *Conn) Send(event string, payload interface{}) error {
	f := frame{Event: event, Data: payload}

	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

// Subscribe adds this connection to a broadcast topic.
func (c *Conn) Subscribe(topic string) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()

	c.topics[topic] = struct{}{}
}

// Subscribed reports whether this connection joined the topic.
func (c *Conn) Subscribed(topic string) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()

	_, ok := c.topics[topic]

	return ok
}

// Close signals shutdown and refuses further sends. The socket itself
// is torn down by the write pump, which first flushes frames queued
// before the close: a notice queued just ahead of Close (a forced
// logout) must still reach the peer. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	return nil
}

// writePump drains the send queue onto the socket and keeps the
// connection alive with pings. It owns every write to the socket,
// including the closing handshake on its way out.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.teardownSocket()

	for {
		select {
		case <-c.done:
			c.flush()
			return

		case f := <-c.send:
			if err := c.writeFrame(f); err != nil {
				c.logger.Debug().
					Err(err).
					Str("conn", c.id).
					Str("event", f.Event).
					Msg("Write failed, closing connection")
				_ = c.Close()

				return
			}

		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.sock.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug().Err(err).Str("conn", c.id).Msg("Ping failed, closing connection")
				_ = c.Close()

				return
			}
		}
	}
}

func (c *Conn) writeFrame(f frame) error {
	if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn().Err(err).Str("conn", c.id).Msg("Failed to set write deadline")
	}

	return c.sock.WriteJSON(f)
}

// flush delivers frames that were queued before shutdown was signaled.
func (c *Conn) flush() {
	for {
		select {
		case f := <-c.send:
			if err := c.writeFrame(f); err != nil {
				c.logger.Debug().
					Err(err).
					Str("conn", c.id).
					Str("event", f.Event).
					Msg("Flush write failed")

				return
			}
		default:
			return
		}
	}
}

func (c *Conn) teardownSocket() {
	deadline := time.Now().Add(writeWait)
	if err := c.sock.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline); err != nil {
		c.logger.Debug().Err(err).Str("conn", c.id).Msg("Close frame not delivered")
	}

	if err := c.sock.Close(); err != nil {
		c.logger.Debug().Err(err).Str("conn", c.id).Msg("Socket close error")
	}
}
