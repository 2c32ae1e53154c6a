// Package session owns the WebSocket edge of the host: the Hub upgrades and
// authenticates connections and routes them to game rooms; the Client runs
// the read/write pumps for one connection.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/playforge/gamehost/internal/v1/metrics"
	"github.com/playforge/gamehost/internal/v1/types"
)

// wsConnection defines the interface for WebSocket connection operations.
// In production this is *websocket.Conn; tests substitute mocks.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// Client represents a single user's connection to a game room. Two
// goroutines per client move messages: readPump decodes inbound frames and
// hands them to the room's router, writePump drains the buffered send
// channel to the socket.
type Client struct {
	conn wsConnection
	room types.Roomer

	ID          types.SessionIDType
	DisplayName types.DisplayNameType

	mu        sync.RWMutex // guards closed and the send below it
	closed    bool
	closeOnce sync.Once // ensures send is only closed once

	send chan []byte
}

func (c *Client) GetID() types.SessionIDType            { return c.ID }
func (c *Client) GetDisplayName() types.DisplayNameType { return c.DisplayName }

// Close marks the client dead and closes the send channel exactly once, so
// writePump drains, emits the close frame and exits. Safe from any
// goroutine; sends racing the close are fenced by mu.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// Disconnect forcefully closes the connection (e.g. when replaced by a
// reconnect).
func (c *Client) Disconnect() {
	c.Close()
	c.conn.Close()
}

// readPump continuously processes incoming WebSocket messages until the
// connection drops, then reports the disconnect to the room.
func (c *Client) readPump() {
	defer func() {
		c.room.HandleClientDisconnect(c)
		c.Close()
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Failed to unmarshal envelope", "sessionId", c.ID, "error", err)
			continue
		}

		c.room.Router(context.Background(), c, &env)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	writeWait := 10 * time.Second

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Error("error writing message", "sessionId", c.ID, "error", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// SendRaw queues a frame without blocking the room. A full buffer drops the
// frame; the next state replication supersedes it anyway. The closed check
// and the send sit under the same lock Close writes through, so a send can
// never race the channel close.
func (c *Client) SendRaw(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Recovered from panic in SendRaw", "sessionId", c.ID, "panic", r)
		}
	}()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		slog.Debug("Skipping send to closed client", "sessionId", c.ID)
		return
	}

	select {
	case c.send <- data:
	default:
		slog.Warn("Client send channel full, dropping frame", "sessionId", c.ID)
	}
}
