// Package types defines shared types and constants for the application.
package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/playforge/gamehost/internal/v1/auth"
)

// --- Core Domain Types ---

// SessionIDType is the stable opaque identifier the transport assigns to one
// connected client. It keys the players map and rides on every inbound event.
type SessionIDType string

// RoomIDType represents a unique identifier for a game room.
type RoomIDType string

// DisplayNameType represents the human-readable name for a client.
type DisplayNameType string

// Envelope is the JSON wire frame exchanged with clients:
// {"type": "...", "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodePayload unwraps the payload record. A missing payload decodes to an
// empty record; anything that is not a record is a message shape error.
func (e *Envelope) DecodePayload() (map[string]any, error) {
	if len(e.Payload) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return nil, fmt.Errorf("payload is not a record: %w", err)
	}
	if out == nil {
		// A JSON null payload decodes to a nil map.
		out = map[string]any{}
	}
	return out, nil
}

// NewEnvelope marshals a payload value into a wire frame.
func NewEnvelope(eventType string, payload any) (*Envelope, error) {
	if eventType == "" {
		return nil, errors.New("envelope type cannot be empty")
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Envelope{Type: eventType, Payload: raw}, nil
}

// --- Shared Interfaces ---

// TokenValidator defines the interface for JWT token authentication services.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.CustomClaims, error)
}

// BusService defines the interface for distributed pub/sub messaging.
// When nil, the host operates in single-instance mode.
type BusService interface {
	Publish(ctx context.Context, roomID string, event string, payload any, senderID string) error
	Subscribe(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(roomID, event string, payload json.RawMessage, senderID string))
	Close() error
}

// ClientInterface defines the behavior required from a WebSocket client.
// This allows the room package to interact with clients without depending on
// the session package.
type ClientInterface interface {
	GetID() SessionIDType
	GetDisplayName() DisplayNameType
	SendRaw(data []byte)
	Disconnect()
}

// Roomer defines the interface for room operations the transport layer needs.
type Roomer interface {
	GetID() RoomIDType
	Router(ctx context.Context, client ClientInterface, env *Envelope)
	HandleClientConnect(client ClientInterface, name string)
	HandleClientDisconnect(client ClientInterface)
}
