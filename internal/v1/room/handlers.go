package room

import (
	"context"
	"log/slog"

	"github.com/playforge/gamehost/internal/v1/types"
)

// Router forwards one inbound client message to the statechart. The allowed
// event set is exactly the union of on keys in the definition's states;
// anything else is dropped. The sender's session id is attached to the event
// so actions can template per-player paths.
func (r *Room) Router(ctx context.Context, client types.ClientInterface, env *types.Envelope) {
	if env == nil || env.Type == "" {
		slog.Warn("Received message with empty type", "room", r.ID, "sessionId", client.GetID())
		return
	}

	if _, allowed := r.eventTypes[env.Type]; !allowed {
		slog.Debug("Dropping unknown event type", "room", r.ID, "event", env.Type, "sessionId", client.GetID())
		return
	}

	payload, err := env.DecodePayload()
	if err != nil {
		slog.Warn("Dropping malformed message", "room", r.ID, "event", env.Type, "sessionId", client.GetID(), "error", err)
		return
	}
	payload["sessionId"] = string(client.GetID())

	r.Dispatch(env.Type, payload)
}

// Dispatch runs one event through the interpreter on the room's execution
// stream and pushes the mutated state to clients. Scheduled callbacks use
// the same stream, so no two handlers ever run concurrently in a room.
func (r *Room) Dispatch(eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.interp.Send(eventType, payload)
	r.replicateStateLocked()
}
