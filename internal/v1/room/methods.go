package room

import (
	"log/slog"

	"github.com/playforge/gamehost/internal/v1/metrics"
	"github.com/playforge/gamehost/internal/v1/schema"
	"github.com/playforge/gamehost/internal/v1/types"
)

// HandleClientConnect registers a connection and ensures a roster entry for
// its session. Joining with a session id that already has a Player entry is
// idempotent: the old connection is replaced, the entry is preserved.
func (r *Room) HandleClientConnect(client types.ClientInterface, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.clients[client.GetID()]; ok && existing != client {
		slog.Info("Duplicate connection detected, replacing old client",
			"room", r.ID,
			"sessionId", client.GetID(),
		)
		existing.Disconnect()
	}
	r.clients[client.GetID()] = client

	r.ensurePlayerEntryLocked(client.GetID(), name)

	metrics.RoomPlayers.WithLabelValues(string(r.ID)).Set(float64(len(r.clients)))

	// The joiner immediately sees the full replicated state.
	r.replicateStateLocked()
}

// HandleClientDisconnect removes the connection and its roster entry. The
// statechart sees no synthetic event; definitions that need per-player
// cleanup react to an explicit leave message instead.
func (r *Room) HandleClientDisconnect(client types.ClientInterface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[client.GetID()]
	if !ok || current != client {
		// A replaced connection disconnecting late must not evict the
		// session that superseded it.
		return
	}
	delete(r.clients, client.GetID())

	if players := r.playersMapLocked(); players != nil {
		players.Delete(string(client.GetID()))
	}
	slog.Info("Client disconnected", "room", r.ID, "sessionId", client.GetID())

	if len(r.clients) > 0 {
		metrics.RoomPlayers.WithLabelValues(string(r.ID)).Set(float64(len(r.clients)))
	} else {
		metrics.RoomPlayers.DeleteLabelValues(string(r.ID))
	}

	r.replicateStateLocked()

	if len(r.clients) == 0 && r.onEmpty != nil {
		go r.onEmpty(r.ID)
	}
}

// ensurePlayerEntryLocked inserts a Player instance under the session id,
// preferring the definition's Player class. Caller must hold r.mu.
func (r *Room) ensurePlayerEntryLocked(id types.SessionIDType, name string) {
	players := r.playersMapLocked()
	if players == nil {
		slog.Warn("Definition root has no players map; skipping roster state", "room", r.ID)
		return
	}
	if _, exists := players.Get(string(id)); exists {
		return
	}

	player, err := r.classes.New("Player")
	if err != nil {
		slog.Error("Failed to instantiate Player", "room", r.ID, "error", err)
		return
	}
	if name != "" {
		player.Assign(map[string]any{"name": name})
	}
	players.Set(string(id), player)
}

// playersMapLocked returns the root's players collection, or nil when the
// schema does not declare one. Caller must hold r.mu.
func (r *Room) playersMapLocked() *schema.Map {
	v, ok := r.state.Field("players")
	if !ok {
		return nil
	}
	m, ok := v.(*schema.Map)
	if !ok {
		return nil
	}
	return m
}
