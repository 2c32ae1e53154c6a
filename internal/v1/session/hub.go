package session

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/playforge/gamehost/internal/v1/auth"
	"github.com/playforge/gamehost/internal/v1/definition"
	"github.com/playforge/gamehost/internal/v1/metrics"
	"github.com/playforge/gamehost/internal/v1/ratelimit"
	"github.com/playforge/gamehost/internal/v1/room"
	"github.com/playforge/gamehost/internal/v1/types"
)

// Hub is the registry and factory for game rooms. It authenticates
// WebSocket upgrades, resolves the definition a room should run, creates
// rooms on demand and disposes them once empty.
type Hub struct {
	rooms               map[types.RoomIDType]*room.Room
	mu                  sync.Mutex
	validator           types.TokenValidator
	loader              *definition.Loader
	bus                 types.BusService
	limiter             *ratelimit.RateLimiter
	pendingRoomCleanups map[types.RoomIDType]*time.Timer
	cleanupGracePeriod  time.Duration
}

// NewHub creates a new Hub and configures it with its dependencies. bus and
// limiter may be nil for single-instance or unlimited deployments.
func NewHub(validator types.TokenValidator, loader *definition.Loader, bus types.BusService, limiter *ratelimit.RateLimiter) *Hub {
	return &Hub{
		rooms:               make(map[types.RoomIDType]*room.Room),
		validator:           validator,
		loader:              loader,
		bus:                 bus,
		limiter:             limiter,
		pendingRoomCleanups: make(map[types.RoomIDType]*time.Timer),
		cleanupGracePeriod:  5 * time.Second,
	}
}

// ServeWs authenticates the user, resolves the room's definition and hands
// the upgraded connection to the room.
//
// Route shape: GET /ws/rooms/:roomId?definition=<id>&token=<jwt>&name=<display>
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	tokenString := extractToken(c)
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
		return
	}

	claims, err := h.validator.ValidateToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if h.limiter != nil {
		if err := h.limiter.CheckWebSocketUser(c.Request.Context(), claims.Subject); err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connections for user"})
			return
		}
	}

	roomID := types.RoomIDType(c.Param("roomId"))
	definitionID := c.Query("definition")
	if definitionID == "" {
		definitionID = string(roomID)
	}

	gameRoom, err := h.getOrCreateRoom(c, roomID, definitionID)
	if err != nil {
		slog.Warn("Refusing connection: definition unavailable", "roomId", roomID, "definition", definitionID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown game definition"})
		return
	}

	upgrader := newUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return
	}

	displayName := resolveDisplayName(c.Query("name"), claims)

	client := &Client{
		conn:        conn,
		send:        make(chan []byte, 256),
		room:        gameRoom,
		ID:          types.SessionIDType(claims.Subject),
		DisplayName: types.DisplayNameType(displayName),
	}

	metrics.IncConnection()

	gameRoom.HandleClientConnect(client, displayName)

	go client.writePump()
	go client.readPump()
}

// getOrCreateRoom retrieves an existing room or binds a new one to the named
// definition. A pending cleanup for the room id is cancelled, so a quick
// reconnect keeps the room state.
func (h *Hub) getOrCreateRoom(c *gin.Context, roomID types.RoomIDType, definitionID string) (*room.Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.rooms[roomID]; ok {
		if timer, hasPendingCleanup := h.pendingRoomCleanups[roomID]; hasPendingCleanup {
			timer.Stop()
			delete(h.pendingRoomCleanups, roomID)
			slog.Info("Cancelled pending room cleanup due to reconnection", "roomId", roomID)
		}
		return existing, nil
	}

	def, err := h.loader.Load(c.Request.Context(), definition.RoomOptions{DefinitionID: definitionID})
	if err != nil {
		return nil, err
	}

	slog.Info("Creating new game room", "roomId", roomID, "definition", def.ID, "version", def.Version)
	newRoom, err := room.NewRoom(roomID, def, nil, h.removeRoom, h.bus, nil)
	if err != nil {
		return nil, err
	}
	h.rooms[roomID] = newRoom

	metrics.ActiveRooms.Inc()
	return newRoom, nil
}

// removeRoom schedules cleanup of an empty room after a grace period,
// letting clients reconnect without losing room state.
func (h *Hub) removeRoom(roomID types.RoomIDType) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existingTimer, exists := h.pendingRoomCleanups[roomID]; exists {
		existingTimer.Stop()
		delete(h.pendingRoomCleanups, roomID)
	}

	timer := time.AfterFunc(h.cleanupGracePeriod, func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		delete(h.pendingRoomCleanups, roomID)
		doomed, ok := h.rooms[roomID]
		if !ok || !doomed.IsRoomEmpty() {
			if ok {
				slog.Info("Cancelled room cleanup - room is no longer empty", "roomId", roomID)
			}
			return
		}

		delete(h.rooms, roomID)
		metrics.ActiveRooms.Dec()
		slog.Info("Removed empty room from hub after grace period", "roomId", roomID)

		go func() {
			ctx, cancel := contextWithTimeout(5 * time.Second)
			defer cancel()
			if err := doomed.Shutdown(ctx); err != nil {
				slog.Error("Room shutdown failed", "roomId", roomID, "error", err)
			}
		}()
	})

	h.pendingRoomCleanups[roomID] = timer
}

// Shutdown disposes every room. Used by graceful process shutdown.
func (h *Hub) Shutdown(timeout time.Duration) {
	h.mu.Lock()
	for id, timer := range h.pendingRoomCleanups {
		timer.Stop()
		delete(h.pendingRoomCleanups, id)
	}
	rooms := make([]*room.Room, 0, len(h.rooms))
	for id, gameRoom := range h.rooms {
		rooms = append(rooms, gameRoom)
		delete(h.rooms, id)
		metrics.ActiveRooms.Dec()
	}
	h.mu.Unlock()

	for _, gameRoom := range rooms {
		ctx, cancel := contextWithTimeout(timeout)
		if err := gameRoom.Shutdown(ctx); err != nil {
			slog.Error("Room shutdown failed", "roomId", gameRoom.GetID(), "error", err)
		}
		cancel()
	}
}

// newUpgrader builds the origin-checked WebSocket upgrader.
func newUpgrader() websocket.Upgrader {
	allowedOrigins := auth.GetAllowedOriginsFromEnv("ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	return websocket.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}
}
