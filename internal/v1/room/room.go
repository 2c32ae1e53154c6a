// Package room implements the data-driven game room host. A room binds one
// game definition at creation: it builds the replicated-state classes,
// instantiates the root state, starts the statechart interpreter, and owns
// the roster, the clock and the room's single execution stream. Clients
// observe replicated state and send events; the host is authoritative.
package room

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/playforge/gamehost/internal/v1/actions"
	"github.com/playforge/gamehost/internal/v1/definition"
	"github.com/playforge/gamehost/internal/v1/machine"
	"github.com/playforge/gamehost/internal/v1/schema"
	"github.com/playforge/gamehost/internal/v1/types"
)

// SchedulerFactory builds the room's scheduler around its serialising
// executor. Production rooms use the timer scheduler; tests inject a manual
// one to drive the clock deterministically.
type SchedulerFactory func(exec func(func())) machine.Scheduler

// Room is one independent game instance bound to a single definition.
type Room struct {
	ID types.RoomIDType

	// mu is the room's logical execution stream: event handling, scheduled
	// callbacks and roster changes all serialise on it.
	mu sync.Mutex

	def     *definition.Definition
	classes *schema.Table
	state   *schema.Instance
	runtime *actions.Runtime
	interp  *machine.Interpreter
	sched   machine.Scheduler

	clients    map[types.SessionIDType]types.ClientInterface
	eventTypes map[string]struct{}

	onEmpty    func(types.RoomIDType)
	bus        types.BusService
	instanceID string // distinguishes this pod on the bus

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRoom binds a definition and starts its interpreter. config is opaque
// per-room data surfaced to guards and actions under context.config.
// schedFactory may be nil for the default timer scheduler; busService may be
// nil for single-instance mode.
func NewRoom(id types.RoomIDType, def *definition.Definition, config map[string]any, onEmptyCallback func(types.RoomIDType), busService types.BusService, schedFactory SchedulerFactory) (*Room, error) {
	classes, err := def.BuildClasses()
	if err != nil {
		return nil, err
	}
	ensurePlayerClass(classes)

	machineContext := make(map[string]any, len(def.Machine.Context)+1)
	for k, v := range def.Machine.Context {
		machineContext[k] = v
	}
	if config != nil {
		machineContext["config"] = config
	}

	room := &Room{
		ID:         id,
		def:        def,
		classes:    classes,
		state:      classes.InstantiateRoot(),
		clients:    make(map[types.SessionIDType]types.ClientInterface),
		eventTypes: make(map[string]struct{}),
		onEmpty:    onEmptyCallback,
		bus:        busService,
		instanceID: uuid.New().String(),
	}
	room.ctx, room.cancel = context.WithCancel(context.Background())

	for _, eventType := range def.Machine.EventTypes() {
		room.eventTypes[eventType] = struct{}{}
	}

	env := &actions.Env{
		State:     room.state,
		Classes:   classes,
		Data:      def.Data,
		Context:   machineContext,
		Broadcast: room.broadcastGameEvent,
	}
	room.runtime = actions.NewRuntime(env)

	if schedFactory == nil {
		schedFactory = func(exec func(func())) machine.Scheduler {
			return machine.NewTimerScheduler(exec)
		}
	}
	room.sched = schedFactory(room.execSerialized)

	room.interp = machine.NewInterpreter(def.Machine, room.runtime, room.sched)
	env.Schedule = room.interp.ScheduleBatch

	if busService != nil {
		room.subscribeToBus()
	}

	room.mu.Lock()
	room.interp.Start()
	room.mu.Unlock()

	return room, nil
}

// GetID returns the room's identifier.
func (r *Room) GetID() types.RoomIDType {
	return r.ID
}

// CurrentState returns the interpreter's active state name.
func (r *Room) CurrentState() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interp.Current()
}

// StateSnapshot returns a plain copy of the replicated state.
func (r *Room) StateSnapshot() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Snapshot()
}

// execSerialized runs a scheduled callback on the room's execution stream
// and pushes the resulting state to clients.
func (r *Room) execSerialized(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn()
	r.replicateStateLocked()
}

// Shutdown stops the interpreter, cancels all scheduled work and waits for
// in-flight background publishes. A batch mid-execution finishes naturally.
func (r *Room) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.interp.Stop()
	r.mu.Unlock()

	r.sched.Stop()
	r.cancel()

	c := make(chan struct{})
	go func() {
		defer close(c)
		r.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replicateStateLocked pushes the full state snapshot to every connected
// client. Caller must hold r.mu.
func (r *Room) replicateStateLocked() {
	if len(r.clients) == 0 {
		return
	}
	env, err := types.NewEnvelope("state", r.state.Snapshot())
	if err != nil {
		slog.Error("Failed to marshal state snapshot", "room", r.ID, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal state envelope", "room", r.ID, "error", err)
		return
	}
	for _, client := range r.clients {
		client.SendRaw(data)
	}
}

// broadcastGameEvent delivers a definition-driven broadcast to every local
// client and fans it out to other pods. It runs on the room's execution
// stream (actions only execute there).
func (r *Room) broadcastGameEvent(event string, payload any) {
	env, err := types.NewEnvelope(event, payload)
	if err != nil {
		slog.Error("Failed to marshal broadcast", "room", r.ID, "event", event, "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		slog.Error("Failed to marshal broadcast envelope", "room", r.ID, "error", err)
		return
	}
	for _, client := range r.clients {
		client.SendRaw(data)
	}

	if r.bus != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.bus.Publish(r.ctx, string(r.ID), event, payload, r.instanceID); err != nil {
				slog.Warn("Bus publish failed", "room", r.ID, "event", event, "error", err)
			}
		}()
	}
}

// subscribeToBus relays broadcasts published by other pods to local clients.
func (r *Room) subscribeToBus() {
	r.bus.Subscribe(r.ctx, string(r.ID), &r.wg, func(roomID, event string, payload json.RawMessage, senderID string) {
		if senderID == r.instanceID {
			return // our own publish echoed back
		}
		data, err := json.Marshal(&types.Envelope{Type: event, Payload: payload})
		if err != nil {
			slog.Error("Failed to marshal relayed broadcast", "room", r.ID, "error", err)
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, client := range r.clients {
			client.SendRaw(data)
		}
	})
}

// ensurePlayerClass registers the minimal built-in Player when the
// definition does not declare one, so joins always have a shape to
// instantiate.
func ensurePlayerClass(classes *schema.Table) {
	if _, ok := classes.Class("Player"); ok {
		return
	}
	builtin := schema.NewClass("Player", map[string]schema.FieldType{
		"name":  {Kind: schema.KindPrimitive, Prim: "string"},
		"score": {Kind: schema.KindPrimitive, Prim: "number"},
	}, map[string]any{"score": 0.0})
	_ = classes.Declare(builtin)
}

// IsPlayer reports whether the session currently has a connected client in
// the room.
func (r *Room) IsPlayer(id types.SessionIDType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.clients[id]
	return exists
}

// IsRoomEmpty checks if the room has no connected clients.
func (r *Room) IsRoomEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) == 0
}
