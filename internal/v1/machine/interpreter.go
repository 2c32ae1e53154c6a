package machine

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/playforge/gamehost/internal/v1/actions"
	"github.com/playforge/gamehost/internal/v1/logic"
	"github.com/playforge/gamehost/internal/v1/metrics"
)

// Interpreter drives one room's statechart. It is not safe for concurrent
// use by itself — the owning room serialises Send, scheduled callbacks and
// disposal on its execution stream.
type Interpreter struct {
	def     *Def
	runtime *actions.Runtime
	sched   Scheduler

	current      string
	lastEvent    map[string]any
	afterCancels []CancelFunc
	started      bool
	stopped      bool
}

// NewInterpreter wires a parsed machine to its action runtime and clock.
// Views are assembled by the runtime, which owns the state, data and
// context references.
func NewInterpreter(def *Def, runtime *actions.Runtime, sched Scheduler) *Interpreter {
	return &Interpreter{
		def:     def,
		runtime: runtime,
		sched:   sched,
	}
}

// Current returns the name of the active state.
func (i *Interpreter) Current() string { return i.current }

// Start enters the initial state: its entry actions run and its delayed
// transitions are installed.
func (i *Interpreter) Start() {
	if i.started {
		return
	}
	i.started = true
	i.current = i.def.Initial
	node := i.def.States[i.current]
	i.runtime.Execute(node.Entry, i.lastEvent)
	i.installAfter(node)
}

// Stop cancels pending delayed transitions and marks the interpreter dead.
// The scheduler itself is owned and stopped by the room.
func (i *Interpreter) Stop() {
	i.stopped = true
	i.cancelAfter()
}

// Send dispatches one inbound event. Candidates for the current state are
// evaluated in order; the first whose guard passes is taken. Events with no
// matching transition are dropped silently.
func (i *Interpreter) Send(eventType string, payload map[string]any) {
	if !i.started || i.stopped {
		return
	}
	start := time.Now()

	event := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		event[k] = v
	}
	event["type"] = eventType
	i.lastEvent = event

	node := i.def.States[i.current]
	transitions, ok := node.On[eventType]
	if !ok {
		slog.Debug("Event not handled in current state", "event", eventType, "state", i.current)
		metrics.EventsDispatched.WithLabelValues(eventType, "unhandled").Inc()
		return
	}

	t, ok := i.selectTransition(transitions, event)
	if !ok {
		metrics.EventsDispatched.WithLabelValues(eventType, "guarded_out").Inc()
		return
	}

	i.take(node, t)

	metrics.EventsDispatched.WithLabelValues(eventType, "ok").Inc()
	metrics.EventDispatchDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}

// take runs one selected transition: exit actions when the state changes,
// then the transition's own actions, then target entry and timer install.
func (i *Interpreter) take(node *StateNode, t Transition) {
	changes := t.Target != "" && t.Target != i.current
	if changes {
		i.cancelAfter()
		i.runtime.Execute(node.Exit, i.lastEvent)
	}

	i.runtime.Execute(t.Actions, i.lastEvent)

	if t.Target == "" {
		return
	}
	if t.Target == i.current && !changes {
		// Self-target: re-enter without exiting, restarting the timers.
		i.cancelAfter()
	}
	i.current = t.Target
	target := i.def.States[t.Target]
	i.runtime.Execute(target.Entry, i.lastEvent)
	i.installAfter(target)
}

func (i *Interpreter) selectTransition(candidates TransitionList, event map[string]any) (Transition, bool) {
	for _, t := range candidates {
		if t.Cond == nil {
			return t, true
		}
		ok, err := logic.EvalBool(t.Cond, i.runtime.View(event))
		if err != nil {
			// A malformed guard is false; the search continues.
			slog.Warn("Guard evaluation failed", "state", i.current, "error", err)
			continue
		}
		if ok {
			return t, true
		}
	}
	return Transition{}, false
}

// installAfter arms one timer per after entry of the state just entered.
// The captured event is the one that caused entry, so delayed transition
// actions template against it.
func (i *Interpreter) installAfter(node *StateNode) {
	for delay, transitions := range node.After {
		ms, err := strconv.ParseInt(delay, 10, 64)
		if err != nil {
			slog.Warn("Ignoring unparseable after delay", "delay", delay, "state", i.current)
			continue
		}
		state := i.current
		ts := transitions
		event := i.lastEvent
		cancel := i.sched.Schedule(time.Duration(ms)*time.Millisecond, func() {
			i.fireAfter(state, ts, event)
		})
		i.afterCancels = append(i.afterCancels, cancel)
	}
}

func (i *Interpreter) fireAfter(state string, transitions TransitionList, event map[string]any) {
	// Exit already cancels these, but a callback may have been mid-flight.
	if i.stopped || i.current != state {
		return
	}
	t, ok := i.selectTransition(transitions, event)
	if !ok {
		return
	}
	i.lastEvent = event
	i.take(i.def.States[state], t)
}

func (i *Interpreter) cancelAfter() {
	for _, cancel := range i.afterCancels {
		cancel()
	}
	i.afterCancels = nil
}

// ScheduleBatch queues an action batch on the room clock, rendering it at
// fire time against the event snapshot captured when it was scheduled.
func (i *Interpreter) ScheduleBatch(delayMs int64, batch []actions.Descriptor, event map[string]any) {
	i.sched.Schedule(time.Duration(delayMs)*time.Millisecond, func() {
		if i.stopped {
			return
		}
		i.runtime.Execute(batch, event)
		metrics.ScheduledBatches.WithLabelValues("fired").Inc()
	})
	metrics.ScheduledBatches.WithLabelValues("scheduled").Inc()
}
