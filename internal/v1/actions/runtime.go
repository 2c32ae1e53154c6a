// Package actions implements the whitelisted operation catalogue game
// definitions may invoke. Actions are the only writers of replicated state:
// the statechart interpreter renders each descriptor's parameters against the
// current view and hands it to the runtime. A misbehaving action degrades
// itself, never the room — unknown names and failed writes are logged and
// skipped, and sibling actions still run.
package actions

import (
	"fmt"
	"log/slog"

	"github.com/playforge/gamehost/internal/v1/logic"
	"github.com/playforge/gamehost/internal/v1/metrics"
	"github.com/playforge/gamehost/internal/v1/schema"
	"github.com/playforge/gamehost/internal/v1/statepath"
	"github.com/playforge/gamehost/internal/v1/tmpl"
)

// Env carries the dependencies the catalogue operates on. The room wires one
// Env per interpreter; nothing here is shared across rooms.
type Env struct {
	State   *schema.Instance
	Classes *schema.Table
	Data    map[string]any
	Context map[string]any

	// Broadcast emits an event to every connected client.
	Broadcast func(event string, data any)
	// Schedule queues a batch of actions to run once after delayMs on the
	// room's clock, together with the event snapshot to render them against.
	Schedule func(delayMs int64, batch []Descriptor, event map[string]any)
}

// Runtime dispatches descriptors against an Env.
type Runtime struct {
	env *Env
}

func NewRuntime(env *Env) *Runtime {
	return &Runtime{env: env}
}

// Known reports whether name is in the catalogue.
func Known(name string) bool {
	switch name {
	case "setState", "increment", "incrementIfEqual", "setFromData", "setFromArray",
		"createInstance", "createInstanceFromArray", "ensureInstanceAtPath",
		"when", "scheduleActions", "broadcast", "log":
		return true
	}
	return false
}

// Execute runs a list of descriptors in order. event is the inbound or
// captured event the parameters template against. The render view is rebuilt
// with a fresh state snapshot before every action so earlier actions' writes
// are visible to later ones in the same list.
func (r *Runtime) Execute(list []Descriptor, event map[string]any) {
	for _, d := range list {
		r.executeOne(d, event)
	}
}

// View assembles the {event, state, context, data} view actions and guards
// render against. State is a plain snapshot of the live instance graph.
func (r *Runtime) View(event map[string]any) map[string]any {
	return map[string]any{
		"event":   event,
		"state":   r.env.State.Snapshot(),
		"context": r.env.Context,
		"data":    r.env.Data,
	}
}

func (r *Runtime) executeOne(d Descriptor, event map[string]any) {
	if !Known(d.Type) {
		slog.Warn("Unknown action in definition, skipping", "action", d.Type)
		metrics.ActionsExecuted.WithLabelValues(d.Type, "unknown").Inc()
		return
	}

	params := r.renderParams(d, r.View(event))
	var err error
	switch d.Type {
	case "setState":
		err = r.setState(params)
	case "increment":
		err = r.increment(params)
	case "incrementIfEqual":
		err = r.incrementIfEqual(params)
	case "setFromData":
		err = r.setFromData(params)
	case "setFromArray":
		err = r.setFromArray(params)
	case "createInstance":
		err = r.createInstance(params)
	case "createInstanceFromArray":
		err = r.createInstanceFromArray(params)
	case "ensureInstanceAtPath":
		err = r.ensureInstanceAtPath(params)
	case "when":
		err = r.when(params, event)
	case "scheduleActions":
		err = r.scheduleActions(params, event)
	case "broadcast":
		err = r.broadcast(params)
	case "log":
		slog.Info("Definition log", "message", tmpl.Stringify(params["message"]))
	}

	if err != nil {
		slog.Warn("Action failed, skipping", "action", d.Type, "error", err)
		metrics.ActionsExecuted.WithLabelValues(d.Type, "error").Inc()
		return
	}
	metrics.ActionsExecuted.WithLabelValues(d.Type, "ok").Inc()
}

// renderParams expands tokens in every parameter except nested action lists,
// which render when they themselves dispatch (scheduled batches against the
// event captured at schedule time).
func (r *Runtime) renderParams(d Descriptor, view map[string]any) map[string]any {
	out := make(map[string]any, len(d.Params))
	for k, v := range d.Params {
		switch k {
		case "then", "else", "actions":
			out[k] = v
		default:
			out[k] = tmpl.Render(v, view)
		}
	}
	return out
}

// --- Core mutators ---

func (r *Runtime) setState(params map[string]any) error {
	path, err := stringParam(params, "path")
	if err != nil {
		return err
	}
	value, present := params["value"]
	if !present {
		// Absent values are a no-op; an explicit null is a legitimate write.
		return nil
	}
	return statepath.Set(r.env.State, path, value)
}

func (r *Runtime) increment(params map[string]any) error {
	path, err := stringParam(params, "path")
	if err != nil {
		return err
	}
	delta := numberParam(params, "delta", 1)

	cur := 0.0
	if v, ok := statepath.Get(r.env.State, path); ok {
		if n, ok := asNumber(v); ok {
			cur = n
		}
	}
	return statepath.Set(r.env.State, path, cur+delta)
}

func (r *Runtime) incrementIfEqual(params map[string]any) error {
	equalsPath, err := stringParam(params, "equalsPath")
	if err != nil {
		return err
	}
	expected := tmpl.Stringify(params["value"])

	actual, ok := statepath.Get(r.env.State, equalsPath)
	if !ok || tmpl.Stringify(actual) != expected {
		return nil
	}
	return r.increment(params)
}

func (r *Runtime) setFromData(params map[string]any) error {
	statePath, err := stringParam(params, "statePath")
	if err != nil {
		return err
	}
	dataPath, err := stringParam(params, "dataPath")
	if err != nil {
		return err
	}
	v, ok := statepath.Get(r.env.Data, dataPath)
	if !ok {
		return fmt.Errorf("data path %q not found", dataPath)
	}
	return statepath.Set(r.env.State, statePath, v)
}

func (r *Runtime) setFromArray(params map[string]any) error {
	statePath, err := stringParam(params, "statePath")
	if err != nil {
		return err
	}
	element, err := r.dataArrayElement(params)
	if err != nil {
		return err
	}
	if key, ok := params["key"].(string); ok && key != "" {
		v, found := statepath.Get(element, key)
		if !found {
			return fmt.Errorf("key %q not found in array element", key)
		}
		element = v
	}
	return statepath.Set(r.env.State, statePath, element)
}

// --- Instance creation ---

func (r *Runtime) createInstance(params map[string]any) error {
	in, statePath, err := r.newInstanceFromParams(params)
	if err != nil {
		return err
	}
	if data, ok := params["data"].(map[string]any); ok {
		in.Assign(data)
	}
	return statepath.Set(r.env.State, statePath, in)
}

func (r *Runtime) createInstanceFromArray(params map[string]any) error {
	in, statePath, err := r.newInstanceFromParams(params)
	if err != nil {
		return err
	}
	element, err := r.dataArrayElement(params)
	if err != nil {
		return err
	}
	record, ok := element.(map[string]any)
	if !ok {
		return fmt.Errorf("array element is %T, not a record", element)
	}
	in.Assign(record)
	return statepath.Set(r.env.State, statePath, in)
}

func (r *Runtime) ensureInstanceAtPath(params map[string]any) error {
	statePath, err := stringParam(params, "statePath")
	if err != nil {
		return err
	}
	if v, ok := statepath.Get(r.env.State, statePath); ok {
		if _, isInstance := v.(*schema.Instance); isInstance {
			return nil
		}
	}
	return r.createInstance(params)
}

func (r *Runtime) newInstanceFromParams(params map[string]any) (*schema.Instance, string, error) {
	className, err := stringParam(params, "className")
	if err != nil {
		return nil, "", err
	}
	statePath, err := stringParam(params, "statePath")
	if err != nil {
		return nil, "", err
	}
	in, err := r.env.Classes.New(className)
	if err != nil {
		return nil, "", err
	}
	return in, statePath, nil
}

// --- Control flow ---

func (r *Runtime) when(params map[string]any, event map[string]any) error {
	condView := map[string]any{
		"state":   r.env.State.Snapshot(),
		"data":    r.env.Data,
		"context": r.env.Context,
	}
	ok, err := logic.EvalBool(params["cond"], condView)
	if err != nil {
		return fmt.Errorf("when cond: %w", err)
	}

	branch := "else"
	if ok {
		branch = "then"
	}
	r.Execute(FromValue(params[branch]), event)
	return nil
}

func (r *Runtime) scheduleActions(params map[string]any, event map[string]any) error {
	if r.env.Schedule == nil {
		return fmt.Errorf("scheduling is not available")
	}
	delay := int64(numberParam(params, "delayMs", 0))
	batch := FromValue(params["actions"])
	if len(batch) == 0 {
		return nil
	}
	r.env.Schedule(delay, batch, event)
	return nil
}

// --- Side channels ---

func (r *Runtime) broadcast(params map[string]any) error {
	if r.env.Broadcast == nil {
		return fmt.Errorf("broadcast is not available")
	}
	event, err := stringParam(params, "event")
	if err != nil {
		return err
	}
	r.env.Broadcast(event, params["data"])
	return nil
}

// dataArrayElement picks an element from a definition data array by literal
// index or by a numeric value read from state.
func (r *Runtime) dataArrayElement(params map[string]any) (any, error) {
	arrayPath, err := stringParam(params, "arrayPath")
	if err != nil {
		return nil, err
	}
	raw, ok := statepath.Get(r.env.Data, arrayPath)
	if !ok {
		return nil, fmt.Errorf("data array %q not found", arrayPath)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("data path %q is %T, not an array", arrayPath, raw)
	}

	var idx int
	switch {
	case params["index"] != nil:
		n, ok := asNumber(params["index"])
		if !ok {
			return nil, fmt.Errorf("index is not numeric")
		}
		idx = int(n)
	default:
		isp, err := stringParam(params, "indexStatePath")
		if err != nil {
			return nil, fmt.Errorf("missing index or indexStatePath")
		}
		v, found := statepath.Get(r.env.State, isp)
		if !found {
			return nil, fmt.Errorf("indexStatePath %q not found", isp)
		}
		n, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("indexStatePath %q is not numeric", isp)
		}
		idx = int(n)
	}

	if idx < 0 || idx >= len(arr) {
		return nil, fmt.Errorf("index %d out of range (len %d)", idx, len(arr))
	}
	return arr[idx], nil
}

// --- Parameter helpers ---

func stringParam(params map[string]any, key string) (string, error) {
	s, ok := params[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("missing or invalid %q parameter", key)
	}
	return s, nil
}

func numberParam(params map[string]any, key string, fallback float64) float64 {
	if v, ok := params[key]; ok {
		if n, ok := asNumber(v); ok {
			return n
		}
	}
	return fallback
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
