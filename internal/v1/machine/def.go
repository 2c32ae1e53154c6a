// Package machine interprets the declarative statechart a game definition
// ships. The machine drives all game logic: inbound events select guarded
// transitions, transitions run whitelisted actions, and delayed transitions
// fire on the room's clock. The interpreter never mutates state directly —
// every write flows through the action runtime.
package machine

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/playforge/gamehost/internal/v1/actions"
)

// Def is a parsed statechart.
type Def struct {
	ID      string                `json:"id"`
	Initial string                `json:"initial"`
	Context map[string]any        `json:"context,omitempty"`
	States  map[string]*StateNode `json:"states"`
}

// StateNode is one state of the chart.
type StateNode struct {
	On    map[string]TransitionList `json:"on,omitempty"`
	After map[string]TransitionList `json:"after,omitempty"`
	Entry actions.DescriptorList    `json:"entry,omitempty"`
	Exit  actions.DescriptorList    `json:"exit,omitempty"`
	Type  string                    `json:"type,omitempty"`
}

// Final reports whether the state is absorbing.
func (n *StateNode) Final() bool { return n.Type == "final" }

// Transition is one candidate reaction to an event. A transition without a
// target is internal: its actions run but the state does not change.
type Transition struct {
	Target  string                 `json:"target,omitempty"`
	Cond    any                    `json:"cond,omitempty"`
	Actions actions.DescriptorList `json:"actions,omitempty"`
}

// TransitionList accepts a single transition or an ordered array of them.
type TransitionList []Transition

func (l *TransitionList) UnmarshalJSON(data []byte) error {
	var one Transition
	if err := json.Unmarshal(data, &one); err == nil {
		*l = TransitionList{one}
		return nil
	}
	var many []Transition
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// ParseDef decodes the machine section of a definition.
func ParseDef(raw json.RawMessage) (*Def, error) {
	var d Def
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("machine: %w", err)
	}
	return &d, nil
}

// Validate fails fast on structural definition errors: a missing initial
// state, transitions targeting unknown states, unparseable delays, and
// top-level actions outside the runtime catalogue.
func (d *Def) Validate() error {
	if d.Initial == "" {
		return fmt.Errorf("machine: missing initial state")
	}
	if len(d.States) == 0 {
		return fmt.Errorf("machine: no states declared")
	}
	if _, ok := d.States[d.Initial]; !ok {
		return fmt.Errorf("machine: initial state %q is not declared", d.Initial)
	}

	for name, node := range d.States {
		if node == nil {
			return fmt.Errorf("machine: state %q is empty", name)
		}
		for event, transitions := range node.On {
			if err := d.validateTransitions(name, transitions); err != nil {
				return fmt.Errorf("machine: state %q on %q: %w", name, event, err)
			}
		}
		for delay, transitions := range node.After {
			if _, err := strconv.ParseInt(delay, 10, 64); err != nil {
				return fmt.Errorf("machine: state %q after: delay %q is not a millisecond count", name, delay)
			}
			if err := d.validateTransitions(name, transitions); err != nil {
				return fmt.Errorf("machine: state %q after %q: %w", name, delay, err)
			}
		}
		if err := validateActions(node.Entry); err != nil {
			return fmt.Errorf("machine: state %q entry: %w", name, err)
		}
		if err := validateActions(node.Exit); err != nil {
			return fmt.Errorf("machine: state %q exit: %w", name, err)
		}
	}
	return nil
}

func (d *Def) validateTransitions(state string, transitions TransitionList) error {
	for _, t := range transitions {
		if t.Target != "" {
			if _, ok := d.States[t.Target]; !ok {
				return fmt.Errorf("target %q is not a declared state", t.Target)
			}
		}
		if err := validateActions(t.Actions); err != nil {
			return err
		}
	}
	return nil
}

func validateActions(list actions.DescriptorList) error {
	for _, a := range list {
		if !actions.Known(a.Type) {
			return fmt.Errorf("unknown action %q", a.Type)
		}
	}
	return nil
}

// EventTypes returns the union of event names appearing in any state's on
// map — the exact set of message types the host may accept.
func (d *Def) EventTypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, node := range d.States {
		for event := range node.On {
			if !seen[event] {
				seen[event] = true
				out = append(out, event)
			}
		}
	}
	return out
}
