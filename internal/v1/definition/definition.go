// Package definition loads and validates the data-only game definitions a
// room binds at creation. A definition is pure data: state schema, statechart
// and static game data. It is read-only after load.
package definition

import (
	"encoding/json"
	"fmt"

	"github.com/playforge/gamehost/internal/v1/actions"
	"github.com/playforge/gamehost/internal/v1/machine"
	"github.com/playforge/gamehost/internal/v1/schema"
)

// Definition is one parsed game definition.
type Definition struct {
	ID      string         `json:"id"`
	Name    string         `json:"name,omitempty"`
	Version string         `json:"version,omitempty"`
	Schema  *schema.Schema `json:"schema"`
	Machine *machine.Def   `json:"machine"`
	Data    map[string]any `json:"data,omitempty"`
	// Actions is an advisory allowlist of action names the machine uses.
	Actions []string `json:"actions,omitempty"`
}

// Parse decodes and validates a definition document.
func Parse(raw []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("definition: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate fails fast with a descriptive reason on any structural error. A
// room is never created over a definition that does not validate.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("definition: missing id")
	}
	if d.Schema == nil {
		return fmt.Errorf("definition %s: missing schema", d.ID)
	}
	if d.Machine == nil {
		return fmt.Errorf("definition %s: missing machine", d.ID)
	}

	if _, err := schema.Build(d.Schema); err != nil {
		return fmt.Errorf("definition %s: %w", d.ID, err)
	}
	if err := d.Machine.Validate(); err != nil {
		return fmt.Errorf("definition %s: %w", d.ID, err)
	}

	for _, name := range d.Actions {
		if !actions.Known(name) {
			return fmt.Errorf("definition %s: allowlists unknown action %q", d.ID, name)
		}
	}
	return nil
}

// BuildClasses resolves the schema into a fresh class table. Each room gets
// its own table so nothing is shared across rooms.
func (d *Definition) BuildClasses() (*schema.Table, error) {
	return schema.Build(d.Schema)
}
