package actions

import (
	"encoding/json"
	"fmt"
)

// Descriptor names one action and carries its raw parameter tree. Parameters
// are token-rendered immediately before dispatch, never earlier.
type Descriptor struct {
	Type   string
	Params map[string]any
}

// UnmarshalJSON accepts both descriptor spellings used by definitions:
//
//	{"type": "setState", "params": {"path": "...", "value": 1}}
//	{"type": "setState", "path": "...", "value": 1}
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, ok := raw["type"].(string)
	if !ok || t == "" {
		return fmt.Errorf("action descriptor missing type")
	}
	d.Type = t

	if p, ok := raw["params"].(map[string]any); ok {
		d.Params = p
		return nil
	}
	delete(raw, "type")
	d.Params = raw
	return nil
}

// DescriptorList decodes either a single descriptor or an array of them,
// matching how definitions spell entry/exit/transition actions.
type DescriptorList []Descriptor

func (l *DescriptorList) UnmarshalJSON(data []byte) error {
	var one Descriptor
	if err := json.Unmarshal(data, &one); err == nil {
		*l = DescriptorList{one}
		return nil
	}
	var many []Descriptor
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// FromValue converts an already-decoded parameter value (as found inside
// when/scheduleActions params) into descriptors. Entries that are not
// records with a type are dropped.
func FromValue(v any) []Descriptor {
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		items = []any{x}
	default:
		return nil
	}

	out := make([]Descriptor, 0, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		t, ok := rec["type"].(string)
		if !ok || t == "" {
			continue
		}
		d := Descriptor{Type: t}
		if p, ok := rec["params"].(map[string]any); ok {
			d.Params = p
		} else {
			params := make(map[string]any, len(rec)-1)
			for k, val := range rec {
				if k != "type" {
					params[k] = val
				}
			}
			d.Params = params
		}
		out = append(out, d)
	}
	return out
}
