package schema

import (
	"fmt"
	"sort"
)

// Instance is one live object of a generated state class. Fields are
// addressed by name through the statepath interfaces; only declared fields
// are readable or writable.
type Instance struct {
	class  *Class
	fields map[string]any
}

// Class returns the instance's class descriptor.
func (in *Instance) Class() *Class { return in.class }

// Field reads a declared field. The second return is false for undeclared
// or unset fields, so dotted-path resolution reports them as undefined.
func (in *Instance) Field(name string) (any, bool) {
	if _, declared := in.class.Fields[name]; !declared {
		return nil, false
	}
	v, set := in.fields[name]
	return v, set
}

// SetField writes a declared field. Writing an undeclared field is an error:
// the field set of a class is fixed at build time.
func (in *Instance) SetField(name string, value any) error {
	if _, declared := in.class.Fields[name]; !declared {
		return fmt.Errorf("class %s has no field %q", in.class.Name, name)
	}
	in.fields[name] = value
	return nil
}

// Assign copies a record of field values onto the instance. Unknown keys are
// skipped so that data rows carrying extra columns stay usable. Slice values
// targeting array fields are copied element by element.
func (in *Instance) Assign(values map[string]any) {
	for name, v := range values {
		ft, declared := in.class.Fields[name]
		if !declared {
			continue
		}
		if ft.Kind == KindArray {
			if items, ok := v.([]any); ok {
				arr := NewArray()
				for _, item := range items {
					arr.Append(item)
				}
				in.fields[name] = arr
			}
			continue
		}
		in.fields[name] = v
	}
}

// Snapshot converts the instance graph to plain data for guard evaluation,
// token expansion and replication.
func (in *Instance) Snapshot() map[string]any {
	out := make(map[string]any, len(in.fields))
	for name, v := range in.fields {
		out[name] = Plain(v)
	}
	return out
}

// Map is a keyed collection of instances or primitives. Keys reports entries
// in insertion order; Snapshot returns a plain, unordered record.
type Map struct {
	entries map[string]any
	keys    []string
}

// NewMap returns an empty keyed collection.
func NewMap() *Map {
	return &Map{entries: map[string]any{}}
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *Map) Set(key string, value any) {
	if _, exists := m.entries[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = value
}

func (m *Map) Delete(key string) {
	if _, exists := m.entries[key]; !exists {
		return
	}
	delete(m.entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Len() int { return len(m.entries) }

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Snapshot converts the collection to a plain record.
func (m *Map) Snapshot() map[string]any {
	out := make(map[string]any, len(m.entries))
	for k, v := range m.entries {
		out[k] = Plain(v)
	}
	return out
}

// Array is an ordered collection of instances or primitives.
type Array struct {
	items []any
}

// NewArray returns an empty ordered collection.
func NewArray() *Array { return &Array{} }

func (a *Array) Append(v any) { a.items = append(a.items, v) }

func (a *Array) At(i int) (any, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

func (a *Array) SetAt(i int, v any) error {
	if i < 0 || i >= len(a.items) {
		return fmt.Errorf("index %d out of range (len %d)", i, len(a.items))
	}
	a.items[i] = v
	return nil
}

func (a *Array) Len() int { return len(a.items) }

// Snapshot converts the collection to a plain slice.
func (a *Array) Snapshot() []any {
	out := make([]any, len(a.items))
	for i, v := range a.items {
		out[i] = Plain(v)
	}
	return out
}

// Plain converts any state value to plain data: instances and collections
// become records and slices, primitives pass through.
func Plain(v any) any {
	switch x := v.(type) {
	case *Instance:
		return x.Snapshot()
	case *Map:
		return x.Snapshot()
	case *Array:
		return x.Snapshot()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Plain(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Plain(item)
		}
		return out
	default:
		return v
	}
}

// FieldNames returns the class's declared field names, sorted for stable
// error messages and tests.
func (c *Class) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
