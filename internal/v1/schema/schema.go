// Package schema builds replicated-state classes from the definition DSL.
//
// A definition declares named classes with typed fields; the builder turns
// those declarations into a class table from which the room instantiates the
// root state and actions create nested instances. The set of declared fields
// of a class is fixed at build time — instances never grow unknown fields.
package schema

import (
	"encoding/json"
	"fmt"
)

// FieldKind discriminates the four field categories of the DSL.
type FieldKind int

const (
	KindPrimitive FieldKind = iota
	KindRef
	KindMap
	KindArray
)

func (k FieldKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindRef:
		return "ref"
	case KindMap:
		return "map"
	default:
		return "array"
	}
}

// FieldSpec is the raw JSON form of a field declaration:
//
//	{"type": "string"} | {"ref": "Class"} | {"map": "Class"} | {"array": "Class"|"number"|...}
type FieldSpec struct {
	Type  string `json:"type,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Map   string `json:"map,omitempty"`
	Array string `json:"array,omitempty"`
}

// Schema is the state DSL as it appears in a game definition.
type Schema struct {
	Root     string                          `json:"root"`
	Classes  map[string]map[string]FieldSpec `json:"classes"`
	Defaults map[string]map[string]any       `json:"defaults,omitempty"`
}

// FieldType is the resolved metadata for one declared field.
type FieldType struct {
	Kind  FieldKind
	Prim  string // primitive name for KindPrimitive and primitive arrays
	Class *Class // element/target class for ref, map and class arrays
}

// Class describes one generated state class.
type Class struct {
	Name     string
	Fields   map[string]FieldType
	defaults map[string]any
}

// Table holds every class built from a schema, keyed by name.
type Table struct {
	root    *Class
	classes map[string]*Class
}

var primitives = map[string]bool{"string": true, "number": true, "boolean": true}

// Build resolves a schema into a class table. Classes are declared in a
// first pass so field types may reference classes declared later.
func Build(s *Schema) (*Table, error) {
	if s == nil || s.Root == "" {
		return nil, fmt.Errorf("schema: missing root class name")
	}
	if len(s.Classes) == 0 {
		return nil, fmt.Errorf("schema: no classes declared")
	}

	t := &Table{classes: make(map[string]*Class, len(s.Classes))}
	for name := range s.Classes {
		t.classes[name] = &Class{Name: name, Fields: map[string]FieldType{}}
	}

	for name, fields := range s.Classes {
		cls := t.classes[name]
		for fieldName, spec := range fields {
			ft, err := t.resolveField(spec)
			if err != nil {
				return nil, fmt.Errorf("schema: class %s field %s: %w", name, fieldName, err)
			}
			cls.Fields[fieldName] = ft
		}
	}

	root, ok := t.classes[s.Root]
	if !ok {
		return nil, fmt.Errorf("schema: root class %q is not declared", s.Root)
	}
	t.root = root

	for name, defaults := range s.Defaults {
		cls, ok := t.classes[name]
		if !ok {
			return nil, fmt.Errorf("schema: defaults reference undeclared class %q", name)
		}
		cls.defaults = defaults
	}

	return t, nil
}

func (t *Table) resolveField(spec FieldSpec) (FieldType, error) {
	switch {
	case spec.Type != "":
		if !primitives[spec.Type] {
			return FieldType{}, fmt.Errorf("unknown primitive %q", spec.Type)
		}
		return FieldType{Kind: KindPrimitive, Prim: spec.Type}, nil
	case spec.Ref != "":
		cls, ok := t.classes[spec.Ref]
		if !ok {
			return FieldType{}, fmt.Errorf("ref to undeclared class %q", spec.Ref)
		}
		return FieldType{Kind: KindRef, Class: cls}, nil
	case spec.Map != "":
		cls, ok := t.classes[spec.Map]
		if !ok {
			return FieldType{}, fmt.Errorf("map of undeclared class %q", spec.Map)
		}
		return FieldType{Kind: KindMap, Class: cls}, nil
	case spec.Array != "":
		if primitives[spec.Array] {
			return FieldType{Kind: KindArray, Prim: spec.Array}, nil
		}
		cls, ok := t.classes[spec.Array]
		if !ok {
			return FieldType{}, fmt.Errorf("array of undeclared class or primitive %q", spec.Array)
		}
		return FieldType{Kind: KindArray, Class: cls}, nil
	default:
		return FieldType{}, fmt.Errorf("empty field declaration")
	}
}

// Root returns the schema's root class.
func (t *Table) Root() *Class { return t.root }

// Class looks up a class by name.
func (t *Table) Class(name string) (*Class, bool) {
	c, ok := t.classes[name]
	return c, ok
}

// Declare registers an extra class after Build. It is used by the host for
// the built-in Player fallback and refuses to shadow a declared class.
func (t *Table) Declare(cls *Class) error {
	if _, exists := t.classes[cls.Name]; exists {
		return fmt.Errorf("schema: class %q already declared", cls.Name)
	}
	t.classes[cls.Name] = cls
	return nil
}

// New constructs an instance of the named class. Map and array fields start
// as fresh empty collections; primitive defaults declared for the class are
// assigned; ref and undefaulted primitive fields stay unset.
func (t *Table) New(className string) (*Instance, error) {
	cls, ok := t.classes[className]
	if !ok {
		return nil, fmt.Errorf("schema: unknown class %q", className)
	}
	return newInstance(cls), nil
}

// InstantiateRoot builds the root instance with its declared defaults.
func (t *Table) InstantiateRoot() *Instance {
	return newInstance(t.root)
}

func newInstance(cls *Class) *Instance {
	in := &Instance{class: cls, fields: map[string]any{}}
	for name, ft := range cls.Fields {
		switch ft.Kind {
		case KindMap:
			in.fields[name] = NewMap()
		case KindArray:
			in.fields[name] = NewArray()
		}
	}
	for name, v := range cls.defaults {
		ft, ok := cls.Fields[name]
		if !ok || ft.Kind != KindPrimitive {
			// Non-primitive defaults are the job of explicit actions.
			continue
		}
		in.fields[name] = v
	}
	return in
}

// NewClass builds a class outside the DSL, for host-provided fallbacks.
func NewClass(name string, fields map[string]FieldType, defaults map[string]any) *Class {
	return &Class{Name: name, Fields: fields, defaults: defaults}
}

// ParseSchema decodes the schema section of a definition.
func ParseSchema(raw json.RawMessage) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &s, nil
}
