// Package statepath resolves dotted paths against replicated game state.
//
// Paths descend through plain records (map[string]any), keyed collections,
// typed instances, and ordered collections. Keyed collections participate in
// navigation so that paths like "players.<sessionId>.score" resolve uniformly
// whether the container is a generated state class or a plain snapshot.
package statepath

import (
	"fmt"
	"strconv"
	"strings"
)

// Keyed is the surface a keyed collection exposes for path navigation.
type Keyed interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// Record is the surface a fixed-field container (a generated state class
// instance) exposes for path navigation. SetField returns an error for
// fields that were not declared at build time.
type Record interface {
	Field(name string) (any, bool)
	SetField(name string, value any) error
}

// Indexed is the surface an ordered collection exposes for path navigation.
type Indexed interface {
	At(i int) (any, bool)
	SetAt(i int, value any) error
	Len() int
}

// Split breaks a dotted path into segments, dropping empty ones.
func Split(path string) []string {
	parts := strings.Split(path, ".")
	segs := parts[:0]
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// Get reads the value at path. The second return is false when any segment
// fails to resolve.
func Get(root any, path string) (any, bool) {
	cur := root
	for _, seg := range Split(path) {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, seg string) (any, bool) {
	switch c := cur.(type) {
	case nil:
		return nil, false
	case Keyed:
		return c.Get(seg)
	case Record:
		return c.Field(seg)
	case map[string]any:
		v, ok := c[seg]
		return v, ok
	case Indexed:
		i, err := strconv.Atoi(seg)
		if err != nil {
			return nil, false
		}
		return c.At(i)
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	default:
		return nil, false
	}
}

// Set writes value at path, creating intermediate records where the
// containers allow it. Missing segments on plain records and keyed
// collections are created as empty records; typed instances only accept
// writes to declared fields. An empty path is a no-op.
func Set(root any, path string, value any) error {
	segs := Split(path)
	if len(segs) == 0 {
		return nil
	}

	cur := root
	for _, seg := range segs[:len(segs)-1] {
		next, err := descend(cur, seg)
		if err != nil {
			return fmt.Errorf("set %q: %w", path, err)
		}
		cur = next
	}

	if err := assign(cur, segs[len(segs)-1], value); err != nil {
		return fmt.Errorf("set %q: %w", path, err)
	}
	return nil
}

func descend(cur any, seg string) (any, error) {
	switch c := cur.(type) {
	case Keyed:
		if v, ok := c.Get(seg); ok && v != nil {
			return v, nil
		}
		child := map[string]any{}
		c.Set(seg, child)
		return child, nil
	case Record:
		v, ok := c.Field(seg)
		if !ok || v == nil {
			return nil, fmt.Errorf("segment %q is not set on %T", seg, cur)
		}
		return v, nil
	case map[string]any:
		if v, ok := c[seg]; ok && v != nil {
			return v, nil
		}
		child := map[string]any{}
		c[seg] = child
		return child, nil
	case Indexed:
		i, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("segment %q is not an index", seg)
		}
		v, ok := c.At(i)
		if !ok || v == nil {
			return nil, fmt.Errorf("index %d out of range", i)
		}
		return v, nil
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(c) {
			return nil, fmt.Errorf("segment %q does not index the slice", seg)
		}
		return c[i], nil
	default:
		return nil, fmt.Errorf("segment %q: %T is not a container", seg, cur)
	}
}

func assign(parent any, seg string, value any) error {
	switch p := parent.(type) {
	case Keyed:
		p.Set(seg, value)
		return nil
	case Record:
		return p.SetField(seg, value)
	case map[string]any:
		p[seg] = value
		return nil
	case Indexed:
		i, err := strconv.Atoi(seg)
		if err != nil {
			return fmt.Errorf("segment %q is not an index", seg)
		}
		return p.SetAt(i, value)
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(p) {
			return fmt.Errorf("segment %q does not index the slice", seg)
		}
		p[i] = value
		return nil
	default:
		return fmt.Errorf("cannot write field %q on %T", seg, parent)
	}
}
