// Package datamodel implements the recursive key/value tree backing a
// statechart's data model, plus location-path parsing and safe nested
// assignment.
package datamodel

import "fmt"

// undefinedType is a distinct sentinel so a missing value reads as
// "undefined" rather than Go's nil.
type undefinedType struct{}

func (undefinedType) String() string { return "undefined" }

// Undefined is returned by Get for a path that does not resolve.
var Undefined any = undefinedType{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

// Tree is a datamodel snapshot: string keys to scalars, []any, or nested
// Tree values.
type Tree map[string]any

// Clone returns a deep copy of t (maps and slices are copied; scalars are
// shared, which is safe since they are immutable in Go).
func (t Tree) Clone() Tree {
	return cloneValue(t).(Tree)
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case Tree:
		out := make(Tree, len(vv))
		for k, val := range vv {
			out[k] = cloneValue(val)
		}
		return out
	case map[string]any:
		out := make(Tree, len(vv))
		for k, val := range vv {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

// Get resolves a parsed location path against t. Returns Undefined (not an
// error) if any segment along the way is missing.
func Get(t Tree, path []Segment) (any, bool) {
	var cur any = t
	for _, seg := range path {
		switch c := cur.(type) {
		case Tree:
			v, ok := c[seg.Key]
			if !ok {
				return Undefined, false
			}
			cur = v
		case map[string]any:
			v, ok := c[seg.Key]
			if !ok {
				return Undefined, false
			}
			cur = v
		case []any:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(c) {
				return Undefined, false
			}
			cur = c[seg.Index]
		default:
			return Undefined, false
		}
	}
	return cur, true
}

// Assign returns a new Tree with path set to value, creating intermediate
// mappings as needed. It fails if a non-container is traversed partway
// through the path (e.g. assigning into `x.y` when `x` already holds a
// scalar).
func Assign(t Tree, path []Segment, value any) (Tree, error) {
	if len(path) == 0 {
		return t, fmt.Errorf("datamodel: empty assignment path")
	}
	out := t.Clone()
	if out == nil {
		out = Tree{}
	}
	if err := assignInto(out, path, value); err != nil {
		return nil, err
	}
	return out, nil
}

// assignInto mutates container (a Tree or []any, reached via the already
// consumed prefix of path) to set the remaining path to value.
func assignInto(container any, path []Segment, value any) error {
	seg := path[0]
	last := len(path) == 1

	switch c := container.(type) {
	case Tree:
		if seg.IsIndex {
			return fmt.Errorf("datamodel: cannot index into mapping with [%d]", seg.Index)
		}
		if last {
			c[seg.Key] = value
			return nil
		}
		next, ok := c[seg.Key]
		if !ok {
			next = newContainerFor(path[1])
			c[seg.Key] = next
		}
		nextContainer, err := asContainer(next)
		if err != nil {
			return fmt.Errorf("datamodel: assigning %q: %w", seg.Key, err)
		}
		if list, isList := nextContainer.([]any); isList && path[1].IsIndex {
			for path[1].Index >= len(list) {
				list = append(list, Undefined)
			}
			nextContainer = list
		}
		if err := assignInto(nextContainer, path[1:], value); err != nil {
			return err
		}
		c[seg.Key] = nextContainer
		return nil
	case []any:
		if !seg.IsIndex {
			return fmt.Errorf("datamodel: cannot key into list with .%s", seg.Key)
		}
		for seg.Index >= len(c) {
			c = append(c, Undefined)
		}
		if last {
			c[seg.Index] = value
			return replaceSliceInParent(container, c)
		}
		next := c[seg.Index]
		nextContainer, err := asContainer(next)
		if err != nil {
			nextContainer = newContainerFor(path[1])
		}
		if list, isList := nextContainer.([]any); isList && path[1].IsIndex {
			for path[1].Index >= len(list) {
				list = append(list, Undefined)
			}
			nextContainer = list
		}
		if err := assignInto(nextContainer, path[1:], value); err != nil {
			return err
		}
		c[seg.Index] = nextContainer
		return replaceSliceInParent(container, c)
	default:
		return fmt.Errorf("datamodel: cannot traverse into non-container value %T", container)
	}
}

// replaceSliceInParent is a no-op: a slice grown by append inside
// assignInto is not visible through the caller's copy of the slice. For
// that reason assignInto grows a nested list to the length the next index
// needs before recursing into it, and stores the grown list back into its
// parent afterwards. The value Assign starts from is always a Tree, so no
// list ever lacks a parent to store it.
func replaceSliceInParent(_ any, _ []any) error {
	return nil
}

func asContainer(v any) (any, error) {
	switch vv := v.(type) {
	case Tree:
		return vv, nil
	case map[string]any:
		return Tree(vv), nil
	case []any:
		return vv, nil
	default:
		return nil, fmt.Errorf("cannot traverse through non-container value %T", v)
	}
}

func newContainerFor(next Segment) any {
	if next.IsIndex {
		return []any{}
	}
	return Tree{}
}
