package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxDepth bounds how deeply nested a decoded tree may be. Input deeper than
// this is rejected at the decoding boundary so every in-memory forest has a
// bounded height.
const MaxDepth = 256

// ErrTooDeep is returned when input nests nodes deeper than MaxDepth.
var ErrTooDeep = errors.New("block tree exceeds maximum depth")

// ParseNode decodes a single node from JSON.
func ParseNode(data []byte) (*Node, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return FromValue(v)
}

// ParseForest decodes a forest from a JSON array. JSON null decodes to an
// empty forest.
func ParseForest(data []byte) (Forest, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return ForestFromValue(v)
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode json: trailing data after value")
	}
	return v, nil
}

// FromValue converts a generic JSON value (as produced by encoding/json,
// ojg or yaml.v3) into a node.
func FromValue(v any) (*Node, error) {
	return fromValue(v, 0)
}

// ForestFromValue converts a generic JSON array into a forest.
func ForestFromValue(v any) (Forest, error) {
	switch t := v.(type) {
	case nil:
		return Forest{}, nil
	case []any:
		return forestFromSlice(t, 0)
	default:
		return nil, fmt.Errorf("forest must be a JSON array, got %T", v)
	}
}

func forestFromSlice(items []any, depth int) (Forest, error) {
	out := make(Forest, 0, len(items))
	for i, item := range items {
		n, err := fromValue(item, depth)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func fromValue(v any, depth int) (*Node, error) {
	if depth >= MaxDepth {
		return nil, ErrTooDeep
	}
	obj, ok := asObject(v)
	if !ok {
		return Opaque(v), nil
	}
	n := &Node{fields: make(map[string]any, len(obj))}
	for k, val := range obj {
		slot, isSlot := slotForKey(k)
		items, isList := val.([]any)
		if !isSlot || !isList {
			// A slot key holding a non-list is payload, kept verbatim.
			n.fields[k] = val
			continue
		}
		kids, err := forestFromSlice(items, depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		n.slots[slot] = kids
		n.present[slot] = true
	}
	return n, nil
}

func asObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			m[ks] = e
		}
		return m, true
	default:
		return nil, false
	}
}

func slotForKey(k string) (Slot, bool) {
	for _, s := range Slots {
		if s.Key() == k {
			return s, true
		}
	}
	return 0, false
}

// Value converts n back into a generic JSON value. Present slots are emitted
// as arrays, empty ones as [].
func (n *Node) Value() any {
	if n == nil {
		return nil
	}
	if !n.IsObject() {
		return n.opaque
	}
	m := make(map[string]any, len(n.fields)+2)
	for k, v := range n.fields {
		m[k] = v
	}
	for _, s := range Slots {
		if n.present[s] {
			m[s.Key()] = Forest(n.slots[s]).Value()
		}
	}
	return m
}

// Value converts the forest into a generic JSON array.
func (f Forest) Value() []any {
	out := make([]any, len(f))
	for i, n := range f {
		out[i] = n.Value()
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value())
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := ParseNode(data)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

// MarshalJSON implements json.Marshaler. A nil forest encodes as [].
func (f Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Forest) UnmarshalJSON(data []byte) error {
	parsed, err := ParseForest(data)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Pretty renders the node as indented JSON, the form shown in editors.
func (n *Node) Pretty() string {
	b, err := json.MarshalIndent(n.Value(), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", n.Value())
	}
	return string(b)
}

// Equal reports whether two forests encode to the same JSON.
func Equal(a, b Forest) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}
