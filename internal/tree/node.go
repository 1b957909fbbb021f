// Package tree implements the block tree core: the recursive node model,
// identity lookup, and the pure mutation primitives used by the editor.
//
// A Forest is a value. Every operation in this package returns a new Forest
// and leaves its arguments untouched; unchanged subtrees are shared between
// the input and the result.
package tree

import (
	"maps"
)

// Slot names one of the two legacy-compatible places a node keeps its children.
type Slot int

const (
	// SlotChildren is the primary "children" list.
	SlotChildren Slot = iota
	// SlotBlocks is the secondary "blocks" list.
	SlotBlocks
)

// Slots lists the children slots in traversal order (primary before secondary).
var Slots = [...]Slot{SlotChildren, SlotBlocks}

// Key returns the JSON field that holds the slot.
func (s Slot) Key() string {
	if s == SlotBlocks {
		return "blocks"
	}
	return "children"
}

func (s Slot) String() string { return s.Key() }

// Node is one element of a block tree.
//
// A node decoded from a JSON object is "recognized": its fields are kept in a
// map and its children slots are decoded into nodes of their own. Any other
// JSON value (null, string, number, array) is kept verbatim as an opaque node
// so that a round trip never loses data.
type Node struct {
	fields  map[string]any // nil for opaque nodes; never contains slot keys
	opaque  any
	slots   [len(Slots)][]*Node
	present [len(Slots)]bool
}

// Forest is an ordered list of root nodes, the unit of persistence per page.
type Forest []*Node

// NewNode builds a recognized node from payload fields. Slot keys present in
// fields are ignored; use WithChildren to attach children.
func NewNode(fields map[string]any) *Node {
	n := &Node{fields: make(map[string]any, len(fields))}
	for k, v := range fields {
		if k == SlotChildren.Key() || k == SlotBlocks.Key() {
			continue
		}
		n.fields[k] = v
	}
	return n
}

// Opaque wraps a non-object JSON value as a node.
func Opaque(v any) *Node {
	return &Node{opaque: v}
}

// IsObject reports whether n was decoded from a JSON object.
func (n *Node) IsObject() bool {
	return n != nil && n.fields != nil
}

// OpaqueValue returns the verbatim value of an opaque node.
func (n *Node) OpaqueValue() any {
	if n == nil || n.fields != nil {
		return nil
	}
	return n.opaque
}

// ID returns the node identifier, or "" when the node has none.
func (n *Node) ID() string {
	if !n.IsObject() {
		return ""
	}
	id, _ := n.fields["id"].(string)
	return id
}

// Get returns a payload field. Children slots are not payload fields.
func (n *Node) Get(key string) (any, bool) {
	if !n.IsObject() {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// Fields returns a shallow copy of the payload fields.
func (n *Node) Fields() map[string]any {
	if !n.IsObject() {
		return nil
	}
	return maps.Clone(n.fields)
}

// Len returns the number of payload fields.
func (n *Node) Len() int {
	if !n.IsObject() {
		return 0
	}
	return len(n.fields)
}

// Children returns the nodes held in slot s and whether the slot is present.
// The returned slice is a copy; the nodes are shared.
func (n *Node) Children(s Slot) ([]*Node, bool) {
	if !n.IsObject() || !n.present[s] {
		return nil, false
	}
	return append([]*Node(nil), n.slots[s]...), true
}

// HasSlot reports whether slot s is present on n, even if empty.
func (n *Node) HasSlot(s Slot) bool {
	return n.IsObject() && n.present[s]
}

// ChildCount returns the number of direct children across both slots.
func (n *Node) ChildCount() int {
	if !n.IsObject() {
		return 0
	}
	total := 0
	for _, s := range Slots {
		total += len(n.slots[s])
	}
	return total
}

// HasChildren reports whether any slot holds at least one child.
func (n *Node) HasChildren() bool {
	return n.ChildCount() > 0
}

// WithChildren returns a copy of n with slot s set to kids. The slot is
// marked present even when kids is empty. Opaque nodes are returned as-is.
func (n *Node) WithChildren(s Slot, kids []*Node) *Node {
	if !n.IsObject() {
		return n
	}
	c := n.shallow()
	c.slots[s] = kids
	c.present[s] = true
	return c
}

// WithField returns a copy of n with a payload field set.
func (n *Node) WithField(key string, v any) *Node {
	if !n.IsObject() || key == SlotChildren.Key() || key == SlotBlocks.Key() {
		return n
	}
	c := n.shallow()
	c.fields = maps.Clone(n.fields)
	c.fields[key] = v
	return c
}

// shallow copies the node header. Field map and child slices stay shared,
// which is safe because nothing in this package writes through them.
func (n *Node) shallow() *Node {
	c := *n
	return &c
}

// Clone returns a structurally independent deep copy of the forest.
func (f Forest) Clone() Forest {
	if f == nil {
		return nil
	}
	out := make(Forest, len(f))
	for i, n := range f {
		out[i] = n.Clone()
	}
	return out
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	if !n.IsObject() {
		return Opaque(cloneValue(n.opaque))
	}
	c := &Node{fields: make(map[string]any, len(n.fields)), present: n.present}
	for k, v := range n.fields {
		c.fields[k] = cloneValue(v)
	}
	for _, s := range Slots {
		if n.slots[s] != nil {
			c.slots[s] = Forest(n.slots[s]).Clone()
		}
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	default:
		return v
	}
}
