package tree

// Replace returns a forest in which every node whose id equals id is
// substituted wholesale by replacement. The replacement is not merged with
// the old node and is not searched further. An unknown id is a no-op and
// returns f itself.
func Replace(f Forest, id string, replacement *Node) Forest {
	if id == "" {
		return f
	}
	out, _ := replaceIn(f, id, replacement)
	return out
}

func replaceIn(f Forest, id string, replacement *Node) (Forest, bool) {
	var out Forest
	for i, n := range f {
		next := n
		if n.ID() == id {
			next = replacement
		} else {
			next = mapSlots(n, func(kids Forest) (Forest, bool) {
				return replaceIn(kids, id, replacement)
			})
		}
		if next != n && out == nil {
			out = make(Forest, len(f))
			copy(out, f[:i])
		}
		if out != nil {
			out[i] = next
		}
	}
	if out == nil {
		return f, false
	}
	return out, true
}

// Delete returns a forest without the node whose id equals id, wherever it
// occurs. Deleting an unknown id is a no-op. Deletions of distinct ids
// commute.
func Delete(f Forest, id string) Forest {
	if id == "" {
		return f
	}
	return Prune(f, func(n *Node) bool { return n.ID() == id })
}

// Prune removes every node for which pred is true, together with its
// subtree. pred sees each node as it was before any of its descendants were
// pruned, and an ancestor left with empty slots is kept: removal never
// cascades upward from emptiness. Sibling order is preserved.
//
// Prune is idempotent only for predicates that look at a node's own fields.
// A predicate that inspects descendants, such as IsEmpty, can match a parent
// that an earlier pass emptied.
func Prune(f Forest, pred func(*Node) bool) Forest {
	out, _ := pruneIn(f, pred)
	return out
}

func pruneIn(f Forest, pred func(*Node) bool) (Forest, bool) {
	var out Forest
	changed := false
	for i, n := range f {
		if pred(n) {
			if !changed {
				out = make(Forest, 0, len(f))
				out = append(out, f[:i]...)
				changed = true
			}
			continue
		}
		next := mapSlots(n, func(kids Forest) (Forest, bool) {
			return pruneIn(kids, pred)
		})
		if next != n && !changed {
			out = make(Forest, 0, len(f))
			out = append(out, f[:i]...)
			changed = true
		}
		if changed {
			out = append(out, next)
		}
	}
	if !changed {
		return f, false
	}
	return out, true
}

// mapSlots applies fn to each present slot of n independently and returns
// a copy of n only if some slot changed.
func mapSlots(n *Node, fn func(Forest) (Forest, bool)) *Node {
	if !n.IsObject() {
		return n
	}
	cur := n
	for _, s := range Slots {
		if !n.present[s] {
			continue
		}
		kids, changed := fn(n.slots[s])
		if changed {
			cur = cur.WithChildren(s, kids)
		}
	}
	return cur
}
