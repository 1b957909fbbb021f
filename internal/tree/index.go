package tree

// frame is one pending visit on the explicit traversal stack.
type frame struct {
	node  *Node
	depth int
	path  []*Node // ancestors, only tracked by Path
}

// pushChildren schedules n's children so that the primary slot is visited
// before the secondary one and siblings keep their order.
func pushChildren(stack []frame, n *Node, depth int, path []*Node) []frame {
	if !n.IsObject() {
		return stack
	}
	for si := len(Slots) - 1; si >= 0; si-- {
		kids := n.slots[Slots[si]]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: kids[i], depth: depth, path: path})
		}
	}
	return stack
}

func rootStack(f Forest) []frame {
	stack := make([]frame, 0, len(f))
	for i := len(f) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: f[i]})
	}
	return stack
}

// Walk visits every node depth-first in document order: each root in turn,
// then its children slot before its blocks slot. Returning false from fn
// stops the walk.
func Walk(f Forest, fn func(n *Node, depth int) bool) {
	stack := rootStack(f)
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.node == nil {
			continue
		}
		if !fn(fr.node, fr.depth) {
			return
		}
		stack = pushChildren(stack, fr.node, fr.depth+1, nil)
	}
}

// Find returns the first node with the given id in document order.
// Duplicate ids are tolerated: the first one encountered wins. An empty id
// never matches.
func Find(f Forest, id string) (*Node, bool) {
	if id == "" {
		return nil, false
	}
	var found *Node
	Walk(f, func(n *Node, _ int) bool {
		if n.ID() == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// Path returns the ancestors of the node with the given id, root first, and
// the node itself as the last element.
func Path(f Forest, id string) ([]*Node, bool) {
	if id == "" {
		return nil, false
	}
	stack := rootStack(f)
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if fr.node == nil {
			continue
		}
		here := append(append([]*Node(nil), fr.path...), fr.node)
		if fr.node.ID() == id {
			return here, true
		}
		stack = pushChildren(stack, fr.node, fr.depth+1, here)
	}
	return nil, false
}

// Count returns the total number of nodes in the forest.
func Count(f Forest) int {
	total := 0
	Walk(f, func(*Node, int) bool {
		total++
		return true
	})
	return total
}

// IDs returns every non-empty id in document order.
func IDs(f Forest) []string {
	var ids []string
	Walk(f, func(n *Node, _ int) bool {
		if id := n.ID(); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}
