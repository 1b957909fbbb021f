package session

import (
	"bytes"
	"errors"

	"github.com/agentic-research/blocktree/internal/tree"
)

// Edit is a change to one node. Build it with ReplaceWith or Remove; the
// zero Edit replaces the node with an empty one carrying only its id.
type Edit struct {
	node   *tree.Node
	remove bool
}

// ReplaceWith substitutes the node wholesale.
func ReplaceWith(n *tree.Node) Edit { return Edit{node: n} }

// Remove deletes the node and its subtree.
func Remove() Edit { return Edit{remove: true} }

// IsRemove reports whether the edit is a deletion.
func (e Edit) IsRemove() bool { return e.remove }

// UpdateNode applies e to the node with the given id. Stale ids are a silent
// no-op. A replacement must keep the node's id: a missing id is restored and
// a different one is rejected with *MalformedEditError.
func (s *Session) UpdateNode(id string, e Edit) error {
	if e.remove {
		s.DeleteNode(id)
		return nil
	}
	n, err := withIdentity(id, e.node)
	if err != nil {
		return err
	}
	var out error
	s.run(func() {
		old, ok := tree.Find(s.forest, id)
		if !ok {
			return
		}
		if dup := duplicateID(tree.Delete(s.forest, id), old, n); dup != "" {
			out = malformed(id, "id "+dup+" already exists elsewhere on the page", nil)
			return
		}
		if s.setForest(tree.Replace(s.forest, id, n)) {
			s.log.Debug("node replaced", "node_id", id)
		}
	})
	return out
}

// DeleteNode removes the node with the given id and clears the selection if
// it pointed at that node.
func (s *Session) DeleteNode(id string) {
	s.run(func() {
		if s.setForest(tree.Delete(s.forest, id)) {
			s.log.Debug("node deleted", "node_id", id)
		}
		if s.selected != "" && s.selected == id {
			s.selected = ""
			s.emitSelection()
		}
	})
}

// DeleteNodes removes several nodes in one step.
func (s *Session) DeleteNodes(ids []string) {
	s.run(func() {
		f := s.forest
		for _, id := range ids {
			f = tree.Delete(f, id)
			if s.selected != "" && s.selected == id {
				s.selected = ""
				s.emitSelection()
			}
		}
		s.setForest(f)
	})
}

// EditJSON parses raw as the new content of node id and applies it. Input
// that is empty, not valid JSON, or not a JSON object is rejected before the
// forest is touched.
func (s *Session) EditJSON(id string, raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return malformed(id, "empty input", nil)
	}
	n, err := tree.ParseNode(raw)
	if err != nil {
		return malformed(id, "invalid JSON", err)
	}
	if !n.IsObject() {
		return malformed(id, "node must be a JSON object", nil)
	}
	return s.UpdateNode(id, ReplaceWith(n))
}

func withIdentity(id string, n *tree.Node) (*tree.Node, error) {
	if n == nil {
		n = tree.NewNode(nil)
	}
	if !n.IsObject() {
		return nil, malformed(id, "node must be a JSON object", nil)
	}
	v, ok := n.Get("id")
	if !ok || v == nil || v == "" {
		return n.WithField("id", id), nil
	}
	if got, isStr := v.(string); !isStr || got != id {
		return nil, malformed(id, "node id cannot be changed", errors.New("id mismatch"))
	}
	return n, nil
}

// duplicateID returns an id introduced by n that already appears in rest.
// Ids carried over from old are allowed.
func duplicateID(rest tree.Forest, old, n *tree.Node) string {
	existing := make(map[string]bool)
	for _, id := range tree.IDs(rest) {
		existing[id] = true
	}
	for _, id := range tree.IDs(tree.Forest{old}) {
		delete(existing, id)
	}
	for _, id := range tree.IDs(tree.Forest{n}) {
		if existing[id] {
			return id
		}
	}
	return ""
}
