package tree

// identityKeys are bookkeeping fields that do not make a node meaningful on
// their own.
var identityKeys = map[string]bool{
	"id":    true,
	"@type": true,
}

// IsEmpty classifies a node as empty. A node is non-empty when it is a JSON
// object carrying a component, at least one child in either slot, or any
// payload field beyond its identity keys. Non-objects, nil and {} are empty.
// IsEmpty is total and has no side effects.
func IsEmpty(n *Node) bool {
	if !n.IsObject() {
		return true
	}
	if c, ok := n.fields["component"]; ok && c != nil {
		return false
	}
	if n.HasChildren() {
		return false
	}
	for k := range n.fields {
		if k != "component" && !identityKeys[k] {
			return false
		}
	}
	return true
}

// IsEmptyValue classifies an arbitrary decoded JSON value, including nil.
func IsEmptyValue(v any) bool {
	n, err := FromValue(v)
	if err != nil {
		// Only nested objects can exceed MaxDepth, and those have children.
		return false
	}
	return IsEmpty(n)
}

// StripEmpty removes empty nodes from every level of the forest ahead of a
// save. A container left childless by the strip is still kept.
func StripEmpty(f Forest) Forest {
	return Prune(f, IsEmpty)
}
