// Package query selects nodes and values from a forest with JSONPath.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/agentic-research/blocktree/internal/tree"
)

// Match is one JSONPath result. ID is set when the result is a node object
// carrying an id.
type Match struct {
	Value any
	ID    string
}

// Values returns the match as a field map. Non-object results are wrapped
// under "value".
func (m Match) Values() map[string]any {
	if v, ok := m.Value.(map[string]any); ok {
		return v
	}
	return map[string]any{"value": m.Value}
}

// Select evaluates expr against the forest's JSON form, whose root is the
// list of top-level nodes. The forest is not modified.
func Select(f tree.Forest, expr string) ([]Match, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", expr, err)
	}
	root := plain(f.Value())
	results := x.Get(root)

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{Value: r}
		if obj, ok := r.(map[string]any); ok {
			if id, ok := obj["id"].(string); ok {
				matches[i].ID = id
			}
		}
	}
	return matches, nil
}

// IDs returns the distinct node ids selected by expr in match order.
func IDs(f tree.Forest, expr string) ([]string, error) {
	matches, err := Select(f, expr)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, m := range matches {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// plain deep-copies a decoded value, turning json.Number into int64 or
// float64 so JSONPath filters can compare numbers.
func plain(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}
