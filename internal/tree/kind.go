package tree

import "sort"

// DefaultKind is the display kind of a node no extractor recognizes.
const DefaultKind = "Box"

// KindExtractor derives a display kind from a single source on a node.
// It returns "" when its source is absent or empty.
type KindExtractor struct {
	Source  string
	Extract func(n *Node) string
}

// KindChain is the ordered fallback chain used by DisplayKind. The first
// extractor returning a non-empty label decides the kind.
var KindChain = []KindExtractor{
	{Source: "component", Extract: componentKind},
	{Source: "layerName", Extract: stringField("layerName")},
	{Source: "name", Extract: stringField("name")},
	{Source: "tagName", Extract: tagKind},
}

// DisplayKind returns the human-facing category label for n.
func DisplayKind(n *Node) string {
	kind, _ := DisplayKindSource(n)
	return kind
}

// DisplayKindSource returns the display kind and the name of the extractor
// that produced it ("default" when none matched).
func DisplayKindSource(n *Node) (string, string) {
	for _, ex := range KindChain {
		if k := ex.Extract(n); k != "" {
			return k, ex.Source
		}
	}
	return DefaultKind, "default"
}

// ComponentName returns the raw component.name of n, or "".
func ComponentName(n *Node) string {
	c, ok := n.Get("component")
	if !ok {
		return ""
	}
	obj, ok := asObject(c)
	if !ok {
		return ""
	}
	name, _ := obj["name"].(string)
	return name
}

// componentAliases maps raw component names to friendlier display labels.
var componentAliases = map[string]string{
	"Core:Section": "Section",
}

func componentKind(n *Node) string {
	name := ComponentName(n)
	if alias, ok := componentAliases[name]; ok {
		return alias
	}
	return name
}

var tagAliases = map[string]string{
	"img": "Image",
}

func tagKind(n *Node) string {
	tag := stringField("tagName")(n)
	if alias, ok := tagAliases[tag]; ok {
		return alias
	}
	return tag
}

func stringField(key string) func(*Node) string {
	return func(n *Node) string {
		v, ok := n.Get(key)
		if !ok {
			return ""
		}
		s, _ := v.(string)
		return s
	}
}

// KindCount is one row of a component histogram.
type KindCount struct {
	Name  string
	Count int
}

// Kinds counts component names across the forest, most frequent first.
// Nodes without a component name are not counted.
func Kinds(f Forest) []KindCount {
	counts := make(map[string]int)
	Walk(f, func(n *Node, _ int) bool {
		if name := ComponentName(n); name != "" {
			counts[name]++
		}
		return true
	})
	out := make([]KindCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, KindCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}
