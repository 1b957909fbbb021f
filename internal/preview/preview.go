// Package preview renders short plain-text summaries of nodes.
package preview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/agentic-research/blocktree/internal/tree"
)

// TextKind is the display kind whose nodes carry rich text.
const TextKind = "Text"

// Text returns the markup-free text of a Text node's component.options.text.
// The second result is false for nodes that are not Text or carry no text.
func Text(n *tree.Node) (string, bool) {
	if tree.DisplayKind(n) != TextKind {
		return "", false
	}
	c, ok := n.Get("component")
	if !ok {
		return "", false
	}
	comp, ok := c.(map[string]any)
	if !ok {
		return "", false
	}
	opts, ok := comp["options"].(map[string]any)
	if !ok {
		return "", false
	}
	raw, ok := opts["text"].(string)
	if !ok {
		return "", false
	}
	return StripMarkup(raw), true
}

// StripMarkup parses s as an HTML fragment and returns its text content with
// whitespace collapsed. Script and style bodies are dropped.
func StripMarkup(s string) string {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Truncate shortens s to maxWidth terminal cells, ending with suffix when
// anything was cut.
func Truncate(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		return runewidth.Truncate(suffix, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth-suffixWidth, "") + suffix
}

// Label is the one-line description of a node used in tree listings: its
// display kind, followed by a text preview when it has one. Non-object
// nodes show their value.
func Label(n *tree.Node, maxWidth int) string {
	kind := tree.DisplayKind(n)
	if n != nil && !n.IsObject() {
		return Truncate(kind+": "+scalar(n.OpaqueValue()), maxWidth, "…")
	}
	if txt, ok := Text(n); ok && txt != "" {
		return Truncate(kind+": "+txt, maxWidth, "…")
	}
	return Truncate(kind, maxWidth, "…")
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprint(x)
	}
}
