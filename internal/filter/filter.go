// Package filter derives read-only views of pages and block forests.
package filter

import (
	"net/url"
	"strings"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/tree"
)

// ExcludeComponent returns a view of f without the nodes whose component
// name equals term. A container whose children were all filtered away is
// dropped as well; a leaf that never had children is kept unless it matches
// itself. An empty term is the identity filter. f is not modified.
func ExcludeComponent(f tree.Forest, term string) tree.Forest {
	if term == "" {
		return f
	}
	return exclude(f, term)
}

func exclude(f tree.Forest, term string) tree.Forest {
	out := make(tree.Forest, 0, len(f))
	for _, n := range f {
		if tree.ComponentName(n) == term {
			continue
		}
		if !n.IsObject() || !n.HasChildren() {
			out = append(out, n)
			continue
		}
		next := n
		for _, s := range tree.Slots {
			kids, ok := n.Children(s)
			if !ok {
				continue
			}
			next = next.WithChildren(s, exclude(kids, term))
		}
		if next.HasChildren() {
			out = append(out, next)
		}
	}
	return out
}

// URLAllowed reports whether a page URL passes the allow-list. An empty
// allow-list allows everything. A URL passes when it equals an entry, or
// when an entry is an absolute URL whose path is the page URL.
func URLAllowed(pageURL string, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	if pageURL == "" {
		return false
	}
	for _, entry := range allow {
		if entry == pageURL || pathOf(entry) == pageURL {
			return true
		}
	}
	return false
}

func pathOf(entry string) string {
	u, err := url.Parse(entry)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// Pages keeps the pages whose URL passes the allow-list, in order.
func Pages(pages []api.Page, allow []string) []api.Page {
	if len(allow) == 0 {
		return pages
	}
	out := make([]api.Page, 0, len(pages))
	for _, p := range pages {
		if URLAllowed(p.Data.URL, allow) {
			out = append(out, p)
		}
	}
	return out
}

// ParseURLList splits newline-separated text into trimmed, non-empty
// allow-list entries.
func ParseURLList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if u := strings.TrimSpace(line); u != "" {
			out = append(out, u)
		}
	}
	return out
}
