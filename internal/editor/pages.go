package editor

import (
	"github.com/sahilm/fuzzy"

	"github.com/agentic-research/blocktree/internal/session"
	"github.com/agentic-research/blocktree/internal/tree"
)

// PageSummary is the row shown for a page in listings.
type PageSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Status     string `json:"status"`
	State      string `json:"state"`
	Nodes      int    `json:"nodes"`
	PreviewURL string `json:"preview_url,omitempty"`
	EditorURL  string `json:"editor_url"`
}

// Describe summarizes a session.
func Describe(sess *session.Session) PageSummary {
	p := sess.Page()
	return PageSummary{
		ID:         p.ID,
		Title:      p.Data.Title,
		URL:        p.Data.URL,
		Status:     p.StatusLabel(),
		State:      sess.State().String(),
		Nodes:      tree.Count(p.Data.Blocks),
		PreviewURL: p.PreviewURL(),
		EditorURL:  p.EditorURL(),
	}
}

// Search ranks sessions by a fuzzy match of query against title and URL.
// An empty query returns the input unchanged.
func Search(sessions []*session.Session, query string) []*session.Session {
	if query == "" {
		return sessions
	}
	keys := make([]string, len(sessions))
	for i, s := range sessions {
		keys[i] = s.Title() + " " + s.URL()
	}
	matches := fuzzy.Find(query, keys)
	out := make([]*session.Session, 0, len(matches))
	for _, m := range matches {
		out = append(out, sessions[m.Index])
	}
	return out
}
