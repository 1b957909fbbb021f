// Package api defines the wire types exchanged with the content API.
package api

import (
	"encoding/json"
	"time"

	"github.com/agentic-research/blocktree/internal/tree"
)

// Page is one content record as returned by the list endpoint.
type Page struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	LastUpdated int64     `json:"lastUpdated"`
	Published   string    `json:"published"`
	Data        PageData  `json:"data"`
	Meta        *PageMeta `json:"meta,omitempty"`
}

// PageData holds the block forest and the auxiliary page-level fields.
// Structured auxiliary fields are kept as raw JSON so they round-trip
// unchanged.
type PageData struct {
	Title        string          `json:"title"`
	URL          string          `json:"url"`
	Blocks       tree.Forest     `json:"blocks"`
	HTML         string          `json:"html,omitempty"`
	CSS          string          `json:"css,omitempty"`
	JSCode       string          `json:"jsCode,omitempty"`
	CSSCode      string          `json:"cssCode,omitempty"`
	Inputs       json.RawMessage `json:"inputs,omitempty"`
	HTTPRequests json.RawMessage `json:"httpRequests,omitempty"`
	CustomFonts  json.RawMessage `json:"customFonts,omitempty"`
	State        json.RawMessage `json:"state,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// PageMeta carries editor metadata.
type PageMeta struct {
	LastPreviewURL string `json:"lastPreviewUrl,omitempty"`
}

// Published is the value of Page.Published for live pages.
const Published = "published"

// IsPublished reports whether the page is live.
func (p Page) IsPublished() bool { return p.Published == Published }

// StatusLabel returns "Published" or "Draft".
func (p Page) StatusLabel() string {
	if p.IsPublished() {
		return "Published"
	}
	return "Draft"
}

// PreviewURL returns the last preview URL, or "".
func (p Page) PreviewURL() string {
	if p.Meta == nil {
		return ""
	}
	return p.Meta.LastPreviewURL
}

// EditorURL links to the page in the hosted visual editor.
func (p Page) EditorURL() string {
	return "https://builder.io/content/" + p.ID
}

// Updated returns LastUpdated as a time. The API reports milliseconds.
func (p Page) Updated() time.Time {
	return time.UnixMilli(p.LastUpdated)
}

// ListResponse is the body of the list endpoint.
type ListResponse struct {
	Results []Page `json:"results"`
}

// TitleUpdate is the PATCH body that renames a page.
type TitleUpdate struct {
	Data struct {
		Title string `json:"title"`
	} `json:"data"`
}

// NewTitleUpdate builds a TitleUpdate.
func NewTitleUpdate(title string) TitleUpdate {
	var u TitleUpdate
	u.Data.Title = title
	return u
}

// BlocksUpdate is the PUT body that replaces a page's content. Every
// auxiliary field is always present so a partial edit never drops page data.
type BlocksUpdate struct {
	Data WriteData `json:"data"`
}

// WriteData is PageData in its write form: no omitted fields.
type WriteData struct {
	Blocks       tree.Forest     `json:"blocks"`
	HTML         string          `json:"html"`
	CSS          string          `json:"css"`
	URL          string          `json:"url"`
	JSCode       string          `json:"jsCode"`
	CSSCode      string          `json:"cssCode"`
	Inputs       json.RawMessage `json:"inputs"`
	HTTPRequests json.RawMessage `json:"httpRequests"`
	CustomFonts  json.RawMessage `json:"customFonts"`
	State        json.RawMessage `json:"state"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
}

var (
	emptyList   = json.RawMessage(`[]`)
	emptyObject = json.RawMessage(`{}`)
)

// NewBlocksUpdate pairs a forest with the page's auxiliary fields, defaulting
// every missing field to the empty value of its type.
func NewBlocksUpdate(blocks tree.Forest, data PageData) BlocksUpdate {
	if blocks == nil {
		blocks = tree.Forest{}
	}
	return BlocksUpdate{Data: WriteData{
		Blocks:       blocks,
		HTML:         data.HTML,
		CSS:          data.CSS,
		URL:          data.URL,
		JSCode:       data.JSCode,
		CSSCode:      data.CSSCode,
		Inputs:       orDefault(data.Inputs, emptyList),
		HTTPRequests: orDefault(data.HTTPRequests, emptyList),
		CustomFonts:  orDefault(data.CustomFonts, emptyList),
		State:        orDefault(data.State, emptyObject),
		Title:        data.Title,
		Description:  data.Description,
	}}
}

func orDefault(raw, fallback json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback
	}
	return raw
}
