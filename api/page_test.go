package api

import (
	"encoding/json"
	"testing"

	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlocksUpdate_DefaultsMissingFields(t *testing.T) {
	body, err := json.Marshal(NewBlocksUpdate(nil, PageData{Title: "Home", URL: "/"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{
		"blocks":[],"html":"","css":"","url":"/","jsCode":"","cssCode":"",
		"inputs":[],"httpRequests":[],"customFonts":[],"state":{},
		"title":"Home","description":""}}`, string(body))
}

func TestNewBlocksUpdate_PassesAuxiliaryFieldsThrough(t *testing.T) {
	var page Page
	require.NoError(t, json.Unmarshal([]byte(`{
		"id":"p1","name":"home","published":"published","lastUpdated":1700000000000,
		"meta":{"lastPreviewUrl":"https://preview/p1"},
		"data":{"title":"Home","url":"/","blocks":[{"id":"a"}],
			"css":".a{}","state":{"deviceSize":"large","n":1.0},
			"customFonts":[{"family":"Inter"}],"inputs":null}}`), &page))

	assert.True(t, page.IsPublished())
	assert.Equal(t, "Published", page.StatusLabel())
	assert.Equal(t, "https://preview/p1", page.PreviewURL())
	assert.Equal(t, "https://builder.io/content/p1", page.EditorURL())
	assert.Equal(t, int64(1700000000000), page.Updated().UnixMilli())

	forest, err := tree.ParseForest([]byte(`[{"id":"b"}]`))
	require.NoError(t, err)
	body, err := json.Marshal(NewBlocksUpdate(forest, page.Data))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{
		"blocks":[{"id":"b"}],"html":"","css":".a{}","url":"/","jsCode":"","cssCode":"",
		"inputs":[],"httpRequests":[],"customFonts":[{"family":"Inter"}],
		"state":{"deviceSize":"large","n":1.0},
		"title":"Home","description":""}}`, string(body))
}

func TestPage_DraftWithoutMeta(t *testing.T) {
	p := Page{ID: "x", Published: "draft"}
	assert.Equal(t, "Draft", p.StatusLabel())
	assert.Equal(t, "", p.PreviewURL())
}
