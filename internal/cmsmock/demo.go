package cmsmock

import (
	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/tree"
)

const demoHome = `[
  {"id":"hero","component":{"name":"Core:Section"},"children":[
    {"id":"hero-title","component":{"name":"Text","options":{"text":"<h1>Welcome</h1>"}}},
    {"id":"hero-image","tagName":"img","properties":{"src":"/hero.png"}},
    {"id":"hero-ad","component":{"name":"Ad","options":{"slot":3}}}
  ]},
  {"id":"spacer","children":[]},
  {"id":"legacy","blocks":[
    {"id":"legacy-text","component":{"name":"Text","options":{"text":"Old <b>layout</b>"}}},
    {"id":"legacy-ad","component":{"name":"Ad"}}
  ]}
]`

const demoPricing = `[
  {"id":"plans","layerName":"Plans","children":[
    {"id":"plan-free","component":{"name":"Text","options":{"text":"Free"}}},
    {"id":"plan-pro","component":{"name":"Text","options":{"text":"Pro"}}}
  ]},
  {"id":"pricing-ad","component":{"name":"Ad"}}
]`

// DemoPages returns a small site used by the mock server command.
func DemoPages() []api.Page {
	mk := func(id, title, url, published, blocks, js string) api.Page {
		f, err := tree.ParseForest([]byte(blocks))
		if err != nil {
			panic("cmsmock: bad demo forest: " + err.Error())
		}
		return api.Page{
			ID:          id,
			Name:        title,
			Published:   published,
			LastUpdated: 1700000000000,
			Data: api.PageData{
				Title:  title,
				URL:    url,
				Blocks: f,
				JSCode: js,
			},
		}
	}
	return []api.Page{
		mk("home", "Home", "/", "published", demoHome, "console.log('home');"),
		mk("pricing", "Pricing", "/pricing", "draft", demoPricing, "function () {"),
		mk("empty", "Coming soon", "/soon", "draft", `[]`, ""),
	}
}
