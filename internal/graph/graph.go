// Package graph indexes which pages use which components.
package graph

import (
	"errors"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/tree"
)

var ErrNotFound = errors.New("component not found")

// Usage is one row of the component inventory.
type Usage struct {
	Component string
	Pages     int // pages containing at least one node
	Nodes     int // total nodes across all pages
}

// Index maps component names to the set of pages using them. Pages are
// assigned internal ordinals so each component's page set is a bitmap.
type Index struct {
	mu sync.RWMutex

	pageIntID map[string]uint32 // page ID -> ordinal
	intToPage []string          // ordinal -> page ID
	nextIntID uint32

	byComponent map[string]*roaring.Bitmap // component -> page ordinals
	nodeCounts  map[string]map[uint32]int  // component -> ordinal -> nodes
}

// New returns an empty index.
func New() *Index {
	return &Index{
		pageIntID:   make(map[string]uint32),
		byComponent: make(map[string]*roaring.Bitmap),
		nodeCounts:  make(map[string]map[uint32]int),
	}
}

// Build indexes every page.
func Build(pages []api.Page) *Index {
	ix := New()
	for _, p := range pages {
		ix.Add(p.ID, p.Data.Blocks)
	}
	return ix
}

// Add indexes or re-indexes a page's forest.
func (ix *Index) Add(pageID string, f tree.Forest) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	intID, ok := ix.pageIntID[pageID]
	if ok {
		ix.clear(intID)
	} else {
		intID = ix.nextIntID
		ix.nextIntID++
		ix.pageIntID[pageID] = intID
		ix.intToPage = append(ix.intToPage, pageID)
	}

	for _, kc := range tree.Kinds(f) {
		bm, exists := ix.byComponent[kc.Name]
		if !exists {
			bm = roaring.New()
			ix.byComponent[kc.Name] = bm
			ix.nodeCounts[kc.Name] = make(map[uint32]int)
		}
		bm.Add(intID)
		ix.nodeCounts[kc.Name][intID] = kc.Count
	}
}

// clear removes a page ordinal from every bitmap. Must hold ix.mu.
func (ix *Index) clear(intID uint32) {
	for name, bm := range ix.byComponent {
		if !bm.Contains(intID) {
			continue
		}
		bm.Remove(intID)
		delete(ix.nodeCounts[name], intID)
		if bm.IsEmpty() {
			delete(ix.byComponent, name)
			delete(ix.nodeCounts, name)
		}
	}
}

// PagesWith returns the ids of pages that use component, in load order.
func (ix *Index) PagesWith(component string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	bm, ok := ix.byComponent[component]
	if !ok {
		return nil, ErrNotFound
	}
	return ix.pageIDs(bm), nil
}

// PagesWithAll returns pages using every one of the components.
func (ix *Index) PagesWithAll(components ...string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var acc *roaring.Bitmap
	for _, c := range components {
		bm, ok := ix.byComponent[c]
		if !ok {
			return nil
		}
		if acc == nil {
			acc = bm.Clone()
			continue
		}
		acc.And(bm)
	}
	if acc == nil {
		return nil
	}
	return ix.pageIDs(acc)
}

// PagesWithAny returns pages using at least one of the components.
func (ix *Index) PagesWithAny(components ...string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	acc := roaring.New()
	for _, c := range components {
		if bm, ok := ix.byComponent[c]; ok {
			acc.Or(bm)
		}
	}
	return ix.pageIDs(acc)
}

func (ix *Index) pageIDs(bm *roaring.Bitmap) []string {
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) < len(ix.intToPage) {
			out = append(out, ix.intToPage[intID])
		}
	}
	return out
}

// Components returns the inventory, most widely used first.
func (ix *Index) Components() []Usage {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Usage, 0, len(ix.byComponent))
	for name, bm := range ix.byComponent {
		u := Usage{Component: name, Pages: int(bm.GetCardinality())}
		for _, n := range ix.nodeCounts[name] {
			u.Nodes += n
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pages != out[j].Pages {
			return out[i].Pages > out[j].Pages
		}
		if out[i].Nodes != out[j].Nodes {
			return out[i].Nodes > out[j].Nodes
		}
		return out[i].Component < out[j].Component
	})
	return out
}
