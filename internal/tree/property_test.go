package tree

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

var componentNames = []string{"Text", "Image", "Ad", "Columns", "Core:Section"}

// genForest draws a random forest with unique ids. Some nodes carry no id,
// some are empty, and children are spread over both slots.
func genForest(t *rapid.T, depth int, next *int) Forest {
	size := rapid.IntRange(0, 4).Draw(t, "size")
	f := make(Forest, 0, size)
	for i := 0; i < size; i++ {
		f = append(f, genNode(t, depth, next))
	}
	return f
}

func genNode(t *rapid.T, depth int, next *int) *Node {
	if rapid.IntRange(0, 9).Draw(t, "opaque") == 0 {
		return Opaque(nil)
	}
	fields := map[string]any{}
	if rapid.IntRange(0, 5).Draw(t, "hasID") > 0 {
		*next++
		fields["id"] = fmt.Sprintf("n%d", *next)
	}
	if rapid.Bool().Draw(t, "hasComponent") {
		fields["component"] = map[string]any{"name": rapid.SampledFrom(componentNames).Draw(t, "component")}
	}
	if rapid.IntRange(0, 3).Draw(t, "hasStyle") == 0 {
		fields["responsiveStyles"] = map[string]any{"large": map[string]any{"color": "red"}}
	}
	n := NewNode(fields)
	if depth < 3 {
		for _, s := range Slots {
			if rapid.IntRange(0, 2).Draw(t, "slot"+s.Key()) == 0 {
				n = n.WithChildren(s, genForest(t, depth+1, next))
			}
		}
	}
	return n
}

func drawForest(t *rapid.T) Forest {
	next := 0
	return genForest(t, 0, &next)
}

// drawID picks an id present in f, or an id that is not.
func drawID(t *rapid.T, f Forest) string {
	ids := append(IDs(f), "missing")
	return rapid.SampledFrom(ids).Draw(t, "id")
}

func TestProperty_FindAfterDeleteIsNotFound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawForest(t)
		id := drawID(t, f)
		if _, ok := Find(Delete(f, id), id); ok {
			t.Fatalf("node %q still present after delete", id)
		}
	})
}

func TestProperty_AbsentIDIsNoop(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawForest(t)
		x := NewNode(map[string]any{"id": "absent", "tagName": "div"})
		if !Equal(Replace(f, "absent", x), f) {
			t.Fatal("replace of absent id changed the forest")
		}
		if !Equal(Delete(f, "absent"), f) {
			t.Fatal("delete of absent id changed the forest")
		}
	})
}

func TestProperty_ReplaceIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawForest(t)
		id := drawID(t, f)
		x := NewNode(map[string]any{"id": id, "component": map[string]any{"name": "Text"}})
		once := Replace(f, id, x)
		twice := Replace(once, id, x)
		if !Equal(once, twice) {
			t.Fatal("replace is not idempotent")
		}
	})
}

func TestProperty_PruneByOwnFieldsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawForest(t)
		name := rapid.SampledFrom(componentNames).Draw(t, "prune")
		pred := func(n *Node) bool { return ComponentName(n) == name }
		once := Prune(f, pred)
		if !Equal(Prune(once, pred), once) {
			t.Fatal("prune is not idempotent")
		}
	})
}

func TestProperty_MutatorsDoNotModifyInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawForest(t)
		snapshot := f.Clone()
		id := drawID(t, f)
		_ = Delete(f, id)
		_ = Replace(f, id, NewNode(map[string]any{"id": id}))
		_ = StripEmpty(f)
		if !Equal(f, snapshot) {
			t.Fatal("input forest was modified")
		}
	})
}

func TestProperty_StripNeverAddsOrRemovesNonEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawForest(t)
		stripped := StripEmpty(f)
		if Count(stripped) > Count(f) {
			t.Fatalf("strip grew the forest: %d > %d", Count(stripped), Count(f))
		}
		for _, id := range IDs(stripped) {
			orig, ok := Find(f, id)
			if !ok {
				t.Fatalf("strip invented node %q", id)
			}
			if IsEmpty(orig) {
				t.Fatalf("strip kept empty node %q", id)
			}
		}
		// Every non-empty node whose ancestors all survive is still there.
		var check func(Forest)
		check = func(level Forest) {
			for _, n := range level {
				if IsEmpty(n) {
					continue
				}
				if id := n.ID(); id != "" {
					if _, ok := Find(stripped, id); !ok {
						t.Fatalf("strip removed non-empty node %q", id)
					}
				}
				for _, s := range Slots {
					kids, _ := n.Children(s)
					check(kids)
				}
			}
		}
		check(f)
	})
}
