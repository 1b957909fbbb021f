package writeback

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/blocktree/api"
	"github.com/agentic-research/blocktree/internal/session"
	"github.com/agentic-research/blocktree/internal/tree"
)

type fakeTarget struct {
	id, title string
	err       error
	calls     *[]string
	onSave    func()
}

func (f fakeTarget) PageID() string { return f.id }
func (f fakeTarget) Title() string  { return f.title }

func (f fakeTarget) Save(ctx context.Context) (json.RawMessage, error) {
	*f.calls = append(*f.calls, f.id)
	if f.onSave != nil {
		f.onSave()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"id":"` + f.id + `"}`), nil
}

func TestRun_PartialFailureDoesNotStopBatch(t *testing.T) {
	var calls []string
	targets := []Target{
		fakeTarget{id: "p1", title: "Home", calls: &calls},
		fakeTarget{id: "p2", title: "Pricing", calls: &calls,
			err: errors.New("Access denied. You do not have permission to perform this action.")},
		fakeTarget{id: "p3", title: "Blog", calls: &calls},
	}

	records := NewOrchestrator().Run(context.Background(), targets)

	assert.Equal(t, []string{"p1", "p2", "p3"}, calls, "sequential, in order, none skipped")
	require.Len(t, records, 3)
	assert.Equal(t, StatusSuccess, records[0].Status)
	assert.Equal(t, StatusError, records[1].Status)
	assert.Contains(t, records[1].Error, "Access denied")
	assert.Equal(t, StatusSuccess, records[2].Status)
	assert.Equal(t, "Pricing", records[1].Title)
	assert.JSONEq(t, `{"id":"p3"}`, string(records[2].Response))

	ok, failed, pending := Summarize(records)
	assert.Equal(t, []int{2, 1, 0}, []int{ok, failed, pending})
}

func TestRun_StatusCallbacks(t *testing.T) {
	var calls []string
	var events []string
	o := NewOrchestrator(OnStatus(func(i int, r Record) {
		events = append(events, r.PageID+":"+string(r.Status))
	}))
	o.Run(context.Background(), []Target{
		fakeTarget{id: "a", calls: &calls},
		fakeTarget{id: "b", calls: &calls, err: errors.New("x")},
	})
	assert.Equal(t, []string{"a:pending", "b:pending", "a:success", "b:error"}, events)
}

func TestRun_CancelStopsSchedulingButNotInFlight(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls []string
	targets := []Target{
		fakeTarget{id: "a", calls: &calls, onSave: cancel},
		fakeTarget{id: "b", calls: &calls},
	}
	records := NewOrchestrator().Run(ctx, targets)

	assert.Equal(t, []string{"a"}, calls)
	assert.Equal(t, StatusSuccess, records[0].Status, "in-flight save completes")
	assert.Equal(t, StatusPending, records[1].Status)
}

func TestRun_Empty(t *testing.T) {
	assert.Empty(t, NewOrchestrator().Run(context.Background(), nil))
}

func TestRun_SessionsStripAndSettle(t *testing.T) {
	var sent []string
	saver := session.SaverFunc(func(_ context.Context, p api.Page, f tree.Forest) (json.RawMessage, error) {
		b, _ := json.Marshal(f)
		sent = append(sent, string(b))
		if p.ID == "p2" {
			return nil, errors.New("permission denied")
		}
		return json.RawMessage(`{}`), nil
	})

	var targets []Target
	var sessions []*session.Session
	for _, id := range []string{"p1", "p2", "p3"} {
		f, err := tree.ParseForest([]byte(`[{"id":"a","children":[{"id":"empty"}]},{}]`))
		require.NoError(t, err)
		s := session.New(api.Page{ID: id, Data: api.PageData{Title: id, Blocks: f}}, session.WithSaver(saver))
		s.DeleteNode("missing")
		sessions = append(sessions, s)
		targets = append(targets, s)
	}

	records := NewOrchestrator().Run(context.Background(), targets)
	require.Len(t, sent, 3)
	for _, body := range sent {
		assert.JSONEq(t, `[{"id":"a","children":[]}]`, body)
	}
	assert.Equal(t, session.Clean, sessions[0].State())
	assert.Equal(t, session.Dirty, sessions[1].State(), "failed page keeps its edits for retry")
	assert.Equal(t, session.Clean, sessions[2].State())
	assert.Equal(t, "permission denied", records[1].Error)
}
