package writeback

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Status is the outcome of one page in a bulk save.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record tracks one page through a bulk save run.
type Record struct {
	PageID   string          `json:"page_id"`
	Title    string          `json:"title"`
	Status   Status          `json:"status"`
	Error    string          `json:"error,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

// Target is a page that can persist itself. Implementations strip empty
// nodes before sending; *session.Session is the usual one.
type Target interface {
	PageID() string
	Title() string
	Save(ctx context.Context) (json.RawMessage, error)
}

// Orchestrator saves pages one at a time.
type Orchestrator struct {
	log      *slog.Logger
	onStatus func(index int, rec Record)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. A nil logger falls back to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// OnStatus registers a callback invoked with the record index whenever a
// record is created or settles.
func OnStatus(fn func(index int, rec Record)) Option {
	return func(o *Orchestrator) { o.onStatus = fn }
}

// NewOrchestrator returns an Orchestrator.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) notify(i int, rec Record) {
	if o.onStatus != nil {
		o.onStatus(i, rec)
	}
}

// Run saves every target in order, waiting for each save to settle before
// starting the next. A failed page never stops the batch; the returned
// records, in target order, carry each outcome. Cancelling ctx stops
// scheduling further pages, whose records stay pending, but does not abort
// a save already in flight.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) []Record {
	records := make([]Record, len(targets))
	for i, t := range targets {
		records[i] = Record{PageID: t.PageID(), Title: t.Title(), Status: StatusPending}
		o.notify(i, records[i])
	}

	start := time.Now()
	for i, t := range targets {
		if ctx.Err() != nil {
			o.log.Info("bulk save cancelled", "remaining", len(targets)-i)
			break
		}
		began := time.Now()
		resp, err := t.Save(context.WithoutCancel(ctx))
		rec := &records[i]
		if err != nil {
			rec.Status = StatusError
			rec.Error = err.Error()
			o.log.Warn("page save failed", "page_id", rec.PageID, "error", err)
		} else {
			rec.Status = StatusSuccess
			rec.Response = resp
			o.log.Debug("page saved", "page_id", rec.PageID, "duration_ms", time.Since(began).Milliseconds())
		}
		o.notify(i, *rec)
	}

	ok, failed, pending := Summarize(records)
	o.log.Info("bulk save finished",
		"success", ok, "error", failed, "pending", pending,
		"duration_ms", time.Since(start).Milliseconds())
	return records
}

// Summarize counts records by status.
func Summarize(records []Record) (success, failed, pending int) {
	for _, r := range records {
		switch r.Status {
		case StatusSuccess:
			success++
		case StatusError:
			failed++
		default:
			pending++
		}
	}
	return success, failed, pending
}
