package ui

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentic-research/blocktree/internal/editor"
	"github.com/agentic-research/blocktree/internal/session"
	"github.com/agentic-research/blocktree/internal/tree"
	"github.com/agentic-research/blocktree/internal/watcher"
	"github.com/agentic-research/blocktree/internal/writeback"
)

// Relay forwards session and bulk save events into a running program. It
// is created before the editor.Service so it can be passed as its listener.
type Relay struct {
	mu sync.Mutex
	p  *tea.Program
}

// NewRelay returns a relay with no program attached.
func NewRelay() *Relay { return &Relay{} }

func (r *Relay) attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

// send never blocks the caller; listeners may fire from inside Update.
func (r *Relay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		go p.Send(msg)
	}
}

func (r *Relay) ForestChanged(pageID string, _ tree.Forest) {
	r.send(forestChangedMsg{pageID: pageID})
}

func (r *Relay) SelectionChanged(string, string) {}

func (r *Relay) StateChanged(pageID string, st session.State, err error) {
	r.send(stateChangedMsg{pageID: pageID, state: st, err: err})
}

// Listener returns session callbacks that forward into the program.
func (r *Relay) Listener() session.Listener {
	return session.Listener{
		ForestChanged:    r.ForestChanged,
		SelectionChanged: r.SelectionChanged,
		StateChanged:     r.StateChanged,
	}
}

// SaveStatus is an editor.WithSaveStatus callback.
func (r *Relay) SaveStatus(index int, rec writeback.Record) {
	r.send(saveStatusMsg{index: index, rec: rec})
}

// Options configures Run.
type Options struct {
	Title string
	Relay *Relay
	// ConfigPath is watched while the editor runs; ReloadConfig is called on
	// each change and returns the new display title.
	ConfigPath   string
	ReloadConfig func() (string, error)
	Logger       *slog.Logger
}

// Run starts the editor and blocks until it exits.
func Run(ctx context.Context, svc *editor.Service, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	p := tea.NewProgram(New(ctx, svc, opts.Title), tea.WithAltScreen(), tea.WithContext(ctx))
	if opts.Relay != nil {
		opts.Relay.attach(p)
	}

	if opts.ConfigPath != "" && opts.ReloadConfig != nil {
		w, err := watcher.New(opts.ConfigPath,
			watcher.WithOnChange(func() {
				title, err := opts.ReloadConfig()
				go p.Send(configMsg{title: title, err: err})
			}),
			watcher.WithOnError(func(err error) {
				if errors.Is(err, watcher.ErrFileRemoved) {
					log.Warn("config file removed", "path", opts.ConfigPath)
					return
				}
				log.Warn("config watch error", "error", err)
			}),
		)
		if err == nil {
			if err := w.Start(); err != nil {
				log.Warn("config watch disabled", "error", err)
			} else {
				defer w.Stop()
			}
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
