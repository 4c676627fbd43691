package autosave

import (
	"context"
	"fmt"
	"time"

	"github.com/kpauljoseph/pagedesk/internal/clock"
	"github.com/kpauljoseph/pagedesk/internal/loop"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const (
	DefaultDebounce = 3 * time.Second
	DefaultTimeout  = 2 * time.Minute
)

type Reorderer interface {
	ReorderPages(ctx context.Context, path string, order []int) (string, error)
}

// Layout is the page model the pipeline persists.
type Layout interface {
	// Order is the display order as page numbers.
	Order() []int
	// BackendOrder is the display order as positions in the current file.
	BackendOrder() []int
	Rebase(order []int)
	ClearDirty()
}

type Notifier interface {
	Push(message string, kind models.NotificationKind) models.Notification
}

type Options struct {
	Debounce time.Duration
	Timeout  time.Duration
	Clock    clock.Clock
	Logger   *logger.Logger
	// OnSaved runs on the session thread after a save landed. It must not
	// block.
	OnSaved func(path string)
}

// Pipeline coalesces bursts of reorder commits into one ReorderPages call per
// idle window. At most one call is in flight; work that arrives meanwhile is
// re-evaluated when the call resolves. All methods must run on the dispatcher's
// thread.
type Pipeline struct {
	doc      *models.SessionDocument
	layout   Layout
	backend  Reorderer
	dispatch loop.Dispatcher
	notes    Notifier
	clock    clock.Clock
	logger   *logger.Logger
	debounce time.Duration
	timeout  time.Duration
	onSaved  func(string)

	timer    clock.Timer
	gen      uint64
	revision uint64
	inFlight bool
	pending  bool
	closed   bool
	calls    int
}

func New(doc *models.SessionDocument, layout Layout, backend Reorderer, dispatch loop.Dispatcher, notes Notifier, opts Options) *Pipeline {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Pipeline{
		doc:      doc,
		layout:   layout,
		backend:  backend,
		dispatch: dispatch,
		notes:    notes,
		clock:    opts.Clock,
		logger:   opts.Logger,
		debounce: opts.Debounce,
		timeout:  opts.Timeout,
		onSaved:  opts.OnSaved,
	}
}

// ReorderCommitted marks the document dirty and restarts the debounce window.
func (p *Pipeline) ReorderCommitted() {
	if p.closed {
		return
	}
	p.revision++
	p.doc.Dirty = true
	if !p.inFlight {
		p.doc.SaveState = models.SavePending
	}
	p.restartTimer()
	p.logger.Trace("reorder committed (revision %d), autosave in %s", p.revision, p.debounce)
}

// SaveNow saves immediately, skipping the debounce window. It does nothing and
// reports false when there is nothing to save.
func (p *Pipeline) SaveNow() bool {
	if p.closed || !p.doc.Dirty {
		return false
	}
	p.stopTimer()
	p.save("manual")
	return true
}

func (p *Pipeline) InFlight() bool {
	return p.inFlight
}

// Calls is the number of ReorderPages calls issued so far.
func (p *Pipeline) Calls() int {
	return p.calls
}

// Close stops the debounce timer. Completions that arrive later are ignored.
func (p *Pipeline) Close() {
	p.closed = true
	p.stopTimer()
}

func (p *Pipeline) restartTimer() {
	p.stopTimer()
	gen := p.gen
	p.timer = p.clock.AfterFunc(p.debounce, func() {
		p.dispatch.Post(func() { p.fire(gen) })
	})
}

func (p *Pipeline) stopTimer() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pipeline) fire(gen uint64) {
	if p.closed || gen != p.gen {
		return
	}
	p.timer = nil
	p.logger.Debug("debounced autosave triggered")
	p.save("autosave")
}

func (p *Pipeline) save(reason string) {
	if !p.doc.Dirty {
		return
	}
	if p.inFlight {
		p.pending = true
		p.logger.Debug("%s deferred: a save is already in flight", reason)
		return
	}

	p.inFlight = true
	p.calls++
	p.doc.SaveState = models.SaveSaving

	path := p.doc.CurrentPath
	order := p.layout.BackendOrder()
	display := p.layout.Order()
	revision := p.revision
	p.logger.Info("Saving page order %v of %s (%s)", display, path, reason)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		newPath, err := p.backend.ReorderPages(ctx, path, order)
		p.dispatch.Post(func() { p.complete(path, display, revision, newPath, err) })
	}()
}

func (p *Pipeline) complete(path string, display []int, revision uint64, newPath string, err error) {
	p.inFlight = false
	if p.closed {
		return
	}
	pending := p.pending
	p.pending = false

	if err != nil {
		p.doc.SaveState = models.SaveFailed
		p.logger.Error("failed to save page order of %s: %v", path, err)
		p.notes.Push(fmt.Sprintf("Failed to save changes: %v", err), models.NotifyError)
		if pending {
			p.save("deferred")
		}
		return
	}

	if !p.doc.Advance(path, newPath) {
		p.logger.Info("Discarding save of %s: document moved to %s meanwhile", path, p.doc.CurrentPath)
		p.doc.SaveState = models.SavePending
		p.save("rebased")
		return
	}

	p.layout.Rebase(display)
	if revision == p.revision {
		p.doc.Dirty = false
		p.layout.ClearDirty()
	}
	p.doc.SaveState = models.SaveSaved
	p.logger.Info("Saved page order to %s", newPath)
	p.notes.Push("Changes saved successfully", models.NotifySuccess)
	if p.onSaved != nil {
		p.onSaved(newPath)
	}

	if p.doc.Dirty {
		p.doc.SaveState = models.SavePending
		if pending {
			p.save("deferred")
		}
	}
}
