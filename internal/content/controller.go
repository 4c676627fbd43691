package content

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kpauljoseph/pagedesk/internal/loop"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const (
	DefaultTimeout         = 2 * time.Minute
	DefaultSuccessDuration = 4 * time.Second
)

var (
	ErrBusy       = errors.New("content operation already in flight")
	ErrNotEditing = errors.New("content is not being edited")
	ErrNoContent  = errors.New("no extracted content")
)

var DefaultLanguages = []string{"eng", "ind"}

type Backend interface {
	ExtractText(ctx context.Context, path string, languages []string) (string, error)
	ReplaceText(ctx context.Context, path, oldText, newText string) (models.ReplaceResult, error)
}

type Notifier interface {
	Push(message string, kind models.NotificationKind) models.Notification
	PushFor(message string, kind models.NotificationKind, d time.Duration) models.Notification
}

type Options struct {
	Languages       []string
	Timeout         time.Duration
	SuccessDuration time.Duration
	Logger          *logger.Logger
	// OnReplaced runs on the session thread after a commit produced a new
	// file.
	OnReplaced func(result models.ReplaceResult)
}

// Controller keeps the extracted text of the document in step with the file
// it came from. Like every session component it must only be used from the
// dispatcher's thread.
type Controller struct {
	doc      *models.SessionDocument
	backend  Backend
	dispatch loop.Dispatcher
	notes    Notifier
	opts     Options
	logger   *logger.Logger

	state  models.ContentState
	buf    models.ContentBuffer
	closed bool
	// set when the file changed on disk while a backend call was running
	invalidated bool
}

func NewController(doc *models.SessionDocument, backend Backend, dispatch loop.Dispatcher, notes Notifier, opts Options) *Controller {
	if len(opts.Languages) == 0 {
		opts.Languages = DefaultLanguages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SuccessDuration <= 0 {
		opts.SuccessDuration = DefaultSuccessDuration
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Controller{
		doc:      doc,
		backend:  backend,
		dispatch: dispatch,
		notes:    notes,
		opts:     opts,
		logger:   opts.Logger,
	}
}

func (c *Controller) State() models.ContentState {
	return c.state
}

// Buffer returns a copy of the content buffer.
func (c *Controller) Buffer() models.ContentBuffer {
	b := c.buf
	if b.EditedText != nil {
		draft := *b.EditedText
		b.EditedText = &draft
	}
	return b
}

// Extract reads the text of the current file. It reports false when the
// request was ignored because of the current state.
func (c *Controller) Extract() bool {
	if c.closed {
		return false
	}
	switch c.state {
	case models.ContentEmpty, models.ContentExtracted:
	default:
		c.logger.Debug("extract ignored while %s", c.state)
		return false
	}

	c.state = models.ContentExtracting
	c.invalidated = false
	path := c.doc.CurrentPath
	languages := append([]string(nil), c.opts.Languages...)
	c.logger.Info("Extracting text from %s", path)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
		defer cancel()
		text, err := c.backend.ExtractText(ctx, path, languages)
		c.dispatch.Post(func() { c.extracted(path, text, err) })
	}()
	return true
}

func (c *Controller) extracted(path, text string, err error) {
	if c.closed || c.state != models.ContentExtracting {
		return
	}
	if err != nil {
		c.state = models.ContentEmpty
		c.buf = models.ContentBuffer{}
		c.logger.Error("failed to extract text from %s: %v", path, err)
		c.notes.Push(fmt.Sprintf("Failed to extract content: %v", err), models.NotifyError)
		return
	}

	if c.invalidated {
		path = ""
		c.invalidated = false
	}
	c.buf = models.ContentBuffer{ExtractedText: text, ExtractedAtPath: path}
	c.state = models.ContentExtracted
	c.logger.Debug("extracted %d characters", len(text))
}

// BeginEdit opens a draft initialised from the extracted text.
func (c *Controller) BeginEdit() error {
	if c.state != models.ContentExtracted {
		return ErrNoContent
	}
	draft := c.buf.ExtractedText
	c.buf.EditedText = &draft
	c.state = models.ContentEditing
	return nil
}

func (c *Controller) UpdateDraft(text string) error {
	if c.state != models.ContentEditing {
		return ErrNotEditing
	}
	c.buf.EditedText = &text
	return nil
}

// CancelEdit drops the draft without touching the file.
func (c *Controller) CancelEdit() error {
	if c.state != models.ContentEditing {
		return ErrNotEditing
	}
	c.buf.EditedText = nil
	c.state = models.ContentExtracted
	return nil
}

// Commit writes newText back into the document. It returns
// models.ErrStaleReference without contacting the backend when the file has
// moved on since the text was extracted; the draft is kept in that case.
func (c *Controller) Commit(newText string) error {
	if c.closed || c.state != models.ContentEditing {
		return ErrNotEditing
	}
	c.buf.EditedText = &newText

	if c.buf.IsStale(c.doc.CurrentPath) {
		c.rejectStale()
		return models.ErrStaleReference
	}

	c.state = models.ContentCommitting
	c.invalidated = false
	path := c.doc.CurrentPath
	oldText := c.buf.ExtractedText
	c.logger.Info("Replacing content of %s", path)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
		defer cancel()
		result, err := c.backend.ReplaceText(ctx, path, oldText, newText)
		c.dispatch.Post(func() { c.committed(path, newText, result, err) })
	}()
	return nil
}

func (c *Controller) committed(path, draft string, result models.ReplaceResult, err error) {
	if c.closed || c.state != models.ContentCommitting {
		return
	}
	invalidated := c.invalidated
	if invalidated {
		c.buf.ExtractedAtPath = ""
		c.invalidated = false
	}
	if err != nil {
		c.state = models.ContentEditing
		c.logger.Error("failed to replace content of %s: %v", path, err)
		c.notes.Push(fmt.Sprintf("Failed to save content: %v", err), models.NotifyError)
		return
	}
	// The replacement was computed from the file as it was before the outside
	// change, so its output is not adopted.
	if invalidated {
		c.state = models.ContentEditing
		c.logger.Info("Discarding content save of %s: file changed on disk meanwhile", path)
		c.rejectStale()
		return
	}
	if !c.doc.Advance(path, result.NewPath) {
		c.state = models.ContentEditing
		c.logger.Info("Discarding content save of %s: document moved to %s meanwhile", path, c.doc.CurrentPath)
		c.rejectStale()
		return
	}

	c.buf = models.ContentBuffer{ExtractedText: draft, ExtractedAtPath: result.NewPath}
	c.state = models.ContentExtracted
	c.logger.Info("Saved content to %s (%d replacements)", result.NewPath, result.ReplacementCount)
	c.notes.PushFor(
		fmt.Sprintf("PDF saved: %s (%d changes)", filepath.Base(result.NewPath), result.ReplacementCount),
		models.NotifySuccess,
		c.opts.SuccessDuration,
	)
	if c.opts.OnReplaced != nil {
		c.opts.OnReplaced(result)
	}
}

func (c *Controller) rejectStale() {
	c.logger.Warn("content commit rejected: extracted from %q, document is now %q", c.buf.ExtractedAtPath, c.doc.CurrentPath)
	c.notes.Push("Content is stale: the document changed since it was extracted. Extract again before saving.", models.NotifyError)
}

// Clear dismisses the extracted content. It is refused while a backend call
// is running.
func (c *Controller) Clear() error {
	switch c.state {
	case models.ContentExtracting, models.ContentCommitting:
		return ErrBusy
	}
	c.buf = models.ContentBuffer{}
	c.state = models.ContentEmpty
	return nil
}

// Invalidate records that the file behind the extracted text changed outside
// the session, so the next commit is rejected as stale. A commit already
// running is discarded when it completes.
func (c *Controller) Invalidate() {
	switch c.state {
	case models.ContentExtracting, models.ContentCommitting:
		c.invalidated = true
	case models.ContentExtracted, models.ContentEditing:
		c.buf.ExtractedAtPath = ""
	}
}

func (c *Controller) Close() {
	c.closed = true
}
