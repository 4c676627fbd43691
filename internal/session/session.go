package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kpauljoseph/pagedesk/internal/autosave"
	"github.com/kpauljoseph/pagedesk/internal/catalog"
	"github.com/kpauljoseph/pagedesk/internal/clock"
	"github.com/kpauljoseph/pagedesk/internal/config"
	"github.com/kpauljoseph/pagedesk/internal/content"
	"github.com/kpauljoseph/pagedesk/internal/drag"
	"github.com/kpauljoseph/pagedesk/internal/engine"
	"github.com/kpauljoseph/pagedesk/internal/loop"
	"github.com/kpauljoseph/pagedesk/internal/notify"
	"github.com/kpauljoseph/pagedesk/internal/pages"
	"github.com/kpauljoseph/pagedesk/internal/watch"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const DefaultImageConcurrency = 4

var (
	ErrClosed        = errors.New("session closed")
	ErrBusy          = errors.New("another page operation is in flight")
	ErrNothingToSave = errors.New("nothing to save")
)

type Options struct {
	Debounce                    time.Duration
	NotificationDuration        time.Duration
	ContentNotificationDuration time.Duration
	Timeout                     time.Duration
	Languages                   []string
	AutoExtract                 bool
	ImageConcurrency            int
	// Watch enables detection of changes other programs make to the file.
	Watch   bool
	Clock   clock.Clock
	Logger  *logger.Logger
	Catalog catalog.Store
}

// OptionsFromConfig maps the config file onto session options. Clock, Logger
// and Catalog are left for the caller.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Debounce:                    cfg.Autosave.Debounce,
		NotificationDuration:        cfg.Notifications.Duration,
		ContentNotificationDuration: cfg.Notifications.ContentDuration,
		Timeout:                     cfg.Engine.Timeout,
		Languages:                   append([]string(nil), cfg.Content.Languages...),
		AutoExtract:                 cfg.Content.AutoExtract,
		ImageConcurrency:            cfg.Engine.ImageFetchConcurrency,
		Watch:                       cfg.Watch.Enabled,
	}
}

// Session is the live editing context of one open document. Every state
// change runs on the session's loop; the exported methods are safe to call
// from any goroutine except the loop itself.
type Session struct {
	id      string
	backend engine.Backend
	opts    Options
	logger  *logger.Logger
	info    models.DocumentInfo

	loop     *loop.Loop
	notes    *notify.Queue
	doc      *models.SessionDocument
	pages    *pages.Collection
	drag     *drag.Controller
	autosave *autosave.Pipeline
	content  *content.Controller
	watcher  *watch.Watcher
	watched  string

	// name of the rotate or delete call in flight, if any
	bulk   string
	closed bool

	cancel    context.CancelFunc
	records   sync.WaitGroup
	closeOnce sync.Once

	subsMu  sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// Open loads the document at path and starts a session on it. Failing to read
// the document info is fatal; failing to render thumbnails is not.
func Open(ctx context.Context, backend engine.Backend, path string, opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = autosave.DefaultTimeout
	}
	if opts.ImageConcurrency < 1 {
		opts.ImageConcurrency = DefaultImageConcurrency
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	log := opts.Logger.Named("session")
	info, err := backend.GetDocumentInfo(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", abs, err)
	}
	log.Info("Opened %s (%d pages)", abs, info.PageCount)

	notes := notify.NewQueue(opts.Clock, opts.NotificationDuration)

	thumbs, err := backend.GetPageThumbnails(ctx, abs)
	if err != nil {
		log.Warn("failed to load thumbnails of %s: %v", abs, err)
		notes.Push(fmt.Sprintf("Failed to load page thumbnails: %v", err), models.NotifyError)
		thumbs = nil
	}

	s := &Session{
		id:      uuid.NewString(),
		backend: backend,
		opts:    opts,
		logger:  log,
		info:    info,
		notes:   notes,
		doc:     models.NewSessionDocument(abs),
		pages:   pages.New(),
		subs:    map[int]chan struct{}{},
	}
	s.pages.Load(info.PageCount, thumbs)
	s.loop = loop.New(s.afterTask)

	s.autosave = autosave.New(s.doc, s.pages, backend, s.loop, notes, autosave.Options{
		Debounce: opts.Debounce,
		Timeout:  opts.Timeout,
		Clock:    opts.Clock,
		Logger:   opts.Logger.Named("autosave"),
		OnSaved:  s.record,
	})
	s.content = content.NewController(s.doc, backend, s.loop, notes, content.Options{
		Languages:       opts.Languages,
		Timeout:         opts.Timeout,
		SuccessDuration: opts.ContentNotificationDuration,
		Logger:          opts.Logger.Named("content"),
		OnReplaced: func(result models.ReplaceResult) {
			s.record(result.NewPath)
		},
	})
	s.drag = drag.NewController(s.pages, drag.Listener{
		OnCommitted: s.autosave.ReorderCommitted,
	}, opts.Logger.Named("drag"))

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if opts.Watch {
		w, err := watch.New(func(changed string) {
			s.loop.Post(func() { s.externalChange(changed) })
		}, opts.Logger.Named("watch"))
		if err != nil {
			log.Warn("file watching disabled: %v", err)
		} else {
			s.watcher = w
			go func() { _ = w.Run(runCtx) }()
		}
	}

	go s.forwardNotifications(runCtx)

	s.loop.Post(func() {
		s.record(abs)
		if opts.AutoExtract {
			s.content.Extract()
		}
	})
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Info() models.DocumentInfo {
	return s.info
}

// Close stops timers, the watcher and the loop. Backend calls still running
// finish on their own and their results are dropped.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.loop.Call(func() {
			s.closed = true
			s.autosave.Close()
			s.content.Close()
		})
		s.cancel()
		if s.watcher != nil {
			if err := s.watcher.Close(); err != nil {
				s.logger.Warn("failed to close watcher: %v", err)
			}
		}
		s.loop.Close()
		s.records.Wait()
		s.logger.Debug("session %s closed", s.id)
	})
	return nil
}

// Subscribe returns a channel signalled after every state change, including
// notifications appearing or expiring. Signals coalesce.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan struct{}, 1)
	s.subs[id] = ch
	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) changed() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Session) forwardNotifications(ctx context.Context) {
	ch, unsubscribe := s.notes.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			s.changed()
		}
	}
}

// afterTask runs on the loop after every task.
func (s *Session) afterTask() {
	if s.watcher != nil && !s.closed && s.doc.CurrentPath != s.watched {
		if err := s.watcher.Track(s.doc.CurrentPath); err != nil {
			s.logger.Warn("failed to watch %s: %v", s.doc.CurrentPath, err)
		}
		s.watched = s.doc.CurrentPath
	}
	s.changed()
}

func (s *Session) externalChange(path string) {
	if s.closed {
		return
	}
	current, err := filepath.Abs(s.doc.CurrentPath)
	if err != nil || current != path {
		return
	}
	s.logger.Warn("%s was modified outside the session", path)
	s.content.Invalidate()
	s.notes.Push("The document was changed by another program. Extract the content again before editing it.", models.NotifyInfo)
}

// record writes a catalog entry for path in the background. Failures are only
// logged.
func (s *Session) record(path string) {
	if s.opts.Catalog == nil || s.closed {
		return
	}
	info := s.info
	info.PageCount = s.pages.Len()
	s.records.Add(1)
	go func() {
		defer s.records.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
		rec, err := catalog.RecordFor(path, info)
		if err == nil {
			_, err = s.opts.Catalog.Save(ctx, rec)
		}
		if err != nil {
			s.logger.Warn("failed to record %s in catalog: %v", path, err)
			return
		}
		s.logger.Trace("recorded %s in catalog", path)
	}()
}

// do runs f on the loop and returns its error.
func (s *Session) do(f func() error) error {
	var err error
	if callErr := s.loop.Call(func() {
		if s.closed {
			err = ErrClosed
			return
		}
		err = f()
	}); callErr != nil {
		return ErrClosed
	}
	return err
}
