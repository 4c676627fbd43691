package session

import (
	"fmt"

	"github.com/kpauljoseph/pagedesk/internal/drag"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

type DragSnapshot struct {
	State  drag.State `json:"state"`
	Source int        `json:"source,omitempty"`
	Target int        `json:"target,omitempty"`
}

// Snapshot is a consistent copy of the session state, taken on the loop.
type Snapshot struct {
	ID               string                `json:"id"`
	Title            string                `json:"title"`
	SourcePath       string                `json:"source_path"`
	CurrentPath      string                `json:"current_path"`
	PageCount        int                   `json:"page_count"`
	Pages            []models.Page         `json:"pages"`
	Selection        []int                 `json:"selection"`
	Dirty            bool                  `json:"dirty"`
	SaveState        models.SaveState      `json:"save_state"`
	RotationsChanged bool                  `json:"rotations_changed"`
	Busy             string                `json:"busy,omitempty"`
	ContentState     models.ContentState   `json:"content_state"`
	Content          models.ContentBuffer  `json:"content"`
	ContentStale     bool                  `json:"content_stale"`
	Drag             DragSnapshot          `json:"drag"`
	Notifications    []models.Notification `json:"notifications"`
}

func (s *Session) State() (Snapshot, error) {
	var snap Snapshot
	err := s.do(func() error {
		buf := s.content.Buffer()
		snap = Snapshot{
			ID:               s.id,
			Title:            s.info.Title,
			SourcePath:       s.doc.SourcePath,
			CurrentPath:      s.doc.CurrentPath,
			PageCount:        s.pages.Len(),
			Pages:            s.pages.Pages(),
			Selection:        s.pages.Selected(),
			Dirty:            s.doc.Dirty,
			SaveState:        s.doc.SaveState,
			RotationsChanged: s.pages.RotationsChanged(),
			Busy:             s.bulk,
			ContentState:     s.content.State(),
			Content:          buf,
			ContentStale:     s.content.State() != models.ContentEmpty && buf.IsStale(s.doc.CurrentPath),
			Drag: DragSnapshot{
				State:  s.drag.State(),
				Source: s.drag.Source(),
				Target: s.drag.Target(),
			},
		}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.Notifications = s.notes.Active()
	return snap, nil
}

func (s *Session) Notifications() []models.Notification {
	return s.notes.Active()
}

func (s *Session) DragStart(page int) error {
	return s.do(func() error {
		s.drag.Start(page)
		return nil
	})
}

func (s *Session) DragOver(page int) error {
	return s.do(func() error {
		s.drag.Hover(page)
		return nil
	})
}

func (s *Session) DragLeave() error {
	return s.do(func() error {
		s.drag.Leave()
		return nil
	})
}

// Drop ends the drag over page and reports whether a reorder was committed.
func (s *Session) Drop(page int) (bool, error) {
	var moved bool
	err := s.do(func() error {
		moved = s.drag.Drop(page)
		return nil
	})
	return moved, err
}

func (s *Session) DragCancel() error {
	return s.do(func() error {
		s.drag.Cancel()
		return nil
	})
}

// MovePage moves page onto target's position without a pointer gesture, as
// keyboard hosts do.
func (s *Session) MovePage(page, target int) (bool, error) {
	var moved bool
	err := s.do(func() error {
		moved = s.pages.Move(page, target)
		if moved {
			s.autosave.ReorderCommitted()
		}
		return nil
	})
	return moved, err
}

// OnReorderCommitted tells the session that the page order changed and must
// be persisted. Drops committed through DragStart/Drop already do this.
func (s *Session) OnReorderCommitted() error {
	return s.do(func() error {
		s.autosave.ReorderCommitted()
		return nil
	})
}

// OnRotateRequested rotates page by delta degrees. Rotation is kept in memory
// until ExportRotations.
func (s *Session) OnRotateRequested(page, delta int) error {
	return s.do(func() error {
		if !s.pages.Rotate(page, delta) {
			return fmt.Errorf("page %d: %w", page, models.ErrInvalidSelection)
		}
		return nil
	})
}

// ToggleSelection flips the selection of page and reports whether it is now
// selected.
func (s *Session) ToggleSelection(page int) (bool, error) {
	var selected bool
	err := s.do(func() error {
		if !s.pages.ToggleSelection(page) {
			return fmt.Errorf("page %d: %w", page, models.ErrInvalidSelection)
		}
		selected = s.pages.IsSelected(page)
		return nil
	})
	return selected, err
}

func (s *Session) ClearSelection() error {
	return s.do(func() error {
		s.pages.ClearSelection()
		return nil
	})
}

// OnExtractRequested starts a text extraction. It reports false when the
// request was ignored because content is busy or being edited.
func (s *Session) OnExtractRequested() (bool, error) {
	var started bool
	err := s.do(func() error {
		started = s.content.Extract()
		return nil
	})
	return started, err
}

func (s *Session) OnEditStart() error {
	return s.do(s.content.BeginEdit)
}

func (s *Session) UpdateDraft(text string) error {
	return s.do(func() error {
		return s.content.UpdateDraft(text)
	})
}

func (s *Session) OnEditCancel() error {
	return s.do(s.content.CancelEdit)
}

// OnEditCommit writes newText back into the document. A commit against text
// extracted from an older file fails with models.ErrStaleReference.
func (s *Session) OnEditCommit(newText string) error {
	return s.do(func() error {
		return s.content.Commit(newText)
	})
}

func (s *Session) ClearContent() error {
	return s.do(s.content.Clear)
}

// Save persists the page order now. It reports false when there was nothing
// to save.
func (s *Session) Save() (bool, error) {
	var started bool
	err := s.do(func() error {
		started = s.autosave.SaveNow()
		return nil
	})
	return started, err
}
