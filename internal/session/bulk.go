package session

import (
	"context"
	"fmt"
	"sort"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const (
	bulkRotate = "rotating"
	bulkDelete = "deleting"
)

// ExportRotations writes the pending page rotations into a new file. Only one
// rotate or delete runs at a time.
func (s *Session) ExportRotations() error {
	return s.do(s.exportRotations)
}

func (s *Session) exportRotations() error {
	if s.bulk != "" {
		return ErrBusy
	}
	rotations := s.pages.PendingRotations()
	if len(rotations) == 0 {
		return ErrNothingToSave
	}
	issued := map[int]int{}
	for _, p := range s.pages.Pages() {
		if p.Rotation != 0 {
			issued[p.Number] = p.Rotation
		}
	}

	path := s.doc.CurrentPath
	s.bulk = bulkRotate
	s.logger.Info("Rotating %d page(s) of %s", len(rotations), path)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
		newPath, err := s.backend.RotatePages(ctx, path, rotations)
		s.loop.Post(func() { s.rotated(path, issued, newPath, err) })
	}()
	return nil
}

func (s *Session) rotated(path string, issued map[int]int, newPath string, err error) {
	s.bulk = ""
	if s.closed {
		return
	}
	if err != nil {
		s.logger.Error("failed to rotate pages of %s: %v", path, err)
		s.notes.Push(fmt.Sprintf("Failed to save rotation: %v", err), models.NotifyError)
		return
	}
	if !s.doc.Advance(path, newPath) {
		s.logger.Info("Discarding rotation of %s: document moved to %s meanwhile", path, s.doc.CurrentPath)
		s.notes.Push("The document changed while rotating. Rotations were kept, save them again.", models.NotifyError)
		return
	}

	// rotations requested while the call ran stay pending
	for number, deg := range issued {
		s.pages.Rotate(number, -deg)
	}
	s.logger.Info("Saved rotation to %s", newPath)
	s.notes.Push("Rotation saved", models.NotifySuccess)
	s.record(newPath)
	s.refreshThumbnails(newPath)
}

// DeleteSelected removes the selected pages from the document. At least one
// page must remain.
func (s *Session) DeleteSelected() error {
	return s.do(s.deleteSelected)
}

func (s *Session) deleteSelected() error {
	if s.bulk != "" {
		return ErrBusy
	}
	selected := s.pages.Selected()
	if len(selected) == 0 {
		return fmt.Errorf("%w: no pages selected", models.ErrInvalidSelection)
	}
	if len(selected) >= s.pages.Len() {
		return fmt.Errorf("%w: cannot delete every page", models.ErrInvalidSelection)
	}

	positions := make([]int, 0, len(selected))
	for _, n := range selected {
		positions = append(positions, s.pages.Position(n))
	}
	sort.Ints(positions)

	path := s.doc.CurrentPath
	s.bulk = bulkDelete
	s.logger.Info("Deleting pages %v (positions %v) of %s", selected, positions, path)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
		newPath, err := s.backend.DeletePages(ctx, path, positions)
		s.loop.Post(func() { s.deleted(path, selected, newPath, err) })
	}()
	return nil
}

func (s *Session) deleted(path string, numbers []int, newPath string, err error) {
	s.bulk = ""
	if s.closed {
		return
	}
	if err != nil {
		s.logger.Error("failed to delete pages of %s: %v", path, err)
		s.notes.Push(fmt.Sprintf("Failed to delete pages: %v", err), models.NotifyError)
		return
	}
	if !s.doc.Advance(path, newPath) {
		s.logger.Info("Discarding page removal from %s: document moved to %s meanwhile", path, s.doc.CurrentPath)
		s.notes.Push("The document changed while deleting pages. Nothing was deleted, try again.", models.NotifyError)
		return
	}

	s.pages.Remove(numbers)
	s.logger.Info("Removed %d page(s), document is now %s", len(numbers), newPath)
	s.notes.Push(fmt.Sprintf("Deleted %d page(s)", len(numbers)), models.NotifySuccess)
	s.record(newPath)
}

// refreshThumbnails re-renders thumbnails from path and applies them if the
// session is still on that file.
func (s *Session) refreshThumbnails(path string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
		defer cancel()
		thumbs, err := s.backend.GetPageThumbnails(ctx, path)
		if err != nil {
			s.logger.Warn("failed to refresh thumbnails from %s: %v", path, err)
			return
		}
		s.loop.Post(func() {
			if s.closed || s.doc.CurrentPath != path {
				return
			}
			s.pages.RefreshThumbnails(thumbs)
		})
	}()
}
