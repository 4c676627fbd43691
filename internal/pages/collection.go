package pages

import (
	"sort"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

// Collection is the ordered, mutable page model of one open document. Slice
// order is display order. Selection is kept beside the pages so multi-select
// does not depend on ordering.
//
// base is the order of page numbers as they physically sit in the file at the
// session's current path. Engine calls address pages by position in base.
type Collection struct {
	pages     []models.Page
	base      []int
	selected  map[int]struct{}
	total     int
	dirty     bool
	rotations bool
}

func New() *Collection {
	return &Collection{selected: map[int]struct{}{}}
}

// Load replaces the collection with pageCount pages numbered 1..pageCount.
// Thumbnails attach by page number; pages without one keep a nil thumbnail.
func (c *Collection) Load(pageCount int, thumbnails []models.PageThumbnail) {
	byPage := make(map[int][]byte, len(thumbnails))
	for _, t := range thumbnails {
		if t.Page >= 1 && t.Page <= pageCount {
			byPage[t.Page] = t.Thumbnail
		}
	}

	c.pages = make([]models.Page, 0, pageCount)
	c.base = make([]int, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		c.pages = append(c.pages, models.Page{Number: n, Thumbnail: byPage[n]})
		c.base = append(c.base, n)
	}
	c.selected = map[int]struct{}{}
	c.total = pageCount
	c.dirty = false
	c.rotations = false
}

func (c *Collection) Len() int {
	return len(c.pages)
}

// PageCount is the page count of the document as opened.
func (c *Collection) PageCount() int {
	return c.total
}

func (c *Collection) Pages() []models.Page {
	out := make([]models.Page, len(c.pages))
	copy(out, c.pages)
	return out
}

func (c *Collection) Order() []int {
	out := make([]int, len(c.pages))
	for i, p := range c.pages {
		out[i] = p.Number
	}
	return out
}

func (c *Collection) Contains(number int) bool {
	return c.index(number) >= 0
}

// Move relocates the page `number` to the index currently held by `target`
// (remove, then insert). It reports false and changes nothing when the two are
// equal or either is absent.
func (c *Collection) Move(number, target int) bool {
	if number == target {
		return false
	}
	from := c.index(number)
	to := c.index(target)
	if from < 0 || to < 0 {
		return false
	}

	page := c.pages[from]
	c.pages = append(c.pages[:from], c.pages[from+1:]...)
	c.pages = append(c.pages[:to], append([]models.Page{page}, c.pages[to:]...)...)
	c.dirty = true
	return true
}

// Rotate adds delta degrees to the page's rotation. Rotation is not a reorder
// and never marks the collection dirty.
func (c *Collection) Rotate(number, delta int) bool {
	i := c.index(number)
	if i < 0 {
		return false
	}
	c.pages[i].Rotation = models.NormalizeRotation(c.pages[i].Rotation + delta)
	c.rotations = c.hasRotations()
	return true
}

func (c *Collection) Rotation(number int) int {
	if i := c.index(number); i >= 0 {
		return c.pages[i].Rotation
	}
	return 0
}

func (c *Collection) ToggleSelection(number int) bool {
	if c.index(number) < 0 {
		return false
	}
	if _, ok := c.selected[number]; ok {
		delete(c.selected, number)
	} else {
		c.selected[number] = struct{}{}
	}
	return true
}

func (c *Collection) IsSelected(number int) bool {
	_, ok := c.selected[number]
	return ok
}

// Selected returns the selected page numbers in ascending order.
func (c *Collection) Selected() []int {
	out := make([]int, 0, len(c.selected))
	for n := range c.selected {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (c *Collection) ClearSelection() {
	c.selected = map[int]struct{}{}
}

func (c *Collection) Dirty() bool {
	return c.dirty
}

func (c *Collection) ClearDirty() {
	c.dirty = false
}

// RotationsChanged reports whether any page carries an unsaved rotation.
func (c *Collection) RotationsChanged() bool {
	return c.rotations
}

// Position returns the 1-based position of page `number` in the file at the
// current path, or 0 when the page is not in that file.
func (c *Collection) Position(number int) int {
	for i, n := range c.base {
		if n == number {
			return i + 1
		}
	}
	return 0
}

// BackendOrder translates the display order into positions of the file at the
// current path, which is what a reorder call against that file expects.
func (c *Collection) BackendOrder() []int {
	out := make([]int, 0, len(c.pages))
	for _, p := range c.pages {
		if pos := c.Position(p.Number); pos > 0 {
			out = append(out, pos)
		}
	}
	return out
}

// Rebase records that the file at the current path now holds pages in
// `order` (page numbers).
func (c *Collection) Rebase(order []int) {
	c.base = append([]int(nil), order...)
}

// Base returns the page numbers in the order they sit in the current file.
func (c *Collection) Base() []int {
	return append([]int(nil), c.base...)
}

// PendingRotations maps file positions to the rotation to apply there, for
// every page with a non-zero rotation.
func (c *Collection) PendingRotations() map[int]int {
	out := map[int]int{}
	for _, p := range c.pages {
		if p.Rotation == 0 {
			continue
		}
		if pos := c.Position(p.Number); pos > 0 {
			out[pos] = p.Rotation
		}
	}
	return out
}

// ClearRotations resets every rotation after they were written to the file.
func (c *Collection) ClearRotations() {
	for i := range c.pages {
		c.pages[i].Rotation = 0
	}
	c.rotations = false
}

// RefreshThumbnails replaces thumbnails with ones rendered from the file at
// the current path. Their Page fields are positions in that file.
func (c *Collection) RefreshThumbnails(thumbnails []models.PageThumbnail) {
	for _, t := range thumbnails {
		if t.Page < 1 || t.Page > len(c.base) {
			continue
		}
		if i := c.index(c.base[t.Page-1]); i >= 0 {
			c.pages[i].Thumbnail = t.Thumbnail
		}
	}
}

// Remove drops the given pages from display order, base layout and selection.
func (c *Collection) Remove(numbers []int) {
	drop := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		drop[n] = struct{}{}
		delete(c.selected, n)
	}

	kept := c.pages[:0]
	for _, p := range c.pages {
		if _, ok := drop[p.Number]; !ok {
			kept = append(kept, p)
		}
	}
	c.pages = kept

	base := c.base[:0]
	for _, n := range c.base {
		if _, ok := drop[n]; !ok {
			base = append(base, n)
		}
	}
	c.base = base
	c.rotations = c.hasRotations()
}

func (c *Collection) index(number int) int {
	for i, p := range c.pages {
		if p.Number == number {
			return i
		}
	}
	return -1
}

func (c *Collection) hasRotations() bool {
	for _, p := range c.pages {
		if p.Rotation != 0 {
			return true
		}
	}
	return false
}
