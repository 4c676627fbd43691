package drag

import (
	"fmt"

	"github.com/kpauljoseph/pagedesk/pkg/logger"
)

type State int

const (
	Idle State = iota
	Dragging
	HoveringTarget
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case HoveringTarget:
		return "hovering"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = Idle
	case "dragging":
		*s = Dragging
	case "hovering":
		*s = HoveringTarget
	default:
		return fmt.Errorf("unknown drag state %q", text)
	}
	return nil
}

// Mover applies a committed drop. It reports false when either page is
// absent, in which case the drop counts as cancelled.
type Mover interface {
	Move(page, target int) bool
}

type Listener struct {
	// OnTarget reports the current drop target; 0 means none.
	OnTarget func(target int)
	// OnCommitted fires exactly once per successful drop.
	OnCommitted func()
}

// Controller turns pointer drag gestures into a single page move.
type Controller struct {
	mover    Mover
	listener Listener
	logger   *logger.Logger

	state  State
	source int
	target int
}

func NewController(mover Mover, listener Listener, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{mover: mover, listener: listener, logger: log}
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Source() int {
	return c.source
}

func (c *Controller) Target() int {
	return c.target
}

// Start begins a drag of page. A drag already in progress is abandoned.
func (c *Controller) Start(page int) {
	if c.state != Idle {
		c.reset()
	}
	c.state = Dragging
	c.source = page
	c.logger.Trace("drag start: page %d", page)
}

// Hover moves the pointer over page. Hovering the source page is the same as
// hovering nothing.
func (c *Controller) Hover(page int) {
	if c.state == Idle {
		return
	}
	if page == c.source {
		c.Leave()
		return
	}
	if c.state == HoveringTarget && c.target == page {
		return
	}
	c.state = HoveringTarget
	c.setTarget(page)
	c.logger.Trace("dragging page %d over page %d", c.source, page)
}

// Leave is called when the pointer is no longer over any candidate page.
func (c *Controller) Leave() {
	if c.state != HoveringTarget {
		return
	}
	c.state = Dragging
	c.setTarget(0)
}

// Drop releases the pointer over page and reports whether a move was
// committed. Only a drag hovering a target can commit; releasing while over
// no candidate, over the source page, or over a page that is gone cancels the
// drag. A page of 0 releases over the hovered target.
func (c *Controller) Drop(page int) bool {
	if c.state == Idle {
		return false
	}
	hovering := c.state == HoveringTarget
	source := c.source
	if page == 0 {
		page = c.target
	}
	c.reset()

	if !hovering {
		c.logger.Trace("drop of page %d outside any target, cancelled", source)
		return false
	}
	if page == source || page == 0 {
		c.logger.Trace("drop on source page %d, cancelled", source)
		return false
	}
	if !c.mover.Move(source, page) {
		c.logger.Debug("drop of page %d onto page %d ignored: page missing", source, page)
		return false
	}

	c.logger.Debug("moved page %d to position of page %d", source, page)
	if c.listener.OnCommitted != nil {
		c.listener.OnCommitted()
	}
	return true
}

// Cancel aborts the gesture from any state without touching the pages.
func (c *Controller) Cancel() {
	if c.state == Idle {
		return
	}
	c.logger.Trace("drag of page %d cancelled", c.source)
	c.reset()
}

func (c *Controller) reset() {
	c.state = Idle
	c.source = 0
	c.setTarget(0)
}

func (c *Controller) setTarget(page int) {
	if c.target == page {
		return
	}
	c.target = page
	if c.listener.OnTarget != nil {
		c.listener.OnTarget(page)
	}
}
