package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kpauljoseph/pagedesk/internal/clock"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const DefaultDuration = 3 * time.Second

// Queue holds short-lived status messages. Entries expire on their own after
// their display duration. It is safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	clock    clock.Clock
	duration time.Duration
	items    []models.Notification
	subs     map[int]chan struct{}
	nextSub  int
}

func NewQueue(c clock.Clock, duration time.Duration) *Queue {
	if c == nil {
		c = clock.Real()
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Queue{
		clock:    c,
		duration: duration,
		subs:     map[int]chan struct{}{},
	}
}

func (q *Queue) Push(message string, kind models.NotificationKind) models.Notification {
	return q.PushFor(message, kind, q.duration)
}

func (q *Queue) PushFor(message string, kind models.NotificationKind, d time.Duration) models.Notification {
	if d <= 0 {
		d = q.duration
	}
	now := q.clock.Now()
	n := models.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		CreatedAt: now,
		ExpiresAt: now.Add(d),
	}

	q.mu.Lock()
	q.items = append(q.items, n)
	q.mu.Unlock()
	q.changed()

	q.clock.AfterFunc(d, func() { q.expire(n.ID) })
	return n
}

// Active returns the live notifications, oldest first.
func (q *Queue) Active() []models.Notification {
	now := q.clock.Now()
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.Notification, 0, len(q.items))
	for _, n := range q.items {
		if now.Before(n.ExpiresAt) {
			out = append(out, n)
		}
	}
	return out
}

func (q *Queue) Len() int {
	return len(q.Active())
}

// Subscribe returns a channel that receives a signal after every change. The
// channel is buffered by one, so a slow reader sees coalesced signals.
func (q *Queue) Subscribe() (<-chan struct{}, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	ch := make(chan struct{}, 1)
	q.subs[id] = ch
	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	removed := false
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			removed = true
			break
		}
	}
	q.mu.Unlock()
	if removed {
		q.changed()
	}
}

func (q *Queue) changed() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
