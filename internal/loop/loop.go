package loop

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("loop closed")

// Dispatcher schedules work onto a single logical thread.
type Dispatcher interface {
	// Post queues f and reports whether it was accepted. Work posted after
	// the loop closed is dropped.
	Post(f func()) bool
}

// Loop runs posted functions one at a time on its own goroutine. The queue is
// unbounded so posting from inside a running task never blocks.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	closed  bool
	after   func()
}

// New starts a loop. after, when non-nil, runs on the loop goroutine after
// every task.
func New(after func()) *Loop {
	l := &Loop{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		after:   after,
	}
	go l.run()
	return l
}

func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs f on the loop and waits for it. Calling it from a task running on
// the same loop deadlocks.
func (l *Loop) Call(f func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		f()
	}) {
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-l.stopped:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops accepting work, drains what was already queued and waits for the
// loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	l.closed = true
	l.mu.Unlock()
	close(l.done)
	<-l.stopped
}

func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, f := range batch {
			f()
			if l.after != nil {
				l.after()
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-l.wake:
		case <-l.done:
			l.mu.Lock()
			remaining := len(l.queue)
			l.mu.Unlock()
			if remaining == 0 {
				return
			}
		}
	}
}
