package loop_test

import (
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/loop"
)

func TestLoop(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Loop Suite")
}

var _ = Describe("Loop", func() {
	var l *loop.Loop

	AfterEach(func() {
		l.Close()
	})

	It("should run posted work in order", func() {
		l = loop.New(nil)
		var got []int
		for i := 0; i < 5; i++ {
			i := i
			Expect(l.Post(func() { got = append(got, i) })).To(BeTrue())
		}
		Expect(l.Call(func() {})).To(Succeed())
		Expect(got).To(Equal([]int{0, 1, 2, 3, 4}))
	})

	It("should never run two tasks at once", func() {
		l = loop.New(nil)
		var running, overlaps atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				l.Post(func() {
					if running.Add(1) > 1 {
						overlaps.Add(1)
					}
					running.Add(-1)
				})
			}()
		}
		wg.Wait()
		Expect(l.Call(func() {})).To(Succeed())
		Expect(overlaps.Load()).To(BeZero())
	})

	It("should allow posting from inside a task", func() {
		l = loop.New(nil)
		done := make(chan struct{})
		l.Post(func() {
			l.Post(func() { close(done) })
		})
		Eventually(done).Should(BeClosed())
	})

	It("should run the after hook once per task", func() {
		var hooks atomic.Int32
		l = loop.New(func() { hooks.Add(1) })
		l.Post(func() {})
		l.Post(func() {})
		Expect(l.Call(func() {})).To(Succeed())
		Eventually(hooks.Load).Should(BeEquivalentTo(3))
	})

	It("should drop work after close", func() {
		l = loop.New(nil)
		l.Close()
		Expect(l.Closed()).To(BeTrue())
		Expect(l.Post(func() {})).To(BeFalse())
		Expect(l.Call(func() {})).To(MatchError(loop.ErrClosed))
	})

	It("should drain queued work on close", func() {
		l = loop.New(nil)
		ran := atomic.Bool{}
		l.Post(func() { ran.Store(true) })
		l.Close()
		Expect(ran.Load()).To(BeTrue())
	})
})
