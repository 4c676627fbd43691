package notify_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/clock"
	"github.com/kpauljoseph/pagedesk/internal/notify"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

func TestNotify(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notify Suite")
}

var _ = Describe("Notification queue", func() {
	var (
		fake  *clock.Fake
		queue *notify.Queue
	)

	BeforeEach(func() {
		fake = clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		queue = notify.NewQueue(fake, 3*time.Second)
	})

	It("should be present right after push and gone after its duration", func() {
		n := queue.Push("Changes saved", models.NotifySuccess)
		Expect(n.ID).NotTo(BeEmpty())
		Expect(n.CreatedAt).To(Equal(fake.Now()))
		Expect(queue.Active()).To(ConsistOf(n))

		fake.Advance(2999 * time.Millisecond)
		Expect(queue.Active()).To(HaveLen(1))

		fake.Advance(time.Millisecond)
		Expect(queue.Active()).To(BeEmpty())
	})

	It("should keep entries in push order without merging duplicates", func() {
		queue.Push("same", models.NotifyInfo)
		fake.Advance(time.Second)
		queue.Push("same", models.NotifyInfo)
		queue.Push("other", models.NotifyError)

		active := queue.Active()
		Expect(active).To(HaveLen(3))
		Expect(active[0].Message).To(Equal("same"))
		Expect(active[2].Kind).To(Equal(models.NotifyError))

		fake.Advance(2 * time.Second)
		Expect(queue.Active()).To(HaveLen(2))
	})

	It("should honour per-entry durations", func() {
		queue.PushFor("long", models.NotifySuccess, 4*time.Second)
		queue.Push("short", models.NotifySuccess)
		fake.Advance(3 * time.Second)
		active := queue.Active()
		Expect(active).To(HaveLen(1))
		Expect(active[0].Message).To(Equal("long"))
	})

	It("should signal subscribers on push and expiry", func() {
		ch, cancel := queue.Subscribe()
		defer cancel()

		queue.Push("hello", models.NotifyInfo)
		Eventually(ch).Should(Receive())

		fake.Advance(3 * time.Second)
		Eventually(ch).Should(Receive())
	})

	It("should default the duration", func() {
		q := notify.NewQueue(fake, 0)
		n := q.Push("x", models.NotifyInfo)
		Expect(n.ExpiresAt.Sub(n.CreatedAt)).To(Equal(notify.DefaultDuration))
	})
})
