package models_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

func TestModels(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Models Suite")
}

var _ = Describe("Session models", func() {
	Context("SessionDocument", func() {
		It("should start with current path equal to source path", func() {
			doc := models.NewSessionDocument("/docs/a.pdf")
			Expect(doc.SourcePath).To(Equal("/docs/a.pdf"))
			Expect(doc.CurrentPath).To(Equal("/docs/a.pdf"))
			Expect(doc.Dirty).To(BeFalse())
			Expect(doc.SaveState).To(Equal(models.SaveIdle))
		})

		It("should only advance from the expected path", func() {
			doc := models.NewSessionDocument("/docs/a.pdf")
			Expect(doc.Advance("/docs/other.pdf", "/docs/b.pdf")).To(BeFalse())
			Expect(doc.CurrentPath).To(Equal("/docs/a.pdf"))

			Expect(doc.Advance("/docs/a.pdf", "/docs/b.pdf")).To(BeTrue())
			Expect(doc.CurrentPath).To(Equal("/docs/b.pdf"))
		})

		It("should refuse an empty target path", func() {
			doc := models.NewSessionDocument("/docs/a.pdf")
			Expect(doc.Advance("/docs/a.pdf", "")).To(BeFalse())
		})
	})

	Context("ContentBuffer", func() {
		It("should be stale once the path moved", func() {
			buf := models.ContentBuffer{ExtractedText: "x", ExtractedAtPath: "/a.pdf"}
			Expect(buf.IsStale("/a.pdf")).To(BeFalse())
			Expect(buf.IsStale("/b.pdf")).To(BeTrue())
		})
	})

	DescribeTable("NormalizeRotation",
		func(in, out int) {
			Expect(models.NormalizeRotation(in)).To(Equal(out))
		},
		Entry("zero", 0, 0),
		Entry("quarter", 90, 90),
		Entry("full turn", 360, 0),
		Entry("negative quarter", -90, 270),
		Entry("more than a turn", 450, 90),
		Entry("large negative", -630, 90),
	)

	DescribeTable("ParsePDFDate",
		func(in string, ok bool, want time.Time) {
			got, parsed := models.ParsePDFDate(in)
			Expect(parsed).To(Equal(ok))
			if ok {
				Expect(got).To(Equal(want))
			}
		},
		Entry("full date with zone", "D:20220629120000+07'00'", true, time.Date(2022, 6, 29, 12, 0, 0, 0, time.UTC)),
		Entry("date only", "D:20220629", true, time.Date(2022, 6, 29, 0, 0, 0, 0, time.UTC)),
		Entry("missing prefix", "20220629", false, time.Time{}),
		Entry("too short", "D:2022", false, time.Time{}),
		Entry("empty", "", false, time.Time{}),
	)

	Context("Enum text", func() {
		It("should render save and content states", func() {
			Expect(models.SaveSaving.String()).To(Equal("saving"))
			Expect(models.SaveFailed.String()).To(Equal("failed"))
			Expect(models.ContentCommitting.String()).To(Equal("committing"))
			Expect(models.NotifyError.String()).To(Equal("error"))
		})

		It("should read back what it writes in JSON", func() {
			in := struct {
				Save    models.SaveState        `json:"save"`
				Content models.ContentState     `json:"content"`
				Kind    models.NotificationKind `json:"kind"`
			}{models.SavePending, models.ContentEditing, models.NotifyInfo}
			data, err := json.Marshal(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(`{"save":"pending","content":"editing","kind":"info"}`))

			out := in
			out.Save, out.Content, out.Kind = 0, 0, 0
			Expect(json.Unmarshal(data, &out)).To(Succeed())
			Expect(out).To(Equal(in))

			var state models.SaveState
			Expect(state.UnmarshalText([]byte("sleeping"))).To(MatchError(ContainSubstring("unknown save state")))
		})
	})

	Context("BackendError", func() {
		It("should classify unavailable errors", func() {
			err := fmt.Errorf("failed to save: %w", models.Unavailable("reorder_pages", errors.New("dial tcp: refused")))
			Expect(errors.Is(err, models.ErrBackendUnavailable)).To(BeTrue())
			Expect(errors.Is(err, models.ErrOperationFailed)).To(BeFalse())
			Expect(err.Error()).To(ContainSubstring("reorder_pages: backend unavailable"))
		})

		It("should classify operation failures and keep the cause", func() {
			cause := errors.New("bad page")
			err := models.Failed("rotate_pages", cause)
			Expect(errors.Is(err, models.ErrOperationFailed)).To(BeTrue())
			Expect(errors.Is(err, cause)).To(BeTrue())
		})
	})
})
