package engine_test

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/engine"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
	"github.com/kpauljoseph/pagedesk/pkg/utils"
)

var pageColors = []color.RGBA{
	{R: 220, A: 255},
	{G: 200, A: 255},
	{B: 210, A: 255},
	{R: 240, G: 200, A: 255},
	{R: 30, G: 30, B: 30, A: 255},
}

// writeFixture builds a PDF with one solid colour image per page so rendered
// pages can be told apart by hash.
func writeFixture(dir string) string {
	var images []string
	for i, c := range pageColors {
		img := image.NewRGBA(image.Rect(0, 0, 120, 160))
		for y := 0; y < 160; y++ {
			for x := 0; x < 120; x++ {
				img.SetRGBA(x, y, c)
			}
		}
		path := filepath.Join(dir, fmt.Sprintf("page%d.png", i+1))
		f, err := os.Create(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(png.Encode(f, img)).To(Succeed())
		Expect(f.Close()).To(Succeed())
		images = append(images, path)
	}

	out := filepath.Join(dir, "report.pdf")
	Expect(api.ImportImagesFile(images, out, pdfcpu.DefaultImportConfig(), nil)).To(Succeed())
	return out
}

var _ = Describe("Local engine", func() {
	var (
		ctx       context.Context
		local     *engine.Local
		fixture   string
		outputDir string
		original  []string
	)

	pageHashes := func(path string) []string {
		info, err := local.GetDocumentInfo(ctx, path)
		Expect(err).NotTo(HaveOccurred())

		hashes := make([]string, info.PageCount)
		for i := range hashes {
			img, err := local.GetPageImage(ctx, path, i+1, 0.25)
			Expect(err).NotTo(HaveOccurred())
			hashes[i], err = utils.GenerateImageHash(img)
			Expect(err).NotTo(HaveOccurred())
		}
		return hashes
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir := GinkgoT().TempDir()
		outputDir = filepath.Join(dir, "out")
		fixture = writeFixture(dir)

		var err error
		local, err = engine.NewLocal(engine.LocalOptions{
			OutputDir: outputDir,
			Logger:    logger.New(logger.WithOutput(GinkgoWriter)),
		})
		Expect(err).NotTo(HaveOccurred())

		original = pageHashes(fixture)
		Expect(original).To(HaveLen(len(pageColors)))
	})

	It("should read document info with a file name title", func() {
		info, err := local.GetDocumentInfo(ctx, fixture)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.PageCount).To(Equal(5))
		Expect(info.Title).NotTo(BeEmpty())
	})

	It("should render one thumbnail per page at the thumbnail width", func() {
		thumbs, err := local.GetPageThumbnails(ctx, fixture)
		Expect(err).NotTo(HaveOccurred())
		Expect(thumbs).To(HaveLen(5))
		for i, thumb := range thumbs {
			Expect(thumb.Page).To(Equal(i + 1))
			img, err := png.Decode(bytes.NewReader(thumb.Thumbnail))
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Bounds().Dx()).To(BeNumerically("<=", engine.DefaultThumbnailWidth))
		}
	})

	It("should reorder pages into a new file and leave the source alone", func() {
		out, err := local.ReorderPages(ctx, fixture, []int{5, 1, 2, 3, 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Dir(out)).To(Equal(outputDir))
		Expect(filepath.Base(out)).To(MatchRegexp(`^report_reordered_\d+\.pdf$`))

		Expect(pageHashes(out)).To(Equal([]string{original[4], original[0], original[1], original[2], original[3]}))
		Expect(pageHashes(fixture)).To(Equal(original))
	})

	It("should keep derived names from growing across saves", func() {
		first, err := local.ReorderPages(ctx, fixture, []int{2, 1, 3, 4, 5})
		Expect(err).NotTo(HaveOccurred())
		second, err := local.ReorderPages(ctx, first, []int{2, 1, 3, 4, 5})
		Expect(err).NotTo(HaveOccurred())

		Expect(second).NotTo(Equal(first))
		Expect(filepath.Base(second)).To(MatchRegexp(`^report_reordered_\d+\.pdf$`))
		Expect(pageHashes(second)).To(Equal(original))
	})

	It("should refuse an order that is not a permutation", func() {
		_, err := local.ReorderPages(ctx, fixture, []int{1, 1, 2, 3, 4})
		Expect(err).To(MatchError(models.ErrOperationFailed))

		_, err = local.ReorderPages(ctx, fixture, []int{1, 2, 3})
		Expect(err).To(MatchError(models.ErrOperationFailed))
	})

	It("should rotate only the listed pages", func() {
		out, err := local.RotatePages(ctx, fixture, map[int]int{2: 90, 4: 270, 5: 360})
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(out)).To(MatchRegexp(`^report_rotated_\d+\.pdf$`))

		for page := 1; page <= 5; page++ {
			before, err := local.GetPageImage(ctx, fixture, page, 0.25)
			Expect(err).NotTo(HaveOccurred())
			after, err := local.GetPageImage(ctx, out, page, 0.25)
			Expect(err).NotTo(HaveOccurred())

			if page == 2 || page == 4 {
				Expect(after.Bounds().Dx()).To(Equal(before.Bounds().Dy()), "page %d", page)
				Expect(after.Bounds().Dy()).To(Equal(before.Bounds().Dx()), "page %d", page)
			} else {
				Expect(after.Bounds()).To(Equal(before.Bounds()), "page %d", page)
			}
		}
	})

	It("should refuse a rotation map with nothing to rotate", func() {
		_, err := local.RotatePages(ctx, fixture, map[int]int{1: 0, 2: 360})
		Expect(err).To(MatchError(models.ErrOperationFailed))
	})

	It("should delete the selected pages and keep the rest in order", func() {
		out, err := local.DeletePages(ctx, fixture, []int{2, 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(out)).To(MatchRegexp(`^report_pages_removed_\d+\.pdf$`))
		Expect(pageHashes(out)).To(Equal([]string{original[0], original[2], original[3]}))
	})

	It("should refuse to delete every page or pages out of range", func() {
		_, err := local.DeletePages(ctx, fixture, []int{1, 2, 3, 4, 5})
		Expect(err).To(MatchError(ContainSubstring("cannot delete every page")))

		_, err = local.DeletePages(ctx, fixture, []int{6})
		Expect(err).To(MatchError(models.ErrOperationFailed))
	})

	It("should report a missing page image as a failed operation", func() {
		_, err := local.GetPageImage(ctx, fixture, 9, 1)
		Expect(err).To(MatchError(models.ErrOperationFailed))
	})

	It("should report a cancelled call as unavailable", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := local.ReorderPages(cancelled, fixture, []int{1, 2, 3, 4, 5})
		Expect(err).To(MatchError(models.ErrBackendUnavailable))
	})
})
