package scanner_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/catalog"
	"github.com/kpauljoseph/pagedesk/internal/scanner"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

type stubInfo struct{}

func (stubInfo) GetDocumentInfo(ctx context.Context, path string) (models.DocumentInfo, error) {
	if strings.Contains(path, "broken") {
		return models.DocumentInfo{}, models.Failed("get_document_info", errors.New("not a PDF"))
	}
	return models.DocumentInfo{PageCount: 2, Title: "T " + filepath.Base(path)}, nil
}

var _ = Describe("Scanner", func() {
	var (
		testDir    string
		testLogger *logger.Logger
		ctx        context.Context
	)

	BeforeEach(func() {
		var err error
		testDir, err = os.MkdirTemp("", "scanner-test-*")
		Expect(err).NotTo(HaveOccurred())

		testLogger = logger.New(logger.WithOutput(GinkgoWriter), logger.WithPrefix("[test] "))
		ctx = context.Background()
	})

	AfterEach(func() {
		os.RemoveAll(testDir)
	})

	Context("when scanning an empty directory", func() {
		It("should return an error", func() {
			s := scanner.New(testLogger)
			_, err := s.FindPDFs(ctx, testDir)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no PDF files found"))
		})
	})

	Context("when scanning a directory with PDFs", func() {
		BeforeEach(func() {
			for i := 1; i <= 3; i++ {
				err := os.WriteFile(
					filepath.Join(testDir, fmt.Sprintf("test%d.pdf", i)),
					[]byte("dummy pdf content"),
					0644,
				)
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(os.WriteFile(filepath.Join(testDir, "UPPER.PDF"), []byte("dummy"), 0644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(testDir, "test.txt"), []byte("text file"), 0644)).To(Succeed())
		})

		It("should find only PDF files", func() {
			s := scanner.New(testLogger)
			pdfs, err := s.FindPDFs(ctx, testDir)

			Expect(err).NotTo(HaveOccurred())
			Expect(pdfs).To(HaveLen(4))
			for _, pdf := range pdfs {
				Expect(strings.ToLower(pdf)).To(HaveSuffix(".pdf"))
			}
		})

		It("should import every readable PDF into the catalog", func() {
			Expect(os.WriteFile(filepath.Join(testDir, "broken.pdf"), []byte("??"), 0644)).To(Succeed())
			store, err := catalog.NewFileStore(filepath.Join(testDir, "catalog", "catalog.json"))
			Expect(err).NotTo(HaveOccurred())

			stats, err := scanner.New(testLogger).Import(ctx, testDir, stubInfo{}, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(scanner.Stats{PDFCount: 5, Imported: 4, Failed: 1}))

			recs, err := store.List(ctx, models.DocumentFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(4))
			rec, err := store.GetByPath(ctx, filepath.Join(testDir, "test1.pdf"))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Title).To(Equal("T test1.pdf"))
			Expect(rec.PageCount).To(Equal(2))

			again, err := scanner.New(testLogger).Import(ctx, testDir, stubInfo{}, store)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Imported).To(Equal(4))
			recs, err = store.List(ctx, models.DocumentFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(4))
		})
	})

	Context("when scanning nested directories", func() {
		BeforeEach(func() {
			nestedDir := filepath.Join(testDir, "nested")
			err := os.MkdirAll(nestedDir, 0755)
			Expect(err).NotTo(HaveOccurred())

			files := []string{
				filepath.Join(testDir, "root.pdf"),
				filepath.Join(nestedDir, "nested.pdf"),
			}

			for _, file := range files {
				err := os.WriteFile(file, []byte("dummy pdf content"), 0644)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("should find PDFs in all subdirectories", func() {
			s := scanner.New(testLogger)
			pdfs, err := s.FindPDFs(ctx, testDir)

			Expect(err).NotTo(HaveOccurred())
			Expect(pdfs).To(HaveLen(2))

			var filenames []string
			for _, pdf := range pdfs {
				filenames = append(filenames, filepath.Base(pdf))
			}
			Expect(filenames).To(ConsistOf("root.pdf", "nested.pdf"))
		})
	})

	Context("when context is cancelled", func() {
		It("should stop scanning", func() {
			deepDir := filepath.Join(testDir, "deep", "deeper", "deepest")
			err := os.MkdirAll(deepDir, 0755)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			s := scanner.New(testLogger)
			_, err = s.FindPDFs(ctx, testDir)

			Expect(err).To(Equal(context.Canceled))
		})
	})
})
