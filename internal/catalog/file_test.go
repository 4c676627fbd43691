package catalog_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/catalog"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

var _ = Describe("File catalog", func() {
	var (
		ctx   context.Context
		path  string
		store *catalog.FileStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		path = filepath.Join(GinkgoT().TempDir(), "nested", "catalog.json")
		var err error
		store, err = catalog.NewFileStore(path)
		Expect(err).NotTo(HaveOccurred())
	})

	save := func(rec models.DocumentRecord) models.DocumentRecord {
		saved, err := store.Save(ctx, rec)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return saved
	}

	It("should assign ids and defaults on insert", func() {
		rec := save(models.DocumentRecord{FilePath: "/docs/invoice.pdf", PageCount: 3})
		Expect(rec.ID).To(BeEquivalentTo(1))
		Expect(rec.Title).To(Equal("invoice"))
		Expect(rec.FileName).To(Equal("invoice.pdf"))
		Expect(rec.StoragePath).To(Equal(models.DefaultStoragePath))
		Expect(rec.Tags).To(BeEmpty())
		Expect(rec.CreatedAt).NotTo(BeZero())
	})

	It("should upsert on file path", func() {
		first := save(models.DocumentRecord{FilePath: "/docs/a.pdf", PageCount: 3})
		second := save(models.DocumentRecord{FilePath: "/docs/a.pdf", PageCount: 5, Notes: "reordered"})
		Expect(second.ID).To(Equal(first.ID))
		Expect(second.CreatedAt).To(Equal(first.CreatedAt))

		all, err := store.List(ctx, models.DocumentFilter{})
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(1))
		Expect(all[0].PageCount).To(Equal(5))
	})

	It("should survive reopening", func() {
		saved := save(models.DocumentRecord{FilePath: "/docs/a.pdf", Tags: []string{"tax"}})
		reopened, err := catalog.NewFileStore(path)
		Expect(err).NotTo(HaveOccurred())
		got, err := reopened.Get(ctx, saved.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(saved))

		next := save(models.DocumentRecord{FilePath: "/docs/b.pdf"})
		Expect(next.ID).To(BeEquivalentTo(2))
	})

	It("should filter, order and page listings", func() {
		save(models.DocumentRecord{FilePath: "/docs/tax-2023.pdf", DocumentType: "tax"})
		save(models.DocumentRecord{FilePath: "/docs/receipt.pdf", Tags: []string{"Tax"}})
		save(models.DocumentRecord{FilePath: "/docs/letter.pdf", DocumentType: "letter"})

		found, err := store.List(ctx, models.DocumentFilter{Search: "tax"})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
		Expect(found[0].FileName).To(Equal("receipt.pdf"))

		typed, err := store.List(ctx, models.DocumentFilter{DocumentType: "letter"})
		Expect(err).NotTo(HaveOccurred())
		Expect(typed).To(HaveLen(1))

		paged, err := store.List(ctx, models.DocumentFilter{Limit: 1, Offset: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(paged).To(HaveLen(1))
		Expect(paged[0].FileName).To(Equal("receipt.pdf"))

		beyond, err := store.List(ctx, models.DocumentFilter{Offset: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(beyond).To(BeEmpty())
	})

	It("should delete and report stats", func() {
		a := save(models.DocumentRecord{FilePath: "/docs/a.pdf", PageCount: 2, FileSize: 100})
		save(models.DocumentRecord{FilePath: "/docs/b.pdf", PageCount: 3, FileSize: 50})

		st, err := store.Stats(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(st).To(Equal(models.CatalogStats{TotalDocuments: 2, TotalPages: 5, TotalSize: 150}))

		Expect(store.Delete(ctx, a.ID)).To(Succeed())
		Expect(store.Delete(ctx, a.ID)).To(MatchError(catalog.ErrNotFound))
		_, err = store.GetByPath(ctx, "/docs/a.pdf")
		Expect(err).To(MatchError(catalog.ErrNotFound))
	})

	It("should reject records without a path", func() {
		_, err := store.Save(ctx, models.DocumentRecord{Title: "orphan"})
		Expect(err).To(MatchError(catalog.ErrInvalidInput))
	})

	It("should refuse a corrupt catalog file", func() {
		Expect(os.WriteFile(path, []byte("{not json"), 0o644)).To(Succeed())
		_, err := catalog.NewFileStore(path)
		Expect(err).To(HaveOccurred())
	})

	It("should describe files on disk", func() {
		file := filepath.Join(GinkgoT().TempDir(), "scan.pdf")
		Expect(os.WriteFile(file, []byte("%PDF-1.4\n"), 0o644)).To(Succeed())

		rec, err := catalog.RecordFor(file, models.DocumentInfo{PageCount: 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Title).To(Equal("scan"))
		Expect(rec.FileSize).To(BeEquivalentTo(9))
		Expect(rec.PageCount).To(Equal(4))
		Expect(rec.Checksum).To(HaveLen(64))
	})

	It("should open stores by driver name", func() {
		s, err := catalog.Open(catalog.DriverFile, filepath.Join(GinkgoT().TempDir(), "c.json"))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Close()).To(Succeed())

		_, err = catalog.Open(catalog.DriverPostgres, "  ")
		Expect(err).To(MatchError(catalog.ErrInvalidInput))

		_, err = catalog.Open("sqlite", "x")
		Expect(err).To(HaveOccurred())
	})
})
