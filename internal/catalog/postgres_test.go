package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

var _ = Describe("Postgres catalog", func() {
	It("should build list queries with numbered placeholders", func() {
		query, args := listQuery("docs", models.DocumentFilter{Search: "50%_off", DocumentType: "invoice", Limit: 10, Offset: 20})
		Expect(query).To(ContainSubstring(`FROM "docs" WHERE 1=1`))
		Expect(query).To(ContainSubstring("title ILIKE $1 OR file_name ILIKE $1"))
		Expect(query).To(ContainSubstring("document_type = $2"))
		Expect(query).To(HaveSuffix("ORDER BY updated_at DESC, id DESC LIMIT $3 OFFSET $4"))
		Expect(args).To(Equal([]interface{}{`%50\%\_off%`, "invoice", 10, 20}))
	})

	It("should leave out clauses for an empty filter", func() {
		query, args := listQuery("docs", models.DocumentFilter{})
		Expect(query).NotTo(ContainSubstring("ILIKE"))
		Expect(query).NotTo(ContainSubstring("LIMIT"))
		Expect(args).To(BeEmpty())
	})

	It("should surface connection setup failures on every call", func() {
		store, err := NewPostgresStore("postgres://unused")
		Expect(err).NotTo(HaveOccurred())
		opens := 0
		store.openDB = func(string, string) (*sql.DB, error) {
			opens++
			return nil, errors.New("dial refused")
		}

		_, err = store.Save(context.Background(), models.DocumentRecord{FilePath: "/a.pdf"})
		Expect(err).To(MatchError(ContainSubstring("dial refused")))
		_, err = store.List(context.Background(), models.DocumentFilter{})
		Expect(err).To(MatchError(ContainSubstring("dial refused")))
		Expect(opens).To(Equal(1))
		Expect(store.Close()).To(Succeed())
	})

	Context("against a live database", func() {
		var store *PostgresStore

		BeforeEach(func() {
			dsn := os.Getenv("PAGEDESK_TEST_POSTGRES_DSN")
			if dsn == "" {
				Skip("PAGEDESK_TEST_POSTGRES_DSN not set")
			}
			var err error
			store, err = NewPostgresStore(dsn)
			Expect(err).NotTo(HaveOccurred())
			store.tableName = fmt.Sprintf("pagedesk_documents_test_%d", time.Now().UnixNano())
			DeferCleanup(func() {
				if store.db != nil {
					store.db.Exec("DROP TABLE IF EXISTS " + store.tableName)
				}
				store.Close()
			})
		})

		It("should upsert, list and delete", func() {
			ctx := context.Background()
			a, err := store.Save(ctx, models.DocumentRecord{FilePath: "/docs/a.pdf", PageCount: 2, Tags: []string{"tax"}})
			Expect(err).NotTo(HaveOccurred())
			again, err := store.Save(ctx, models.DocumentRecord{FilePath: "/docs/a.pdf", PageCount: 4, Tags: []string{"tax"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(again.ID).To(Equal(a.ID))

			found, err := store.List(ctx, models.DocumentFilter{Search: "TAX"})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].PageCount).To(Equal(4))
			Expect(found[0].Tags).To(Equal([]string{"tax"}))

			st, err := store.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.TotalPages).To(Equal(4))

			Expect(store.Delete(ctx, a.ID)).To(Succeed())
			_, err = store.Get(ctx, a.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})
	})
})
