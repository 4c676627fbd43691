package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kpauljoseph/pagedesk/internal/engine"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

type engineHandler func(req engine.Request, params map[string]interface{}) (int, string)

func newEngineServer(handle engineHandler) (*httptest.Server, *atomic.Int32) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		hits.Add(1)
		Expect(r.Method).To(Equal(http.MethodPost))

		var req engine.Request
		Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
		params, _ := req.Params.(map[string]interface{})
		status, body := handle(req, params)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return srv, &hits
}

func newRemote(url string) *engine.Remote {
	r, err := engine.NewRemote(engine.RemoteOptions{URL: url, RetryDelay: time.Millisecond})
	Expect(err).NotTo(HaveOccurred())
	return r
}

var _ = Describe("Remote engine", func() {
	ctx := context.Background()

	It("should send the action envelope and decode the result", func() {
		srv, _ := newEngineServer(func(req engine.Request, params map[string]interface{}) (int, string) {
			Expect(req.Action).To(Equal(engine.OpReorderPages))
			Expect(req.Version).To(Equal(engine.ProtocolVersion))
			Expect(params["path"]).To(Equal("/docs/a.pdf"))
			Expect(params["new_order"]).To(Equal([]interface{}{5.0, 1.0, 2.0, 3.0, 4.0}))
			return http.StatusOK, `{"error": null, "result": "/out/a_reordered_1.pdf"}`
		})
		defer srv.Close()

		path, err := newRemote(srv.URL).ReorderPages(ctx, "/docs/a.pdf", []int{5, 1, 2, 3, 4})
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/out/a_reordered_1.pdf"))
	})

	It("should decode document info", func() {
		srv, _ := newEngineServer(func(req engine.Request, _ map[string]interface{}) (int, string) {
			return http.StatusOK, `{"error": null, "result": {"page_count": 5, "title": "Report", "author": "Ops", "created_at": "D:20240115093000+07'00'"}}`
		})
		defer srv.Close()

		info, err := newRemote(srv.URL).GetDocumentInfo(ctx, "/docs/a.pdf")
		Expect(err).NotTo(HaveOccurred())
		Expect(info.PageCount).To(Equal(5))
		Expect(info.Title).To(Equal("Report"))
		Expect(info.CreatedAt).To(Equal(time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)))
	})

	It("should decode replace results", func() {
		srv, _ := newEngineServer(func(req engine.Request, params map[string]interface{}) (int, string) {
			Expect(params["old_text"]).To(Equal("a"))
			Expect(params["new_text"]).To(Equal("b"))
			return http.StatusOK, `{"error": null, "result": {"new_path": "/out/a_edited_1.pdf", "replacement_count": 3}}`
		})
		defer srv.Close()

		res, err := newRemote(srv.URL).ReplaceText(ctx, "/docs/a.pdf", "a", "b")
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(models.ReplaceResult{NewPath: "/out/a_edited_1.pdf", ReplacementCount: 3}))
	})

	It("should retry server errors and then succeed", func() {
		var calls atomic.Int32
		srv, _ := newEngineServer(func(engine.Request, map[string]interface{}) (int, string) {
			if calls.Add(1) < 3 {
				return http.StatusServiceUnavailable, "busy"
			}
			return http.StatusOK, `{"error": null, "result": "hello"}`
		})
		defer srv.Close()

		text, err := newRemote(srv.URL).ExtractText(ctx, "/docs/a.pdf", []string{"eng"})
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("hello"))
		Expect(calls.Load()).To(BeEquivalentTo(3))
	})

	It("should report an unavailable engine after exhausting retries", func() {
		srv, hits := newEngineServer(func(engine.Request, map[string]interface{}) (int, string) {
			return http.StatusBadGateway, ""
		})
		defer srv.Close()

		_, err := newRemote(srv.URL).ExtractText(ctx, "/docs/a.pdf", nil)
		Expect(err).To(MatchError(models.ErrBackendUnavailable))
		Expect(hits.Load()).To(BeEquivalentTo(engine.MaxRetries))
	})

	It("should classify refused connections as unavailable", func() {
		srv, _ := newEngineServer(nil)
		url := srv.URL
		srv.Close()

		_, err := newRemote(url).DeletePages(ctx, "/docs/a.pdf", []int{2})
		Expect(err).To(MatchError(models.ErrBackendUnavailable))
	})

	It("should not retry an error reported by the engine", func() {
		srv, hits := newEngineServer(func(engine.Request, map[string]interface{}) (int, string) {
			return http.StatusOK, `{"error": "page 9 out of range", "result": null}`
		})
		defer srv.Close()

		_, err := newRemote(srv.URL).RotatePages(ctx, "/docs/a.pdf", map[int]int{9: 90})
		Expect(err).To(MatchError(models.ErrOperationFailed))
		Expect(err.Error()).To(ContainSubstring("page 9 out of range"))
		Expect(hits.Load()).To(BeEquivalentTo(1))
	})

	DescribeTable("should reject malformed responses",
		func(body string) {
			srv, _ := newEngineServer(func(engine.Request, map[string]interface{}) (int, string) {
				return http.StatusOK, body
			})
			defer srv.Close()

			_, err := newRemote(srv.URL).ReplaceText(ctx, "/docs/a.pdf", "a", "b")
			Expect(err).To(MatchError(models.ErrOperationFailed))
		},
		Entry("missing envelope fields", `{"result": {"new_path": "/x.pdf", "replacement_count": 1}}`),
		Entry("wrong result shape", `{"error": null, "result": {"new_path": "", "replacement_count": 1}}`),
		Entry("negative count", `{"error": null, "result": {"new_path": "/x.pdf", "replacement_count": -1}}`),
		Entry("not json", `<html>`),
	)

	It("should stop retrying when the context ends", func() {
		srv, _ := newEngineServer(func(engine.Request, map[string]interface{}) (int, string) {
			return http.StatusServiceUnavailable, ""
		})
		defer srv.Close()

		r, err := engine.NewRemote(engine.RemoteOptions{URL: srv.URL, RetryDelay: time.Hour})
		Expect(err).NotTo(HaveOccurred())
		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = r.ExtractText(short, "/docs/a.pdf", nil)
		Expect(err).To(MatchError(models.ErrBackendUnavailable))
	})
})
