package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/kpauljoseph/pagedesk/internal/content"
	"github.com/kpauljoseph/pagedesk/internal/engine"
	"github.com/kpauljoseph/pagedesk/internal/session"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	DefaultImageScale   = 1.0
	MaxImageScale       = 4.0

	eventWriteTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Session is the part of *session.Session the HTTP host drives.
type Session interface {
	State() (session.Snapshot, error)
	Subscribe() (<-chan struct{}, func())

	DragStart(page int) error
	DragOver(page int) error
	DragLeave() error
	Drop(page int) (bool, error)
	DragCancel() error
	MovePage(page, target int) (bool, error)

	OnRotateRequested(page, delta int) error
	ToggleSelection(page int) (bool, error)
	Save() (bool, error)
	ExportRotations() error
	DeleteSelected() error

	OnExtractRequested() (bool, error)
	OnEditStart() error
	UpdateDraft(text string) error
	OnEditCancel() error
	OnEditCommit(newText string) error
	ClearContent() error

	PageImages(ctx context.Context, numbers []int, scale float64) ([]session.PageImage, error)
}

type Config struct {
	MaxBodyBytes int64
	// OriginPatterns lists extra hosts allowed to open the event stream.
	OriginPatterns []string
	Logger         *logger.Logger
}

type Server struct {
	session Session
	cfg     Config
	logger  *logger.Logger
	mux     *http.ServeMux
}

func New(sess Session, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	s := &Server{
		session: sess,
		cfg:     cfg,
		logger:  cfg.Logger.Named("http"),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("GET /api/session", s.handleState)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)

	s.mux.HandleFunc("POST /api/drag/start", s.pageAction(s.session.DragStart))
	s.mux.HandleFunc("POST /api/drag/over", s.pageAction(s.session.DragOver))
	s.mux.HandleFunc("POST /api/drag/leave", s.action(s.session.DragLeave))
	s.mux.HandleFunc("POST /api/drag/drop", s.pageAction(func(page int) error {
		_, err := s.session.Drop(page)
		return err
	}))
	s.mux.HandleFunc("POST /api/drag/cancel", s.action(s.session.DragCancel))

	s.mux.HandleFunc("POST /api/pages/{n}/move", s.handleMove)
	s.mux.HandleFunc("POST /api/pages/{n}/rotate", s.handleRotate)
	s.mux.HandleFunc("POST /api/pages/{n}/select", s.handleSelect)
	s.mux.HandleFunc("GET /api/pages/{n}/image", s.handleImage)
	s.mux.HandleFunc("POST /api/pages/delete", s.action(s.session.DeleteSelected))
	s.mux.HandleFunc("POST /api/rotations/export", s.action(s.session.ExportRotations))
	s.mux.HandleFunc("POST /api/save", s.action(func() error {
		started, err := s.session.Save()
		if err == nil && !started {
			return session.ErrNothingToSave
		}
		return err
	}))

	s.mux.HandleFunc("POST /api/content/extract", s.action(func() error {
		_, err := s.session.OnExtractRequested()
		return err
	}))
	s.mux.HandleFunc("POST /api/content/edit", s.action(s.session.OnEditStart))
	s.mux.HandleFunc("POST /api/content/cancel", s.action(s.session.OnEditCancel))
	s.mux.HandleFunc("POST /api/content/commit", s.textAction(s.session.OnEditCommit))
	s.mux.HandleFunc("PUT /api/content/draft", s.textAction(s.session.UpdateDraft))
	s.mux.HandleFunc("DELETE /api/content", s.action(s.session.ClearContent))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Trace("%s %s", r.Method, r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Listening on http://%s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respond(w, nil)
}

type pageRequest struct {
	Page int `json:"page"`
}

type moveRequest struct {
	Target int `json:"target"`
}

type rotateRequest struct {
	Delta int `json:"delta"`
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) action(f func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, f())
	}
}

func (s *Server) pageAction(f func(page int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pageRequest
		if !s.decodeJSONBody(w, r, &req) {
			return
		}
		s.respond(w, f(req.Page))
	}
}

func (s *Server) textAction(f func(text string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if !s.decodeJSONBody(w, r, &req) {
			return
		}
		s.respond(w, f(req.Text))
	}
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	var req moveRequest
	if !s.decodeJSONBody(w, r, &req) {
		return
	}
	moved, err := s.session.MovePage(page, req.Target)
	if err == nil && !moved {
		err = models.ErrInvalidSelection
	}
	s.respond(w, err)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	req := rotateRequest{Delta: 90}
	if r.ContentLength != 0 && !s.decodeJSONBody(w, r, &req) {
		return
	}
	if req.Delta%90 != 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "delta must be a multiple of 90")
		return
	}
	s.respond(w, s.session.OnRotateRequested(page, req.Delta))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	_, err := s.session.ToggleSelection(page)
	s.respond(w, err)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	page, ok := pathPage(w, r)
	if !ok {
		return
	}
	scale := parseBoundedFloat(r.URL.Query().Get("scale"), DefaultImageScale, 0.1, MaxImageScale)

	images, err := s.session.PageImages(r.Context(), []int{page}, scale)
	if err == nil && len(images) == 1 {
		err = images[0].Err
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	data, err := engine.EncodePNG(images[0].Image)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleEvents streams a JSON snapshot of the session on connect and after
// every change until the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.cfg.OriginPatterns})
	if err != nil {
		s.logger.Warn("failed to accept event stream: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())
	changes, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	send := func() error {
		snap, err := s.session.State()
		if err != nil {
			return err
		}
		writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
		defer cancel()
		return wsjson.Write(writeCtx, conn, snap)
	}

	for {
		if err := send(); err != nil {
			if errors.Is(err, session.ErrClosed) {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			s.logger.Debug("event stream ended: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-changes:
		}
	}
}

func (s *Server) respond(w http.ResponseWriter, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	snap, err := s.session.State()
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidSelection):
		return http.StatusUnprocessableEntity, "invalid_selection"
	case errors.Is(err, models.ErrStaleReference):
		return http.StatusConflict, "stale_reference"
	case errors.Is(err, session.ErrBusy), errors.Is(err, content.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, content.ErrNotEditing), errors.Is(err, content.ErrNoContent):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, session.ErrNothingToSave):
		return http.StatusConflict, "nothing_to_save"
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable, "session_closed"
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusBadGateway, "backend_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "operation_failed"
}

func pathPage(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", "page must be a positive integer")
		return 0, false
	}
	return n, true
}

func (s *Server) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}

func parseBoundedFloat(raw string, fallback, min, max float64) float64 {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	if parsed < min {
		return min
	}
	if parsed > max {
		return max
	}
	return parsed
}
