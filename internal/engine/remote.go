package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const (
	DefaultRemoteURL = "http://localhost:8765"
	ProtocolVersion  = 1
	MaxRetries       = 3
	RetryDelay       = 500 * time.Millisecond
)

type RemoteOptions struct {
	URL        string
	Client     *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Logger     *logger.Logger
}

// Remote talks to a document engine over a JSON action protocol: every call
// is a POST of {action, version, params} answered by {error, result}.
type Remote struct {
	url        string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *logger.Logger
	schemas    *schemaSet
}

type Request struct {
	Action  string      `json:"action"`
	Version int         `json:"version"`
	Params  interface{} `json:"params"`
}

type response struct {
	Error  *string         `json:"error"`
	Result json.RawMessage `json:"result"`
}

type remoteDocumentInfo struct {
	PageCount int    `json:"page_count"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	CreatedAt string `json:"created_at"`
}

func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.URL == "" {
		opts.URL = DefaultRemoteURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = MaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = RetryDelay
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schemas: %w", err)
	}
	return &Remote{
		url:        opts.URL,
		client:     opts.Client,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
		schemas:    schemas,
	}, nil
}

func (r *Remote) GetDocumentInfo(ctx context.Context, path string) (models.DocumentInfo, error) {
	var raw remoteDocumentInfo
	if err := r.call(ctx, OpDocumentInfo, map[string]interface{}{"path": path}, &raw); err != nil {
		return models.DocumentInfo{}, err
	}
	info := models.DocumentInfo{
		PageCount: raw.PageCount,
		Title:     raw.Title,
		Author:    raw.Author,
	}
	if t, err := time.Parse(time.RFC3339, raw.CreatedAt); err == nil {
		info.CreatedAt = t
	} else if t, ok := models.ParsePDFDate(raw.CreatedAt); ok {
		info.CreatedAt = t
	}
	return info, nil
}

func (r *Remote) GetPageThumbnails(ctx context.Context, path string) ([]models.PageThumbnail, error) {
	var raw []struct {
		Page      int    `json:"page"`
		Thumbnail string `json:"thumbnail"`
	}
	if err := r.call(ctx, OpPageThumbnails, map[string]interface{}{"path": path}, &raw); err != nil {
		return nil, err
	}
	thumbs := make([]models.PageThumbnail, 0, len(raw))
	for _, t := range raw {
		data, err := base64.StdEncoding.DecodeString(t.Thumbnail)
		if err != nil {
			r.logger.Debug("dropping undecodable thumbnail of page %d: %v", t.Page, err)
			continue
		}
		thumbs = append(thumbs, models.PageThumbnail{Page: t.Page, Thumbnail: data})
	}
	return thumbs, nil
}

func (r *Remote) GetPageImage(ctx context.Context, path string, page int, scale float64) (image.Image, error) {
	var encoded string
	params := map[string]interface{}{"path": path, "page": page, "scale": scale}
	if err := r.call(ctx, OpPageImage, params, &encoded); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, models.Failed(OpPageImage, fmt.Errorf("failed to decode image: %w", err))
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.Failed(OpPageImage, fmt.Errorf("failed to decode image: %w", err))
	}
	return img, nil
}

func (r *Remote) ReorderPages(ctx context.Context, path string, order []int) (string, error) {
	var newPath string
	params := map[string]interface{}{"path": path, "new_order": order}
	if err := r.call(ctx, OpReorderPages, params, &newPath); err != nil {
		return "", err
	}
	return newPath, nil
}

func (r *Remote) RotatePages(ctx context.Context, path string, rotations map[int]int) (string, error) {
	byPage := make(map[string]int, len(rotations))
	for p, deg := range rotations {
		byPage[strconv.Itoa(p)] = models.NormalizeRotation(deg)
	}

	var newPath string
	params := map[string]interface{}{"path": path, "rotations": byPage}
	if err := r.call(ctx, OpRotatePages, params, &newPath); err != nil {
		return "", err
	}
	return newPath, nil
}

func (r *Remote) DeletePages(ctx context.Context, path string, pages []int) (string, error) {
	var newPath string
	params := map[string]interface{}{"path": path, "pages": pages}
	if err := r.call(ctx, OpDeletePages, params, &newPath); err != nil {
		return "", err
	}
	return newPath, nil
}

func (r *Remote) ExtractText(ctx context.Context, path string, languages []string) (string, error) {
	var text string
	params := map[string]interface{}{"path": path, "languages": languages}
	if err := r.call(ctx, OpExtractText, params, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (r *Remote) ReplaceText(ctx context.Context, path, oldText, newText string) (models.ReplaceResult, error) {
	var result models.ReplaceResult
	params := map[string]interface{}{"path": path, "old_text": oldText, "new_text": newText}
	if err := r.call(ctx, OpReplaceText, params, &result); err != nil {
		return models.ReplaceResult{}, err
	}
	return result, nil
}

// CheckConnection asks the engine for the info of an empty path and only
// cares whether an answer came back.
func (r *Remote) CheckConnection(ctx context.Context) error {
	_, err := r.sendRequest(ctx, Request{Action: OpDocumentInfo, Version: ProtocolVersion, Params: map[string]interface{}{"path": ""}})
	if errors.Is(err, models.ErrBackendUnavailable) {
		return fmt.Errorf("could not connect to the document engine at %s: %w", r.url, err)
	}
	return nil
}

func (r *Remote) call(ctx context.Context, action string, params interface{}, out interface{}) error {
	result, err := r.sendRequest(ctx, Request{Action: action, Version: ProtocolVersion, Params: params})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return models.Failed(action, fmt.Errorf("failed to parse result: %w", err))
	}
	return nil
}

// sendRequest retries transport failures and 5xx answers. An error reported
// by the engine itself is final.
func (r *Remote) sendRequest(ctx context.Context, req Request) (json.RawMessage, error) {
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, models.Failed(req.Action, fmt.Errorf("failed to marshal request: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			r.logger.Info("Retrying %s (attempt %d/%d)...", req.Action, attempt+1, r.maxRetries)
			select {
			case <-ctx.Done():
				return nil, models.Unavailable(req.Action, ctx.Err())
			case <-time.After(r.retryDelay):
			}
		}

		result, retry, err := r.attempt(ctx, req.Action, reqBody)
		if err == nil {
			return result, nil
		}
		if !retry {
			return nil, err
		}
		r.logger.Debug("%s attempt %d failed: %v", req.Action, attempt+1, err)
		lastErr = err
	}

	return nil, models.Unavailable(req.Action, fmt.Errorf("after %d attempts: %w", r.maxRetries, errors.Unwrap(lastErr)))
}

func (r *Remote) attempt(ctx context.Context, action string, body []byte) (json.RawMessage, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, false, models.Failed(action, fmt.Errorf("failed to build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, models.Unavailable(action, ctx.Err())
		}
		return nil, true, models.Unavailable(action, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, models.Unavailable(action, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode >= 500 {
		return nil, true, models.Unavailable(action, fmt.Errorf("engine answered %s", resp.Status))
	}
	if resp.StatusCode >= 400 {
		return nil, false, models.Failed(action, fmt.Errorf("engine answered %s", resp.Status))
	}

	if err := r.validate(r.schemas.envelope, data); err != nil {
		return nil, false, models.Failed(action, fmt.Errorf("malformed response: %w", err))
	}
	var envelope response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, models.Failed(action, fmt.Errorf("failed to parse response: %w", err))
	}
	if envelope.Error != nil {
		return nil, false, models.Failed(action, fmt.Errorf("engine error: %s", *envelope.Error))
	}
	if schema, ok := r.schemas.results[action]; ok {
		if err := r.validate(schema, envelope.Result); err != nil {
			return nil, false, models.Failed(action, fmt.Errorf("malformed result: %w", err))
		}
	}
	return envelope.Result, false, nil
}

func (r *Remote) validate(schema *jsonschema.Schema, data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return schema.Validate(inst)
}
