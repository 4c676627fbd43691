package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/image/draw"

	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
	"github.com/kpauljoseph/pagedesk/pkg/utils"
)

const (
	DefaultThumbnailWidth = 160
	BaseDPI               = 72.0
	OCRDPI                = 200.0
)

type LocalOptions struct {
	// OutputDir receives derived files. Empty keeps them next to the input.
	OutputDir      string
	ThumbnailWidth int
	// OCR enables tesseract for pages without a text layer.
	OCR    bool
	Logger *logger.Logger
	Now    func() time.Time
}

// Local processes documents in-process: pdfcpu rewrites page trees and
// content streams, MuPDF renders pages and reads the text layer.
type Local struct {
	outputDir      string
	thumbnailWidth int
	ocr            bool
	logger         *logger.Logger
	now            func() time.Time
	conf           *model.Configuration

	// derived paths handed out and not yet written
	mu       sync.Mutex
	reserved map[string]bool
}

func NewLocal(opts LocalOptions) (*Local, error) {
	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = DefaultThumbnailWidth
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Local{
		outputDir:      opts.OutputDir,
		thumbnailWidth: opts.ThumbnailWidth,
		ocr:            opts.OCR,
		logger:         opts.Logger,
		now:            opts.Now,
		conf:           conf,
		reserved:       map[string]bool{},
	}, nil
}

func (l *Local) GetDocumentInfo(ctx context.Context, path string) (models.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.DocumentInfo{}, models.Unavailable(OpDocumentInfo, err)
	}
	count, err := api.PageCountFile(path)
	if err != nil {
		return models.DocumentInfo{}, models.Failed(OpDocumentInfo, fmt.Errorf("failed to count pages: %w", err))
	}

	doc, err := fitz.New(path)
	if err != nil {
		return models.DocumentInfo{}, models.Failed(OpDocumentInfo, fmt.Errorf("failed to open PDF: %w", err))
	}
	defer doc.Close()

	meta := doc.Metadata()
	info := models.DocumentInfo{
		PageCount: count,
		Title:     utils.DisplayTitle(meta["title"], path),
		Author:    meta["author"],
	}
	if created, ok := models.ParsePDFDate(meta["creationDate"]); ok {
		info.CreatedAt = created
	}
	return info, nil
}

// GetPageThumbnails renders every page scaled to the thumbnail width. A page
// that fails to render is left out rather than failing the whole call.
func (l *Local) GetPageThumbnails(ctx context.Context, path string) ([]models.PageThumbnail, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, models.Failed(OpPageThumbnails, fmt.Errorf("failed to open PDF: %w", err))
	}
	defer doc.Close()

	var thumbs []models.PageThumbnail
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return nil, models.Unavailable(OpPageThumbnails, ctx.Err())
		default:
		}

		img, err := doc.ImageDPI(pageNum, BaseDPI)
		if err != nil {
			l.logger.Debug("skipping thumbnail of page %d: %v", pageNum+1, err)
			continue
		}
		data, err := EncodePNG(scaleToWidth(img, l.thumbnailWidth))
		if err != nil {
			l.logger.Debug("skipping thumbnail of page %d: %v", pageNum+1, err)
			continue
		}
		thumbs = append(thumbs, models.PageThumbnail{Page: pageNum + 1, Thumbnail: data})
	}
	return thumbs, nil
}

func (l *Local) GetPageImage(ctx context.Context, path string, page int, scale float64) (image.Image, error) {
	if scale <= 0 {
		scale = 1
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, models.Failed(OpPageImage, fmt.Errorf("failed to open PDF: %w", err))
	}
	defer doc.Close()

	if page < 1 || page > doc.NumPage() {
		return nil, models.Failed(OpPageImage, fmt.Errorf("page %d out of range 1..%d", page, doc.NumPage()))
	}
	if err := ctx.Err(); err != nil {
		return nil, models.Unavailable(OpPageImage, err)
	}
	img, err := doc.ImageDPI(page-1, BaseDPI*scale)
	if err != nil {
		return nil, models.Failed(OpPageImage, fmt.Errorf("failed to render page %d: %w", page, err))
	}
	return img, nil
}

func (l *Local) ReorderPages(ctx context.Context, path string, order []int) (string, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return "", models.Failed(OpReorderPages, fmt.Errorf("failed to count pages: %w", err))
	}
	if len(order) != count || !validOrder(order) {
		return "", models.Failed(OpReorderPages, fmt.Errorf("order %v is not a permutation of %d pages", order, count))
	}
	if err := ctx.Err(); err != nil {
		return "", models.Unavailable(OpReorderPages, err)
	}

	out := l.reserve(path, utils.SuffixReordered)
	defer l.release(out)
	if err := api.CollectFile(path, out, pageSelection(order), l.conf); err != nil {
		os.Remove(out)
		return "", models.Failed(OpReorderPages, fmt.Errorf("failed to reorder pages: %w", err))
	}
	l.logger.Debug("reordered %s as %v into %s", path, order, out)
	return out, nil
}

// RotatePages applies the rotation of each listed page. pdfcpu rotates one
// angle per pass, so pages are grouped by angle and the passes are chained
// through temporary files.
func (l *Local) RotatePages(ctx context.Context, path string, rotations map[int]int) (string, error) {
	byAngle := map[int][]int{}
	for page, deg := range rotations {
		deg = models.NormalizeRotation(deg)
		if deg == 0 {
			continue
		}
		byAngle[deg] = append(byAngle[deg], page)
	}
	if len(byAngle) == 0 {
		return "", models.Failed(OpRotatePages, errors.New("no pages to rotate"))
	}
	angles := make([]int, 0, len(byAngle))
	for deg := range byAngle {
		angles = append(angles, deg)
	}
	sort.Ints(angles)

	out := l.reserve(path, utils.SuffixRotated)
	defer l.release(out)

	current := path
	var temps []string
	defer func() {
		for _, t := range temps {
			os.Remove(t)
		}
	}()
	for i, deg := range angles {
		if err := ctx.Err(); err != nil {
			return "", models.Unavailable(OpRotatePages, err)
		}
		next := out
		if i < len(angles)-1 {
			tmp, err := os.CreateTemp("", "pagedesk-rotate-*.pdf")
			if err != nil {
				return "", models.Failed(OpRotatePages, fmt.Errorf("failed to create temp file: %w", err))
			}
			tmp.Close()
			next = tmp.Name()
			temps = append(temps, next)
		}
		pages := byAngle[deg]
		sort.Ints(pages)
		if err := api.RotateFile(current, next, deg, pageSelection(pages), l.conf); err != nil {
			os.Remove(out)
			return "", models.Failed(OpRotatePages, fmt.Errorf("failed to rotate pages %v by %d: %w", pages, deg, err))
		}
		current = next
	}
	l.logger.Debug("rotated %s into %s", path, out)
	return out, nil
}

func (l *Local) DeletePages(ctx context.Context, path string, pages []int) (string, error) {
	if len(pages) == 0 {
		return "", models.Failed(OpDeletePages, errors.New("no pages selected"))
	}
	count, err := api.PageCountFile(path)
	if err != nil {
		return "", models.Failed(OpDeletePages, fmt.Errorf("failed to count pages: %w", err))
	}
	unique := map[int]bool{}
	for _, p := range pages {
		if p < 1 || p > count {
			return "", models.Failed(OpDeletePages, fmt.Errorf("page %d out of range 1..%d", p, count))
		}
		unique[p] = true
	}
	if len(unique) >= count {
		return "", models.Failed(OpDeletePages, errors.New("cannot delete every page"))
	}
	if err := ctx.Err(); err != nil {
		return "", models.Unavailable(OpDeletePages, err)
	}

	out := l.reserve(path, utils.SuffixPagesRemoved)
	defer l.release(out)
	if err := api.RemovePagesFile(path, out, pageSelection(pages), l.conf); err != nil {
		os.Remove(out)
		return "", models.Failed(OpDeletePages, fmt.Errorf("failed to delete pages: %w", err))
	}
	return out, nil
}

// ExtractText returns the text layer of every page, pages separated by a
// blank line. Pages without a text layer go through OCR when enabled.
func (l *Local) ExtractText(ctx context.Context, path string, languages []string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", models.Failed(OpExtractText, fmt.Errorf("failed to open PDF: %w", err))
	}
	defer doc.Close()

	var ocr *gosseract.Client
	defer func() {
		if ocr != nil {
			ocr.Close()
		}
	}()

	var pages []string
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return "", models.Unavailable(OpExtractText, ctx.Err())
		default:
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			l.logger.Warn("couldn't extract text from page %d: %v", pageNum+1, err)
		}
		if strings.TrimSpace(text) == "" && l.ocr {
			if ocr == nil {
				ocr = gosseract.NewClient()
				if err := ocr.SetLanguage(languages...); err != nil {
					return "", models.Failed(OpExtractText, fmt.Errorf("failed to set OCR languages: %w", err))
				}
			}
			text, err = l.recognize(ocr, doc, pageNum)
			if err != nil {
				l.logger.Warn("OCR of page %d failed: %v", pageNum+1, err)
			}
		}
		if cleaned := cleanText(text); cleaned != "" {
			pages = append(pages, cleaned)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (l *Local) recognize(client *gosseract.Client, doc *fitz.Document, pageNum int) (string, error) {
	data, err := doc.ImagePNG(pageNum, OCRDPI)
	if err != nil {
		return "", fmt.Errorf("failed to render page: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to load page image: %w", err)
	}
	return client.Text()
}

func (l *Local) ReplaceText(ctx context.Context, path, oldText, newText string) (models.ReplaceResult, error) {
	replacements := DiffReplacements(oldText, newText)

	out := l.reserve(path, utils.SuffixEdited)
	defer l.release(out)

	count, err := rewriteContent(ctx, path, out, replacements, l.conf)
	if err != nil {
		os.Remove(out)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.ReplaceResult{}, models.Unavailable(OpReplaceText, err)
		}
		return models.ReplaceResult{}, models.Failed(OpReplaceText, err)
	}
	l.logger.Debug("replaced %d fragments (%d occurrences) in %s", len(replacements), count, out)
	return models.ReplaceResult{NewPath: out, ReplacementCount: count}, nil
}

// reserve picks a derived output path no other call is writing to.
func (l *Local) reserve(src, op string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for {
		out := utils.DerivedPath(src, l.outputDir, op, now)
		if _, err := os.Stat(out); !l.reserved[out] && errors.Is(err, os.ErrNotExist) {
			l.reserved[out] = true
			return out
		}
		now = now.Add(time.Millisecond)
	}
}

func (l *Local) release(out string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.reserved, out)
}

func pageSelection(pages []int) []string {
	sel := make([]string, len(pages))
	for i, p := range pages {
		sel[i] = strconv.Itoa(p)
	}
	return sel
}

func cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func scaleToWidth(src image.Image, width int) image.Image {
	b := src.Bounds()
	if b.Dx() <= width || b.Dx() == 0 {
		return src
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
