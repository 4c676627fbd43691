package engine

import (
	"context"
	"image"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

// Backend is a document-processing service. Every operation that changes a
// document writes a new file and returns its path; the input file is never
// modified. Page arguments are 1-based positions in the file at path.
type Backend interface {
	GetDocumentInfo(ctx context.Context, path string) (models.DocumentInfo, error)
	GetPageThumbnails(ctx context.Context, path string) ([]models.PageThumbnail, error)
	GetPageImage(ctx context.Context, path string, page int, scale float64) (image.Image, error)
	ReorderPages(ctx context.Context, path string, order []int) (string, error)
	RotatePages(ctx context.Context, path string, rotations map[int]int) (string, error)
	DeletePages(ctx context.Context, path string, pages []int) (string, error)
	ExtractText(ctx context.Context, path string, languages []string) (string, error)
	ReplaceText(ctx context.Context, path, oldText, newText string) (models.ReplaceResult, error)
}

const (
	OpDocumentInfo   = "get_document_info"
	OpPageThumbnails = "get_page_thumbnails"
	OpPageImage      = "get_page_image"
	OpReorderPages   = "reorder_pages"
	OpRotatePages    = "rotate_pages"
	OpDeletePages    = "delete_pages"
	OpExtractText    = "extract_text"
	OpReplaceText    = "replace_text"
)

// validOrder reports whether order is a permutation of 1..len(order).
func validOrder(order []int) bool {
	seen := make([]bool, len(order)+1)
	for _, p := range order {
		if p < 1 || p > len(order) || seen[p] {
			return false
		}
		seen[p] = true
	}
	return true
}
