package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kpauljoseph/pagedesk/internal/catalog"
	"github.com/kpauljoseph/pagedesk/pkg/logger"
	"github.com/kpauljoseph/pagedesk/pkg/models"
)

type Stats struct {
	PDFCount int
	Imported int
	Failed   int
}

type InfoReader interface {
	GetDocumentInfo(ctx context.Context, path string) (models.DocumentInfo, error)
}

type DirectoryScanner struct {
	logger *logger.Logger
}

func New(log *logger.Logger) *DirectoryScanner {
	if log == nil {
		log = logger.Discard()
	}
	return &DirectoryScanner{logger: log}
}

// FindPDFs walks dir and returns every file with a .pdf extension, in walk
// order.
func (s *DirectoryScanner) FindPDFs(ctx context.Context, dir string) ([]string, error) {
	var pdfs []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			s.logger.Debug("Scanning directory: %s", path)
			return nil
		}

		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		pdfs = append(pdfs, path)
		return nil
	})

	if err != nil {
		return nil, err
	}

	if len(pdfs) == 0 {
		return nil, fmt.Errorf("no PDF files found in %s or its subdirectories", dir)
	}

	return pdfs, nil
}

// Import records every PDF under dir in store. A file whose info cannot be
// read is counted as failed and skipped.
func (s *DirectoryScanner) Import(ctx context.Context, dir string, info InfoReader, store catalog.Store) (Stats, error) {
	var stats Stats

	pdfs, err := s.FindPDFs(ctx, dir)
	if err != nil {
		return stats, err
	}
	stats.PDFCount = len(pdfs)

	for i, path := range pdfs {
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			relPath = path
		}
		s.logger.Info("Importing PDF (%d/%d): %s", i+1, len(pdfs), relPath)

		doc, err := info.GetDocumentInfo(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return stats, err
			}
			s.logger.Warn("Error reading %s: %v", relPath, err)
			stats.Failed++
			continue
		}

		rec, err := catalog.RecordFor(path, doc)
		if err == nil {
			_, err = store.Save(ctx, rec)
		}
		if err != nil {
			s.logger.Warn("Error importing %s: %v", relPath, err)
			stats.Failed++
			continue
		}
		stats.Imported++
	}

	return stats, nil
}
