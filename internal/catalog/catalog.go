package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kpauljoseph/pagedesk/pkg/models"
	"github.com/kpauljoseph/pagedesk/pkg/utils"
)

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store keeps one record per document file. Save upserts on FilePath.
type Store interface {
	Save(ctx context.Context, rec models.DocumentRecord) (models.DocumentRecord, error)
	Get(ctx context.Context, id int64) (models.DocumentRecord, error)
	GetByPath(ctx context.Context, path string) (models.DocumentRecord, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentRecord, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (models.CatalogStats, error)
	Close() error
}

// Open returns the store for driver. target is a file path for the file
// driver and a DSN for postgres.
func Open(driver, target string) (Store, error) {
	switch driver {
	case "", DriverFile:
		return NewFileStore(target)
	case DriverPostgres:
		return NewPostgresStore(target)
	}
	return nil, fmt.Errorf("unknown catalog driver %q", driver)
}

// DefaultPath is $XDG_DATA_HOME/pagedesk/catalog.json, falling back to
// ~/.local/share.
func DefaultPath() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "pagedesk", "catalog.json"), nil
}

// RecordFor describes the file at path. Fields the file cannot tell, such as
// tags or notes, are left empty.
func RecordFor(path string, info models.DocumentInfo) (models.DocumentRecord, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	checksum, err := utils.FileChecksum(abs)
	if err != nil {
		return models.DocumentRecord{}, err
	}

	rec := models.DocumentRecord{
		Title:       utils.DisplayTitle(info.Title, abs),
		FilePath:    abs,
		FileName:    filepath.Base(abs),
		FileSize:    st.Size(),
		PageCount:   info.PageCount,
		StoragePath: models.DefaultStoragePath,
		Tags:        []string{},
		Checksum:    checksum,
	}
	if !info.CreatedAt.IsZero() {
		rec.DateCreated = info.CreatedAt.Format(time.DateOnly)
	}
	return rec, nil
}

func validate(rec models.DocumentRecord) error {
	if strings.TrimSpace(rec.FilePath) == "" {
		return fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}
	return nil
}

func normalize(rec models.DocumentRecord) models.DocumentRecord {
	if rec.StoragePath == "" {
		rec.StoragePath = models.DefaultStoragePath
	}
	if rec.FileName == "" {
		rec.FileName = filepath.Base(rec.FilePath)
	}
	if rec.Title == "" {
		rec.Title = utils.DisplayTitle("", rec.FilePath)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec
}

// matches applies the search and type parts of filter, the same way the SQL
// store does: case-insensitive substring of title, file name or any tag.
func matches(rec models.DocumentRecord, filter models.DocumentFilter) bool {
	if filter.DocumentType != "" && rec.DocumentType != filter.DocumentType {
		return false
	}
	if filter.Search == "" {
		return true
	}
	q := strings.ToLower(filter.Search)
	if strings.Contains(strings.ToLower(rec.Title), q) || strings.Contains(strings.ToLower(rec.FileName), q) {
		return true
	}
	for _, t := range rec.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// sortRecent orders by UpdatedAt, newest first, then by descending ID.
func sortRecent(recs []models.DocumentRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
}

func page(recs []models.DocumentRecord, limit, offset int) []models.DocumentRecord {
	if offset > 0 {
		if offset >= len(recs) {
			return []models.DocumentRecord{}
		}
		recs = recs[offset:]
	}
	if limit > 0 && limit < len(recs) {
		recs = recs[:limit]
	}
	return recs
}
