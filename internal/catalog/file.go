package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

type fileState struct {
	NextID    int64                   `json:"next_id"`
	Documents []models.DocumentRecord `json:"documents"`
}

// FileStore keeps the catalog in one JSON file, rewritten atomically on every
// change.
type FileStore struct {
	path string
	now  func() time.Time

	mu    sync.Mutex
	state fileState
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving catalog path: %w", err)
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	s := &FileStore{path: path, now: time.Now, state: fileState{NextID: 1}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	default:
		if err := json.Unmarshal(data, &s.state); err != nil {
			return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
		}
		if s.state.NextID < 1 {
			s.state.NextID = 1
		}
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Save(ctx context.Context, rec models.DocumentRecord) (models.DocumentRecord, error) {
	if err := validate(rec); err != nil {
		return models.DocumentRecord{}, err
	}
	rec = normalize(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	docs := append([]models.DocumentRecord(nil), s.state.Documents...)
	next := s.state.NextID
	idx := s.indexByPath(rec.FilePath)
	if idx >= 0 {
		rec.ID = docs[idx].ID
		rec.CreatedAt = docs[idx].CreatedAt
		rec.UpdatedAt = now
		docs[idx] = rec
	} else {
		rec.ID = next
		next++
		rec.CreatedAt = now
		rec.UpdatedAt = now
		docs = append(docs, rec)
	}

	if err := s.persist(fileState{NextID: next, Documents: docs}); err != nil {
		return models.DocumentRecord{}, err
	}
	return rec, nil
}

func (s *FileStore) Get(ctx context.Context, id int64) (models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.state.Documents {
		if d.ID == id {
			return d, nil
		}
	}
	return models.DocumentRecord{}, ErrNotFound
}

func (s *FileStore) GetByPath(ctx context.Context, path string) (models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexByPath(path); idx >= 0 {
		return s.state.Documents[idx], nil
	}
	return models.DocumentRecord{}, ErrNotFound
}

func (s *FileStore) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.DocumentRecord{}
	for _, d := range s.state.Documents {
		if matches(d, filter) {
			out = append(out, d)
		}
	}
	sortRecent(out)
	return page(out, filter.Limit, filter.Offset), nil
}

func (s *FileStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.state.Documents {
		if d.ID != id {
			continue
		}
		docs := append([]models.DocumentRecord(nil), s.state.Documents[:i]...)
		docs = append(docs, s.state.Documents[i+1:]...)
		return s.persist(fileState{NextID: s.state.NextID, Documents: docs})
	}
	return ErrNotFound
}

func (s *FileStore) Stats(ctx context.Context) (models.CatalogStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st models.CatalogStats
	for _, d := range s.state.Documents {
		st.TotalDocuments++
		st.TotalPages += d.PageCount
		st.TotalSize += d.FileSize
	}
	return st, nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) indexByPath(path string) int {
	for i, d := range s.state.Documents {
		if d.FilePath == path {
			return i
		}
	}
	return -1
}

// persist writes next through a temp file and os.Rename, and adopts it only
// once it is on disk.
func (s *FileStore) persist(next fileState) (err error) {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "catalog-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	if err = os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	s.state = next
	return nil
}
