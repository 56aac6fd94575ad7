package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// FileStore persists history as a single JSON document, rewritten whole on
// every append. A missing file is the empty state; a corrupt file is an
// error. Writers within the process are serialized; across processes the
// last writer wins.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore constructs a FileStore at path. The file is created on first
// append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (HistoryDocument, error) {
	doc := HistoryDocument{Reviews: []HistoryEntry{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return HistoryDocument{}, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return HistoryDocument{}, fmt.Errorf("corrupt history file %s: %w", s.path, err)
	}
	if doc.Reviews == nil {
		doc.Reviews = []HistoryEntry{}
	}
	return doc, nil
}

func (s *FileStore) save(doc HistoryDocument) error {
	doc.Metadata.TotalReviews = len(doc.Reviews)
	doc.Metadata.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Append inserts the result at the front of the document and rewrites it.
func (s *FileStore) Append(ctx context.Context, result ReviewResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Reviews = append([]HistoryEntry{newHistoryEntry(result)}, doc.Reviews...)
	return s.save(doc)
}

// Latest returns up to n most recent entries.
func (s *FileStore) Latest(ctx context.Context, n int) ([]HistoryEntry, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return headEntries(doc.Reviews, n), nil
}

// FindByConcept returns all entries whose concept name matches exactly.
func (s *FileStore) FindByConcept(ctx context.Context, name string) ([]HistoryEntry, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return filterByConcept(doc.Reviews, name), nil
}

// ByID returns the full result stored under id, or ErrNotFound.
func (s *FileStore) ByID(ctx context.Context, id string) (ReviewResult, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return ReviewResult{}, err
	}
	return findByID(doc.Reviews, id)
}

// All returns the entire history document.
func (s *FileStore) All(ctx context.Context) (HistoryDocument, error) {
	return s.read(ctx)
}

// Stats summarizes the stored history.
func (s *FileStore) Stats(ctx context.Context) (HistoryStats, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return HistoryStats{}, err
	}
	return computeStats(doc.Reviews), nil
}

func (s *FileStore) read(ctx context.Context) (HistoryDocument, error) {
	if err := ctx.Err(); err != nil {
		return HistoryDocument{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

var _ HistoryStore = (*FileStore)(nil)
