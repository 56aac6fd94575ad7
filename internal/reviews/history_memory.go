package reviews

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps history in memory and is safe for concurrent use. It
// backs tests and the dev fallback when neither a history file nor a
// database is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     []HistoryEntry
	lastUpdated time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append inserts the result at the front, most recent first.
func (s *MemoryStore) Append(ctx context.Context, result ReviewResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]HistoryEntry{newHistoryEntry(result)}, s.entries...)
	s.lastUpdated = time.Now().UTC()
	return nil
}

// Latest returns up to n most recent entries.
func (s *MemoryStore) Latest(ctx context.Context, n int) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return headEntries(s.entries, n), nil
}

// FindByConcept returns all entries whose concept name matches exactly.
func (s *MemoryStore) FindByConcept(ctx context.Context, name string) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterByConcept(s.entries, name), nil
}

// ByID returns the full result stored under id, or ErrNotFound.
func (s *MemoryStore) ByID(ctx context.Context, id string) (ReviewResult, error) {
	if err := ctx.Err(); err != nil {
		return ReviewResult{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findByID(s.entries, id)
}

// All returns the entire history document.
func (s *MemoryStore) All(ctx context.Context) (HistoryDocument, error) {
	if err := ctx.Err(); err != nil {
		return HistoryDocument{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]HistoryEntry, len(s.entries))
	copy(entries, s.entries)
	doc := HistoryDocument{
		Reviews:  entries,
		Metadata: HistoryMetadata{TotalReviews: len(entries)},
	}
	if !s.lastUpdated.IsZero() {
		doc.Metadata.LastUpdated = s.lastUpdated.Format(time.RFC3339)
	}
	return doc, nil
}

// Stats summarizes the stored history.
func (s *MemoryStore) Stats(ctx context.Context) (HistoryStats, error) {
	if err := ctx.Err(); err != nil {
		return HistoryStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStats(s.entries), nil
}

var _ HistoryStore = (*MemoryStore)(nil)
