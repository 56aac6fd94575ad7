package reviews

import "context"

// HistoryStore persists review results most-recent-first. Callers append in
// chronological order; the store maintains ordering by insertion, not by
// timestamp sort.
type HistoryStore interface {
	Append(ctx context.Context, result ReviewResult) error
	Latest(ctx context.Context, n int) ([]HistoryEntry, error)
	FindByConcept(ctx context.Context, name string) ([]HistoryEntry, error)
	ByID(ctx context.Context, id string) (ReviewResult, error)
	All(ctx context.Context) (HistoryDocument, error)
	Stats(ctx context.Context) (HistoryStats, error)
}

// HistoryDocument is the full exported history: every entry plus metadata.
// It is also the on-disk shape of the file store.
type HistoryDocument struct {
	Reviews  []HistoryEntry  `json:"reviews"`
	Metadata HistoryMetadata `json:"metadata"`
}

// HistoryMetadata describes the stored history as a whole.
type HistoryMetadata struct {
	TotalReviews int    `json:"total_reviews"`
	LastUpdated  string `json:"last_updated,omitempty"`
}

func computeStats(entries []HistoryEntry) HistoryStats {
	stats := HistoryStats{RecommendationDistribution: make(map[string]int)}
	if len(entries) == 0 {
		return stats
	}

	var scoreSum float64
	var vetoCount int
	for _, e := range entries {
		scoreSum += e.OverallScore
		if e.VetoTriggered {
			vetoCount++
		}
		stats.RecommendationDistribution[e.Recommendation]++
	}
	stats.TotalReviews = len(entries)
	stats.AverageScore = round2(scoreSum / float64(len(entries)))
	stats.VetoRate = round2(float64(vetoCount) / float64(len(entries)))
	return stats
}

func headEntries(entries []HistoryEntry, n int) []HistoryEntry {
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, entries[:n])
	return out
}

func filterByConcept(entries []HistoryEntry, name string) []HistoryEntry {
	out := []HistoryEntry{}
	for _, e := range entries {
		if e.ConceptName == name {
			out = append(out, e)
		}
	}
	return out
}

func findByID(entries []HistoryEntry, id string) (ReviewResult, error) {
	for _, e := range entries {
		if e.ID == id && e.FullResult != nil {
			return *e.FullResult, nil
		}
	}
	return ReviewResult{}, ErrNotFound
}
