package reviews

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGStore implements HistoryStore on Postgres. Entries are ordered by
// created_at, which Append sets to the review's start time.
type PGStore struct {
	DB *sql.DB
}

const historyColumns = `id, concept_name, concept_description, recommendation, overall_score, veto_triggered, result, created_at`

// Append inserts one review row.
func (s *PGStore) Append(ctx context.Context, result ReviewResult) error {
	const query = `
INSERT INTO reviews (` + historyColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, query,
		result.ID,
		result.ConceptName,
		result.ConceptDescription,
		result.Verdict.Recommendation,
		result.Verdict.OverallScore,
		result.Verdict.VetoTriggered,
		payload,
		result.StartedAt,
	)
	return err
}

// Latest returns up to n most recent entries.
func (s *PGStore) Latest(ctx context.Context, n int) ([]HistoryEntry, error) {
	if n < 0 {
		n = 0
	}
	const query = `
SELECT ` + historyColumns + `
FROM reviews
ORDER BY created_at DESC
LIMIT $1`

	rows, err := s.DB.QueryContext(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

// FindByConcept returns all entries whose concept name matches exactly.
func (s *PGStore) FindByConcept(ctx context.Context, name string) ([]HistoryEntry, error) {
	const query = `
SELECT ` + historyColumns + `
FROM reviews
WHERE concept_name = $1
ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

// ByID returns the full result stored under id, or ErrNotFound.
func (s *PGStore) ByID(ctx context.Context, id string) (ReviewResult, error) {
	const query = `
SELECT result
FROM reviews
WHERE id = $1
LIMIT 1`

	var payload sql.NullString
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReviewResult{}, ErrNotFound
		}
		return ReviewResult{}, err
	}
	if !payload.Valid {
		return ReviewResult{}, ErrNotFound
	}
	var result ReviewResult
	if err := json.Unmarshal([]byte(payload.String), &result); err != nil {
		return ReviewResult{}, err
	}
	return result, nil
}

// All returns the entire history document, newest first.
func (s *PGStore) All(ctx context.Context) (HistoryDocument, error) {
	const query = `
SELECT ` + historyColumns + `
FROM reviews
ORDER BY created_at DESC`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return HistoryDocument{}, err
	}
	defer rows.Close()

	entries, err := scanHistoryEntries(rows)
	if err != nil {
		return HistoryDocument{}, err
	}
	doc := HistoryDocument{
		Reviews:  entries,
		Metadata: HistoryMetadata{TotalReviews: len(entries)},
	}
	if len(entries) > 0 {
		doc.Metadata.LastUpdated = entries[0].Timestamp.Format(time.RFC3339)
	}
	return doc, nil
}

// Stats summarizes the stored history with SQL aggregates.
func (s *PGStore) Stats(ctx context.Context) (HistoryStats, error) {
	const query = `
SELECT COUNT(*),
       COALESCE(AVG(overall_score), 0),
       COALESCE(AVG(CASE WHEN veto_triggered THEN 1.0 ELSE 0.0 END), 0)
FROM reviews`

	stats := HistoryStats{RecommendationDistribution: make(map[string]int)}
	var avgScore, vetoRate float64
	if err := s.DB.QueryRowContext(ctx, query).Scan(&stats.TotalReviews, &avgScore, &vetoRate); err != nil {
		return HistoryStats{}, err
	}
	if stats.TotalReviews == 0 {
		return stats, nil
	}
	stats.AverageScore = round2(avgScore)
	stats.VetoRate = round2(vetoRate)

	const distQuery = `
SELECT recommendation, COUNT(*)
FROM reviews
WHERE recommendation IS NOT NULL
GROUP BY recommendation`

	rows, err := s.DB.QueryContext(ctx, distQuery)
	if err != nil {
		return HistoryStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var recommendation string
		var count int
		if err := rows.Scan(&recommendation, &count); err != nil {
			return HistoryStats{}, err
		}
		stats.RecommendationDistribution[recommendation] = count
	}
	return stats, rows.Err()
}

func scanHistoryEntries(rows *sql.Rows) ([]HistoryEntry, error) {
	out := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var description sql.NullString
		var recommendation sql.NullString
		var overallScore sql.NullFloat64
		var vetoTriggered sql.NullBool
		var payload sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.ConceptName,
			&description,
			&recommendation,
			&overallScore,
			&vetoTriggered,
			&payload,
			&e.Timestamp,
		); err != nil {
			return nil, err
		}
		if description.Valid {
			e.ConceptDescription = description.String
		}
		if recommendation.Valid {
			e.Recommendation = recommendation.String
		}
		if overallScore.Valid {
			e.OverallScore = overallScore.Float64
		}
		if vetoTriggered.Valid {
			e.VetoTriggered = vetoTriggered.Bool
		}
		if payload.Valid {
			var result ReviewResult
			if err := json.Unmarshal([]byte(payload.String), &result); err == nil {
				e.FullResult = &result
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ HistoryStore = (*PGStore)(nil)
