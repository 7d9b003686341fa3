// Package retriever ranks stored vectors against a query by cosine
// similarity and evaluates metadata and document filters.
package retriever

import (
	"fmt"
	"math"
	"sort"

	"zotindex/internal/domain"
)

// Rank scores every document that passes filter and returns the k best,
// highest score first. Ties are broken by id so results are stable.
func Rank(query []float32, docs []domain.IndexedDocument, k int, filter *Filter) ([]domain.Match, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: n_results must be positive, got %d", domain.ErrInvalidArgument, k)
	}

	matches := make([]domain.Match, 0, len(docs))
	for _, doc := range docs {
		if !filter.Match(doc) {
			continue
		}
		if len(doc.Embedding) != len(query) {
			return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", len(doc.Embedding), len(query))
		}
		score := CosineSimilarity(query, doc.Embedding)
		matches = append(matches, domain.Match{
			ID:       doc.ID,
			Score:    score,
			Distance: 1 - score,
			Text:     doc.Text,
			Metadata: doc.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// CosineSimilarity returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
