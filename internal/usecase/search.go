package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"zotindex/internal/adapter/retriever"
	"zotindex/internal/domain"
	"zotindex/internal/port"
)

// SearchResponse carries ranked matches. Naive is set when they came from
// substring matching instead of the vector index; their scores are 0.
type SearchResponse struct {
	Matches []domain.Match `json:"matches"`
	Naive   bool           `json:"naive"`
}

// SearchUseCase answers free-text queries against the index, falling back
// to naive substring search over the library when the index is missing or
// empty.
type SearchUseCase struct {
	manager *IndexManager // may be nil
	source  port.ItemSource
	logger  *slog.Logger
}

func NewSearchUseCase(manager *IndexManager, source port.ItemSource, logger *slog.Logger) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{manager: manager, source: source, logger: logger}
}

func (u *SearchUseCase) Search(ctx context.Context, query string, limit int, where domain.Where, whereDoc domain.WhereDocument) (*SearchResponse, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidArgument, limit)
	}

	if u.manager != nil && u.manager.Info(ctx).Count > 0 {
		results, err := u.manager.Query(ctx, []string{query}, limit, where, whereDoc)
		if err != nil {
			return nil, err
		}
		return &SearchResponse{Matches: results[0]}, nil
	}

	if u.source == nil {
		return nil, fmt.Errorf("%w: no index and no library available", domain.ErrNotFound)
	}
	u.logger.Info("vector index unavailable, using naive search", "query", query)
	return u.SearchNaive(ctx, query, limit, where, whereDoc)
}

// SearchNaive matches query as a case-insensitive substring of each item's
// searchable text. Filters apply to the item metadata and text.
func (u *SearchUseCase) SearchNaive(ctx context.Context, query string, limit int, where domain.Where, whereDoc domain.WhereDocument) (*SearchResponse, error) {
	filter, err := retriever.Compile(where, whereDoc)
	if err != nil {
		return nil, err
	}
	items, err := u.source.SearchNaive(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("naive search failed: %w", err)
	}

	resp := &SearchResponse{Naive: true, Matches: []domain.Match{}}
	for _, item := range items {
		doc := domain.IndexedDocument{ID: item.Key, Text: item.SearchableText(), Metadata: item.Metadata()}
		if !filter.Match(doc) {
			continue
		}
		resp.Matches = append(resp.Matches, domain.Match{ID: doc.ID, Distance: 1, Text: doc.Text, Metadata: doc.Metadata})
		if len(resp.Matches) >= limit {
			break
		}
	}
	return resp, nil
}
