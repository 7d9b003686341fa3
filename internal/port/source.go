package port

import (
	"context"

	"zotindex/internal/domain"
)

// ItemSource produces bibliographic records from the reference database.
type ItemSource interface {
	ExtractAll(ctx context.Context, limit int) ([]domain.ItemRecord, error)
	SearchNaive(ctx context.Context, query string, limit int) ([]domain.ItemRecord, error)
}
