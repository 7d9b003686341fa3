package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"zotindex/internal/domain"
	"zotindex/internal/port"
)

// DefaultBatchSize is the number of items embedded per Upsert call.
const DefaultBatchSize = 100

// SyncOptions control one library-to-index synchronisation.
type SyncOptions struct {
	Limit     int  // extract at most this many items; <= 0 means all
	Force     bool // re-embed items whose date_modified is unchanged
	BatchSize int
	Prune     bool // delete indexed ids missing from the library (ignored with Limit)
}

// SyncResult contains the results of a sync.
type SyncResult struct {
	Total     int
	Indexed   int
	Unchanged int
	Skipped   int
	Deleted   int
}

// ProgressFunc is called as items are processed.
type ProgressFunc func(done, total int)

// SyncUseCase projects library items into the vector index.
type SyncUseCase struct {
	source  port.ItemSource
	manager *IndexManager
	logger  *slog.Logger
}

func NewSyncUseCase(source port.ItemSource, manager *IndexManager, logger *slog.Logger) *SyncUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncUseCase{source: source, manager: manager, logger: logger}
}

// Sync extracts items, skips those with no searchable text or an unchanged
// modification date, and upserts the rest in batches. A backend failure
// aborts the sync; batches already written stay written.
func (u *SyncUseCase) Sync(ctx context.Context, opts SyncOptions, progress ProgressFunc) (*SyncResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	items, err := u.source.ExtractAll(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to extract items: %w", err)
	}
	result := &SyncResult{Total: len(items)}

	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = item.Key
	}
	stored, err := u.manager.Get(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to read indexed documents: %w", err)
	}
	indexed := make(map[string]domain.IndexedDocument, len(stored))
	for _, d := range stored {
		indexed[d.ID] = d
	}

	live := make(map[string]struct{}, len(items))
	var (
		ids   []string
		docs  []string
		metas []domain.Metadata
	)
	done := 0
	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		if err := u.manager.Upsert(ctx, ids, docs, metas); err != nil {
			return fmt.Errorf("failed to index batch of %d items: %w", len(ids), err)
		}
		result.Indexed += len(ids)
		done += len(ids)
		progress(done, len(items))
		ids, docs, metas = nil, nil, nil
		return nil
	}

	for _, item := range items {
		text := item.SearchableText()
		if strings.TrimSpace(text) == "" {
			result.Skipped++
			done++
			progress(done, len(items))
			continue
		}
		live[item.Key] = struct{}{}

		// Child notes and tags do not bump the parent's dateModified, so the
		// stored text is compared as well.
		if prev, ok := indexed[item.Key]; ok && !opts.Force &&
			prev.Text == text && prev.Metadata["date_modified"] == item.DateModified {
			result.Unchanged++
			done++
			progress(done, len(items))
			continue
		}

		ids = append(ids, item.Key)
		docs = append(docs, text)
		metas = append(metas, item.Metadata())
		if len(ids) >= opts.BatchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := flush(); err != nil {
		return result, err
	}

	if opts.Prune && opts.Limit <= 0 {
		deleted, err := u.prune(ctx, live)
		result.Deleted = deleted
		if err != nil {
			return result, err
		}
	}

	u.logger.Info("sync complete",
		"collection", u.manager.Name(),
		"indexed", result.Indexed,
		"unchanged", result.Unchanged,
		"skipped", result.Skipped,
		"deleted", result.Deleted)
	return result, nil
}

func (u *SyncUseCase) prune(ctx context.Context, live map[string]struct{}) (int, error) {
	ids, err := u.manager.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list indexed documents: %w", err)
	}
	var stale []string
	for _, id := range ids {
		if _, ok := live[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := u.manager.Delete(ctx, stale); err != nil {
		return 0, fmt.Errorf("failed to prune %d documents: %w", len(stale), err)
	}
	return len(stale), nil
}
