package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zotindex/internal/adapter/cache"
	"zotindex/internal/adapter/embedding"
	"zotindex/internal/adapter/retriever"
	"zotindex/internal/domain"
	"zotindex/internal/observability"
	"zotindex/internal/port"
)

// EmbedderFactory builds the embedder for a provider kind. An empty model
// selects the configured (or default) model for that kind.
type EmbedderFactory func(kind domain.ProviderKind, model string) (port.Embedder, error)

// IndexManager owns one named collection and the embedder bound to it.
// Its operations are serialised by a single mutex.
type IndexManager struct {
	store   port.CollectionStore
	name    string
	logger  *slog.Logger
	mu      sync.Mutex
	col     port.VectorCollection // nil once the collection is absent
	binding domain.ProviderBinding

	embedder      port.Embedder
	queryEmbedder port.Embedder
	queryCache    *cache.VectorCache
}

// NewIndexManager gets or creates the collection and builds its embedder.
// When the collection already exists, its stored binding wins: that provider
// is built directly and the requested one is never constructed.
func NewIndexManager(store port.CollectionStore, name string, kind domain.ProviderKind, factory EmbedderFactory, logger *slog.Logger) (*IndexManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if name == "" {
		return nil, fmt.Errorf("%w: collection name is empty", domain.ErrConfiguration)
	}

	existing, found, err := store.StoredBinding(name)
	if err != nil {
		return nil, domain.NewBackendError("read collection binding", err)
	}

	var embedder port.Embedder
	if found {
		if existing.Kind != kind {
			logger.Warn("collection bound to a different embedding provider; using the stored one",
				"collection", name, "requested", string(kind), "stored", existing.String())
		}
		embedder, err = storedEmbedder(factory, name, existing)
	} else {
		embedder, err = factory(kind, "")
	}
	if err != nil {
		return nil, err
	}
	requested := embedding.Binding(kind, embedder)
	if found {
		requested = existing
	}

	col, stored, err := store.OpenCollection(name, requested)
	if err != nil {
		return nil, domain.NewBackendError("open collection", err)
	}
	if !found && !stored.Equal(requested) {
		// Created concurrently by another process.
		logger.Warn("collection bound to a different embedding provider; using the stored one",
			"collection", name, "requested", requested.String(), "stored", stored.String())
		if embedder, err = storedEmbedder(factory, name, stored); err != nil {
			return nil, err
		}
	}

	queryCache := cache.NewVectorCache(256, 10*time.Minute)
	m := &IndexManager{
		store:         store,
		name:          name,
		logger:        logger,
		col:           col,
		binding:       stored,
		embedder:      embedder,
		queryEmbedder: cache.NewCachedEmbedder(embedder, queryCache),
		queryCache:    queryCache,
	}
	return m, nil
}

func storedEmbedder(factory EmbedderFactory, name string, b domain.ProviderBinding) (port.Embedder, error) {
	embedder, err := factory(b.Kind, b.Model)
	if err != nil {
		return nil, fmt.Errorf("collection %s requires provider %s: %w", name, b, err)
	}
	if embedder.Dimension() != b.Dimension {
		return nil, fmt.Errorf("%w: collection %s stores %d-dimensional vectors but %s produces %d",
			domain.ErrConfiguration, name, b.Dimension, b.Kind, embedder.Dimension())
	}
	return embedder, nil
}

// Name returns the collection name.
func (m *IndexManager) Name() string {
	return m.name
}

// Binding reports the provider the collection is bound to.
func (m *IndexManager) Binding() domain.ProviderBinding {
	return m.binding
}

// Add embeds and inserts new documents. The whole batch is rejected with
// domain.ErrDuplicateID if any id exists or repeats.
func (m *IndexManager) Add(ctx context.Context, ids, docs []string, metas []domain.Metadata) (err error) {
	defer func() { observability.ObserveOperation("add", err) }()
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := validateBatch(ids, docs, metas); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s repeats in batch", domain.ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	existing, err := m.col.Get(ids)
	if err != nil {
		return m.backendError("add", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateID, existing[0].ID)
	}

	batch, err := m.embedBatch(ctx, "add", ids, docs, metas)
	if err != nil || len(batch) == 0 {
		return err
	}
	if err := m.col.Add(batch); err != nil {
		return m.backendError("add", err)
	}
	return nil
}

// Upsert embeds and inserts or replaces documents. Repeating the same call
// leaves the collection unchanged.
func (m *IndexManager) Upsert(ctx context.Context, ids, docs []string, metas []domain.Metadata) (err error) {
	defer func() { observability.ObserveOperation("upsert", err) }()
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := validateBatch(ids, docs, metas); err != nil {
		return err
	}

	batch, err := m.embedBatch(ctx, "upsert", ids, docs, metas)
	if err != nil || len(batch) == 0 {
		return err
	}
	if err := m.col.Upsert(batch); err != nil {
		return m.backendError("upsert", err)
	}
	return nil
}

// Delete removes documents. Unknown ids are ignored.
func (m *IndexManager) Delete(ctx context.Context, ids []string) (err error) {
	defer func() { observability.ObserveOperation("delete", err) }()
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := m.col.Delete(ids); err != nil {
		return m.backendError("delete", err)
	}
	return nil
}

// Query returns, for each query text, up to n documents ranked by
// similarity. n is a soft cap: fewer are returned when fewer match.
// Filters are validated before any embedding call.
func (m *IndexManager) Query(ctx context.Context, texts []string, n int, where domain.Where, whereDoc domain.WhereDocument) (results [][]domain.Match, err error) {
	defer func() { observability.ObserveOperation("query", err) }()
	if n <= 0 {
		return nil, fmt.Errorf("%w: n_results must be positive, got %d", domain.ErrInvalidArgument, n)
	}
	if _, err := retriever.Compile(where, whereDoc); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	results = make([][]domain.Match, 0, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	vecs, err := m.queryEmbedder.Embed(ctx, texts)
	if err != nil {
		return nil, m.backendError("embed query", err)
	}
	for _, vec := range vecs {
		matches, err := m.col.Search(vec, n, where, whereDoc)
		if err != nil {
			return nil, m.backendError("query", err)
		}
		results = append(results, matches)
	}
	return results, nil
}

// Reset drops the collection and recreates it empty under the same name
// and binding. If recreation fails the manager is left Absent.
func (m *IndexManager) Reset(ctx context.Context) (err error) {
	defer func() { observability.ObserveOperation("reset", err) }()
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queryCache.Invalidate()
	if err := m.store.DropCollection(m.name); err != nil {
		return m.backendError("reset", err)
	}
	m.col = nil

	col, _, err := m.store.OpenCollection(m.name, m.binding)
	if err != nil {
		return m.backendError("reset", err)
	}
	m.col = col
	observability.CollectionDocuments.WithLabelValues(m.name).Set(0)
	return nil
}

// Exists reports whether a document with id is stored.
func (m *IndexManager) Exists(ctx context.Context, id string) (bool, error) {
	docs, err := m.Get(ctx, []string{id})
	if err != nil {
		return false, err
	}
	return len(docs) > 0, nil
}

// Get returns stored documents for the ids that exist, in argument order.
func (m *IndexManager) Get(ctx context.Context, ids []string) ([]domain.IndexedDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	docs, err := m.col.Get(ids)
	if err != nil {
		return nil, m.backendError("get", err)
	}
	return docs, nil
}

// IDs returns every stored document id.
func (m *IndexManager) IDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	ids, err := m.col.IDs()
	if err != nil {
		return nil, m.backendError("ids", err)
	}
	return ids, nil
}

// Info describes the collection. It never fails: backend problems produce
// a count of 0 and a populated Error field.
func (m *IndexManager) Info(ctx context.Context) domain.CollectionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := domain.CollectionInfo{
		Name:         m.name,
		ProviderKind: m.binding.Kind,
		Model:        m.binding.Model,
		Location:     m.store.Location(),
	}
	if m.col == nil {
		info.Error = fmt.Sprintf("%v: %s", domain.ErrCollectionAbsent, m.name)
		return info
	}
	n, err := m.col.Count()
	if err != nil {
		m.logger.Warn("collection info degraded", "op", "info", "collection", m.name, "error", err)
		info.Error = err.Error()
		return info
	}
	info.Count = n
	observability.CollectionDocuments.WithLabelValues(m.name).Set(float64(n))
	return info
}

func (m *IndexManager) checkOpen() error {
	if m.col == nil {
		return fmt.Errorf("%w: %s", domain.ErrCollectionAbsent, m.name)
	}
	return nil
}

func (m *IndexManager) embedBatch(ctx context.Context, op string, ids, docs []string, metas []domain.Metadata) ([]domain.IndexedDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	vecs, err := m.embedder.Embed(ctx, docs)
	if err != nil {
		return nil, m.backendError(op+" embed", err)
	}

	batch := make([]domain.IndexedDocument, len(ids))
	for i, id := range ids {
		batch[i] = domain.IndexedDocument{ID: id, Text: docs[i], Embedding: vecs[i]}
		if metas != nil {
			batch[i].Metadata = metas[i]
		}
	}
	return batch, nil
}

// backendError passes caller errors through and wraps everything else as a
// logged domain.BackendError.
func (m *IndexManager) backendError(op string, err error) error {
	for _, sentinel := range []error{
		domain.ErrDuplicateID,
		domain.ErrInvalidArgument,
		domain.ErrInvalidFilter,
		domain.ErrCollectionAbsent,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	m.logger.Error("index operation failed", "op", op, "collection", m.name, "error", err)
	return domain.NewBackendError(op, err)
}

func validateBatch(ids, docs []string, metas []domain.Metadata) error {
	if len(ids) != len(docs) {
		return fmt.Errorf("%w: %d ids but %d documents", domain.ErrInvalidArgument, len(ids), len(docs))
	}
	if metas != nil && len(metas) != len(ids) {
		return fmt.Errorf("%w: %d ids but %d metadata entries", domain.ErrInvalidArgument, len(ids), len(metas))
	}
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty id at position %d", domain.ErrInvalidArgument, i)
		}
		if metas != nil {
			if err := metas[i].Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
