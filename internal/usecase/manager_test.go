package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"zotindex/internal/adapter/embedding"
	"zotindex/internal/adapter/memstore"
	"zotindex/internal/domain"
	"zotindex/internal/port"
)

// stubEmbedder stands in for a remote provider.
type stubEmbedder struct {
	model string
	dim   int
	calls int
	err   error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		v[len(t)%e.dim] = 1
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int    { return e.dim }
func (e *stubEmbedder) ModelName() string { return e.model }

func localFactory(kind domain.ProviderKind, model string) (port.Embedder, error) {
	return embedding.New(kind, embedding.Settings{})
}

func newTestManager(t *testing.T) *IndexManager {
	t.Helper()
	m, err := NewIndexManager(memstore.NewMemoryStore(), "zotero_library", domain.ProviderDefault, localFactory, nil)
	if err != nil {
		t.Fatalf("NewIndexManager failed: %v", err)
	}
	return m
}

func TestManager_AddExistsDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.Add(ctx, []string{"k1"}, []string{"deep learning"}, []domain.Metadata{{"title": "DL"}}); err != nil {
		t.Fatal(err)
	}
	ok, err := m.Exists(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("expected k1 to exist, got %v, %v", ok, err)
	}

	if err := m.Add(ctx, []string{"k1"}, []string{"again"}, nil); !errors.Is(err, domain.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if err := m.Add(ctx, []string{"k2", "k2"}, []string{"a", "b"}, nil); !errors.Is(err, domain.ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID for repeated id, got %v", err)
	}

	if err := m.Delete(ctx, []string{"k1"}); err != nil {
		t.Fatal(err)
	}
	ok, _ = m.Exists(ctx, "k1")
	if ok {
		t.Error("expected k1 to be deleted")
	}
}

func TestManager_UpsertIdempotent(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	ids := []string{"a", "b"}
	docs := []string{"bayesian statistics", "neural networks"}

	for i := 0; i < 3; i++ {
		if err := m.Upsert(ctx, ids, docs, nil); err != nil {
			t.Fatal(err)
		}
	}
	if info := m.Info(ctx); info.Count != 2 {
		t.Errorf("expected 2 documents, got %d", info.Count)
	}
}

func TestManager_DeleteUnknown(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.Upsert(ctx, []string{"a"}, []string{"x"}, nil)

	if err := m.Delete(ctx, []string{"nope"}); err != nil {
		t.Errorf("deleting an unknown id should succeed, got %v", err)
	}
	if info := m.Info(ctx); info.Count != 1 {
		t.Errorf("expected count unchanged, got %d", info.Count)
	}
}

func TestManager_QuerySoftCap(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.Upsert(ctx, []string{"a", "b"}, []string{"neural networks", "bayesian data analysis"}, nil)

	results, err := m.Query(ctx, []string{"neural networks", "bayesian"}, 10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected one result list per query, got %d", len(results))
	}
	if len(results[0]) != 2 {
		t.Errorf("expected all 2 documents, got %d", len(results[0]))
	}
	if results[0][0].ID != "a" || results[1][0].ID != "b" {
		t.Errorf("unexpected ranking %+v", results)
	}

	results, _ = m.Query(ctx, []string{"neural"}, 1, nil, nil)
	if len(results[0]) != 1 {
		t.Errorf("expected cap of 1, got %d", len(results[0]))
	}

	if _, err := m.Query(ctx, []string{"x"}, 0, nil, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestManager_QueryFilters(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.Upsert(ctx, []string{"a", "b"}, []string{"neural networks", "neural fields"},
		[]domain.Metadata{{"item_type_id": 2}, {"item_type_id": 7}})

	results, err := m.Query(ctx, []string{"neural"}, 5, domain.Where{"item_type_id": 7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results[0]) != 1 || results[0][0].ID != "b" {
		t.Errorf("expected only b, got %+v", results[0])
	}

	results, _ = m.Query(ctx, []string{"neural"}, 5, nil, domain.WhereDocument{"$contains": "networks"})
	if len(results[0]) != 1 || results[0][0].ID != "a" {
		t.Errorf("expected only a, got %+v", results[0])
	}
}

func TestManager_InvalidFilterBeforeEmbedding(t *testing.T) {
	stub := &stubEmbedder{model: "stub", dim: 4}
	factory := func(domain.ProviderKind, string) (port.Embedder, error) { return stub, nil }
	m, err := NewIndexManager(memstore.NewMemoryStore(), "c", domain.ProviderOpenAI, factory, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Query(context.Background(), []string{"q"}, 3, domain.Where{"a": map[string]any{"$regex": "x"}}, nil)
	if !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("embedder must not be called for an invalid filter, got %d calls", stub.calls)
	}
}

func TestManager_BatchValidation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if err := m.Upsert(ctx, []string{"a", "b"}, []string{"x"}, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected length mismatch error, got %v", err)
	}
	if err := m.Upsert(ctx, []string{"a"}, []string{"x"}, []domain.Metadata{{"tags": []string{"a"}}}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected non-scalar metadata error, got %v", err)
	}
}

func TestManager_EmbedFailureIsBackendError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	stub := &stubEmbedder{model: "stub", dim: 4}
	factory := func(domain.ProviderKind, string) (port.Embedder, error) { return stub, nil }
	m, err := NewIndexManager(memstore.NewMemoryStore(), "c", domain.ProviderOpenAI, factory, logger)
	if err != nil {
		t.Fatal(err)
	}

	stub.err = errors.New("rate limited")
	err = m.Upsert(context.Background(), []string{"a"}, []string{"x"}, nil)
	var be *domain.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if !strings.Contains(logs.String(), "op=\"upsert embed\"") || !strings.Contains(logs.String(), "collection=c") {
		t.Errorf("expected failure to be logged with op, got %q", logs.String())
	}
}

func TestManager_ConstructionFailsFast(t *testing.T) {
	store := memstore.NewMemoryStore()
	factory := func(domain.ProviderKind, string) (port.Embedder, error) {
		return nil, fmt.Errorf("%w: no key", domain.ErrConfiguration)
	}
	if _, err := NewIndexManager(store, "c", domain.ProviderOpenAI, factory, nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	// No collection may be created when the provider is misconfigured.
	if _, ok, _ := store.StoredBinding("c"); ok {
		t.Error("collection should not exist after a failed construction")
	}
}

func TestManager_ProviderStickiness(t *testing.T) {
	store := memstore.NewMemoryStore()
	first, err := NewIndexManager(store, "lib", domain.ProviderDefault, localFactory, nil)
	if err != nil {
		t.Fatal(err)
	}
	first.Upsert(context.Background(), []string{"a"}, []string{"neural networks"}, nil)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	var built []domain.ProviderKind
	factory := func(kind domain.ProviderKind, model string) (port.Embedder, error) {
		built = append(built, kind)
		if kind == domain.ProviderOpenAI {
			return &stubEmbedder{model: "text-embedding-3-small", dim: 1536}, nil
		}
		return embedding.New(kind, embedding.Settings{})
	}

	second, err := NewIndexManager(store, "lib", domain.ProviderOpenAI, factory, logger)
	if err != nil {
		t.Fatal(err)
	}
	if second.Binding().Kind != domain.ProviderDefault {
		t.Errorf("expected stored provider to win, got %s", second.Binding())
	}
	if len(built) != 1 || built[0] != domain.ProviderDefault {
		t.Errorf("expected only the stored provider to be built, got %v", built)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("expected a warning, got %q", logs.String())
	}

	results, err := second.Query(context.Background(), []string{"neural networks"}, 1, nil, nil)
	if err != nil {
		t.Fatalf("query with stored provider failed: %v", err)
	}
	if len(results[0]) != 1 || results[0][0].ID != "a" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestManager_StoredBindingSkipsUnconfiguredProvider(t *testing.T) {
	store := memstore.NewMemoryStore()
	first, err := NewIndexManager(store, "lib", domain.ProviderDefault, localFactory, nil)
	if err != nil {
		t.Fatal(err)
	}
	first.Upsert(context.Background(), []string{"a"}, []string{"neural networks"}, nil)

	// Selecting openai without a key must not fail against a collection
	// already bound to the default provider.
	factory := func(kind domain.ProviderKind, model string) (port.Embedder, error) {
		if kind == domain.ProviderOpenAI {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrConfiguration)
		}
		return embedding.New(kind, embedding.Settings{})
	}
	second, err := NewIndexManager(store, "lib", domain.ProviderOpenAI, factory, nil)
	if err != nil {
		t.Fatalf("expected stored default provider to be used, got %v", err)
	}
	if second.Binding().Kind != domain.ProviderDefault {
		t.Errorf("expected default binding, got %s", second.Binding())
	}
	if ok, _ := second.Exists(context.Background(), "a"); !ok {
		t.Error("expected existing document to stay reachable")
	}
}

// failingStore drops fine but cannot recreate.
type failingStore struct {
	*memstore.MemoryStore
	failOpen bool
}

func (s *failingStore) OpenCollection(name string, b domain.ProviderBinding) (port.VectorCollection, domain.ProviderBinding, error) {
	if s.failOpen {
		return nil, domain.ProviderBinding{}, errors.New("disk full")
	}
	return s.MemoryStore.OpenCollection(name, b)
}

func TestManager_Reset(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	m.Upsert(ctx, []string{"a"}, []string{"x"}, nil)
	before := m.Binding()

	if err := m.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if info := m.Info(ctx); info.Count != 0 || info.Degraded() {
		t.Errorf("expected empty healthy collection, got %+v", info)
	}
	if !m.Binding().Equal(before) {
		t.Error("binding should survive reset")
	}
}

func TestManager_ResetFailureLeavesAbsent(t *testing.T) {
	store := &failingStore{MemoryStore: memstore.NewMemoryStore()}
	m, err := NewIndexManager(store, "c", domain.ProviderDefault, localFactory, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	store.failOpen = true
	var be *domain.BackendError
	if err := m.Reset(ctx); !errors.As(err, &be) {
		t.Fatalf("expected BackendError, got %v", err)
	}
	if err := m.Upsert(ctx, []string{"a"}, []string{"x"}, nil); !errors.Is(err, domain.ErrCollectionAbsent) {
		t.Errorf("expected ErrCollectionAbsent, got %v", err)
	}
	info := m.Info(ctx)
	if !info.Degraded() || info.Count != 0 {
		t.Errorf("expected degraded info, got %+v", info)
	}

	store.failOpen = false
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("reset should recover once the backend is healthy: %v", err)
	}
	if _, err := m.IDs(ctx); err != nil {
		t.Errorf("expected open collection after recovery, got %v", err)
	}
}

// brokenCollection fails every call.
type brokenCollection struct{ port.VectorCollection }

func (brokenCollection) Count() (int, error) { return 0, errors.New("io error") }

func TestManager_InfoDegraded(t *testing.T) {
	m := newTestManager(t)
	m.col = brokenCollection{}

	info := m.Info(context.Background())
	if info.Count != 0 || info.Error == "" {
		t.Errorf("expected degraded info, got %+v", info)
	}
	if info.Name != "zotero_library" || info.ProviderKind != domain.ProviderDefault || info.Location != ":memory:" {
		t.Errorf("identity fields should still be populated: %+v", info)
	}
}
