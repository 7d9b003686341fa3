package cli

import (
	"context"
	"fmt"
	"runtime"

	"zotindex/internal/adapter/embedding"
	"zotindex/internal/adapter/memstore"
	"zotindex/internal/adapter/store"
	"zotindex/internal/adapter/zotero"
	"zotindex/internal/domain"
	"zotindex/internal/port"
	"zotindex/internal/usecase"
)

// embedderFactory resolves provider credentials from the loaded config.
func embedderFactory() usecase.EmbedderFactory {
	return func(kind domain.ProviderKind, model string) (port.Embedder, error) {
		p := cfg.ProviderSettings(kind)
		if model != "" {
			p.Model = model
		}
		return embedding.New(kind, embedding.Settings{
			APIKey:  p.APIKey,
			Model:   p.Model,
			BaseURL: p.BaseURL,
		})
	}
}

func openStore() (port.CollectionStore, error) {
	dir := cfg.IndexDir(homeDir)
	if dir == memstore.Location {
		return memstore.NewMemoryStore(), nil
	}
	st, err := store.NewBoltStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	return st, nil
}

// openManager opens the configured collection. The caller closes the
// returned store.
func openManager() (*usecase.IndexManager, port.CollectionStore, error) {
	kind, err := cfg.Provider()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	m, err := usecase.NewIndexManager(st, cfg.SemanticSearch.CollectionName, kind, embedderFactory(), logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return m, st, nil
}

func openLibrary(ctx context.Context) (*zotero.Reader, error) {
	env, err := zotero.CurrentEnv(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	path, err := zotero.Resolve(cfg.Database.Path, env)
	if err != nil {
		return nil, err
	}
	return zotero.Open(ctx, path)
}
