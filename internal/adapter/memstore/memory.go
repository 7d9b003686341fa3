// Package memstore is an ephemeral port.CollectionStore used for ":memory:"
// indexes and tests.
package memstore

import (
	"fmt"
	"sort"
	"sync"

	"zotindex/internal/adapter/retriever"
	"zotindex/internal/domain"
	"zotindex/internal/port"
)

// Location is reported for in-memory stores.
const Location = ":memory:"

type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*MemoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*MemoryCollection)}
}

func (s *MemoryStore) OpenCollection(name string, binding domain.ProviderBinding) (port.VectorCollection, domain.ProviderBinding, error) {
	if name == "" {
		return nil, domain.ProviderBinding{}, fmt.Errorf("%w: collection name is empty", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c, c.binding, nil
	}
	c := &MemoryCollection{
		name:    name,
		binding: binding,
		docs:    make(map[string]domain.IndexedDocument),
	}
	s.collections[name] = c
	return c, binding, nil
}

func (s *MemoryStore) StoredBinding(name string) (domain.ProviderBinding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c.binding, true, nil
	}
	return domain.ProviderBinding{}, false, nil
}

func (s *MemoryStore) DropCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		c.drop()
		delete(s.collections, name)
	}
	return nil
}

func (s *MemoryStore) Location() string {
	return Location
}

func (s *MemoryStore) Close() error {
	return nil
}

type MemoryCollection struct {
	name    string
	binding domain.ProviderBinding

	mu      sync.RWMutex
	docs    map[string]domain.IndexedDocument
	dropped bool
}

func (c *MemoryCollection) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = true
	c.docs = nil
}

func (c *MemoryCollection) checkOpen() error {
	if c.dropped {
		return fmt.Errorf("%w: %s", domain.ErrCollectionAbsent, c.name)
	}
	return nil
}

func (c *MemoryCollection) validate(docs []domain.IndexedDocument) error {
	for _, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("%w: empty document id", domain.ErrInvalidArgument)
		}
		if len(d.Embedding) != c.binding.Dimension {
			return fmt.Errorf("%w: vector dimension mismatch for %s: expected %d, got %d",
				domain.ErrInvalidArgument, d.ID, c.binding.Dimension, len(d.Embedding))
		}
		if err := d.Metadata.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *MemoryCollection) Add(docs []domain.IndexedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.validate(docs); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: %s repeats in batch", domain.ErrDuplicateID, d.ID)
		}
		seen[d.ID] = struct{}{}
		if _, exists := c.docs[d.ID]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateID, d.ID)
		}
	}
	c.put(docs)
	return nil
}

func (c *MemoryCollection) Upsert(docs []domain.IndexedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.validate(docs); err != nil {
		return err
	}
	c.put(docs)
	return nil
}

func (c *MemoryCollection) put(docs []domain.IndexedDocument) {
	for _, d := range docs {
		meta := make(domain.Metadata, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = v
		}
		d.Metadata = meta
		d.Embedding = append([]float32(nil), d.Embedding...)
		c.docs[d.ID] = d
	}
}

func (c *MemoryCollection) Delete(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	for _, id := range ids {
		delete(c.docs, id)
	}
	return nil
}

func (c *MemoryCollection) Get(ids []string) ([]domain.IndexedDocument, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]domain.IndexedDocument, 0, len(ids))
	for _, id := range ids {
		if d, ok := c.docs[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *MemoryCollection) IDs() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (c *MemoryCollection) Search(query []float32, k int, where domain.Where, whereDoc domain.WhereDocument) ([]domain.Match, error) {
	filter, err := retriever.Compile(where, whereDoc)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	docs := make([]domain.IndexedDocument, 0, len(c.docs))
	for _, d := range c.docs {
		docs = append(docs, d)
	}
	return retriever.Rank(query, docs, k, filter)
}

func (c *MemoryCollection) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return len(c.docs), nil
}
