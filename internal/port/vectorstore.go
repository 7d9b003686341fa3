package port

import "zotindex/internal/domain"

// CollectionStore owns the named collections persisted at one location.
type CollectionStore interface {
	// OpenCollection returns the named collection, creating it with binding
	// when absent. The returned binding is the one stored with the
	// collection, which differs from the argument when it already existed.
	OpenCollection(name string, binding domain.ProviderBinding) (VectorCollection, domain.ProviderBinding, error)

	// StoredBinding reports the binding of an existing collection without
	// opening or creating it.
	StoredBinding(name string) (domain.ProviderBinding, bool, error)

	// DropCollection deletes the named collection and all its documents.
	// Dropping an absent collection is not an error.
	DropCollection(name string) error

	// Location describes where collections are persisted.
	Location() string

	Close() error
}

// VectorCollection stores documents with their embeddings and searches them.
// Each write is applied atomically and is durable when the call returns.
type VectorCollection interface {
	// Add inserts documents, failing the whole batch with
	// domain.ErrDuplicateID if any id already exists.
	Add(docs []domain.IndexedDocument) error

	// Upsert inserts or replaces documents.
	Upsert(docs []domain.IndexedDocument) error

	// Delete removes documents; unknown ids are ignored.
	Delete(ids []string) error

	// Get returns the stored documents for ids that exist, in argument order.
	Get(ids []string) ([]domain.IndexedDocument, error)

	// IDs returns all stored document ids in key order.
	IDs() ([]string, error)

	// Search returns up to k documents nearest to query that pass the filters.
	Search(query []float32, k int, where domain.Where, whereDoc domain.WhereDocument) ([]domain.Match, error)

	Count() (int, error)
}
