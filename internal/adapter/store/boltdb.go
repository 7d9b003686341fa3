// Package store persists vector collections in a single bbolt file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"zotindex/internal/domain"
	"zotindex/internal/port"
)

// IndexFile is the database file created inside the persist directory.
const IndexFile = "index.db"

// LockTimeout bounds how long Open waits for another process holding the
// file lock.
const LockTimeout = time.Second

var (
	bucketCollections = []byte("collections")
	bucketMeta        = []byte("meta")
	bucketDocs        = []byte("docs")
	bucketVectors     = []byte("vectors")
)

// BoltStore is a port.CollectionStore backed by one bbolt file. Each
// collection is a nested bucket under "collections" holding meta, docs and
// vectors sub-buckets.
type BoltStore struct {
	db   *bbolt.DB
	path string

	mu   sync.Mutex
	open map[string]*BoltCollection
}

// NewBoltStore opens (creating if needed) the index file in dir.
func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	path := filepath.Join(dir, IndexFile)

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: LockTimeout})
	if err != nil {
		if errors.Is(err, bbolt.ErrTimeout) {
			return nil, fmt.Errorf("index %s is locked by another process: %w", path, err)
		}
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCollections)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections bucket: %w", err)
	}

	return &BoltStore{db: db, path: path, open: make(map[string]*BoltCollection)}, nil
}

func (s *BoltStore) Location() string {
	return s.path
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.open {
		c.markDropped()
	}
	s.open = make(map[string]*BoltCollection)
	return s.db.Close()
}

// OpenCollection gets or creates the named collection. An existing
// collection keeps its stored binding.
func (s *BoltStore) OpenCollection(name string, binding domain.ProviderBinding) (port.VectorCollection, domain.ProviderBinding, error) {
	if name == "" {
		return nil, domain.ProviderBinding{}, fmt.Errorf("%w: collection name is empty", domain.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.open[name]; ok {
		return c, c.binding, nil
	}

	var effective domain.ProviderBinding
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketCollections)
		if existing := root.Bucket([]byte(name)); existing != nil {
			info, err := readSchemaInfo(existing.Bucket(bucketMeta))
			if err != nil {
				return err
			}
			if err := migrate(existing, info); err != nil {
				return fmt.Errorf("collection %s: %w", name, err)
			}
			effective = info.Binding
			return nil
		}

		col, err := root.CreateBucket([]byte(name))
		if err != nil {
			return err
		}
		for _, b := range [][]byte{bucketMeta, bucketDocs, bucketVectors} {
			if _, err := col.CreateBucket(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		effective = binding
		return writeSchemaInfo(col.Bucket(bucketMeta), newSchemaInfo(binding))
	})
	if err != nil {
		return nil, domain.ProviderBinding{}, err
	}

	c := &BoltCollection{
		db:      s.db,
		name:    []byte(name),
		binding: effective,
		docs:    make(map[string]domain.IndexedDocument),
	}
	if err := c.load(); err != nil {
		return nil, domain.ProviderBinding{}, fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	s.open[name] = c
	return c, effective, nil
}

// StoredBinding reads the binding of an existing collection. Nothing is
// created or migrated.
func (s *BoltStore) StoredBinding(name string) (domain.ProviderBinding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.open[name]; ok {
		return c.binding, true, nil
	}

	var (
		binding domain.ProviderBinding
		found   bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		existing := tx.Bucket(bucketCollections).Bucket([]byte(name))
		if existing == nil {
			return nil
		}
		info, err := readSchemaInfo(existing.Bucket(bucketMeta))
		if err != nil {
			return fmt.Errorf("collection %s: %w", name, err)
		}
		binding, found = info.Binding, true
		return nil
	})
	return binding, found, err
}

func (s *BoltStore) DropCollection(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketCollections).DeleteBucket([]byte(name))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", name, err)
	}

	if c, ok := s.open[name]; ok {
		c.markDropped()
		delete(s.open, name)
	}
	return nil
}

// Collections lists stored collection names in key order.
func (s *BoltStore) Collections() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCollections).ForEach(func(k, v []byte) error {
			if v == nil {
				names = append(names, string(k))
			}
			return nil
		})
	})
	sort.Strings(names)
	return names, err
}
