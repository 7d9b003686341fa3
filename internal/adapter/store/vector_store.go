package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"zotindex/internal/adapter/retriever"
	"zotindex/internal/domain"
)

// BoltCollection keeps every document in memory for brute-force search and
// writes through to bbolt. The in-memory view changes only after a
// transaction commits.
type BoltCollection struct {
	db      *bbolt.DB
	name    []byte
	binding domain.ProviderBinding

	mu      sync.RWMutex
	docs    map[string]domain.IndexedDocument
	dropped bool
}

type storedDoc struct {
	Text     string          `json:"t"`
	Metadata domain.Metadata `json:"m,omitempty"`
}

// encodeVector stores float32 values little-endian without a length prefix.
func encodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid vector length %d (not multiple of 4)", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

func (c *BoltCollection) load() error {
	return c.db.View(func(tx *bbolt.Tx) error {
		col, err := c.bucket(tx)
		if err != nil {
			return err
		}
		vectors := col.Bucket(bucketVectors)
		return col.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var sd storedDoc
			if err := json.Unmarshal(v, &sd); err != nil {
				return fmt.Errorf("corrupt document %s: %w", k, err)
			}
			raw := vectors.Get(k)
			if raw == nil {
				return fmt.Errorf("document %s has no vector", k)
			}
			vec, err := decodeVector(raw)
			if err != nil {
				return fmt.Errorf("corrupt vector %s: %w", k, err)
			}
			id := string(k)
			c.docs[id] = domain.IndexedDocument{ID: id, Text: sd.Text, Metadata: sd.Metadata, Embedding: vec}
			return nil
		})
	})
}

func (c *BoltCollection) bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	col := tx.Bucket(bucketCollections).Bucket(c.name)
	if col == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionAbsent, c.name)
	}
	return col, nil
}

func (c *BoltCollection) markDropped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropped = true
	c.docs = nil
}

func (c *BoltCollection) checkOpen() error {
	if c.dropped {
		return fmt.Errorf("%w: %s", domain.ErrCollectionAbsent, c.name)
	}
	return nil
}

func (c *BoltCollection) validate(docs []domain.IndexedDocument) error {
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

func (c *BoltCollection) Add(docs []domain.IndexedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
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
	return c.write(docs)
}

func (c *BoltCollection) Upsert(docs []domain.IndexedDocument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}
	return c.write(docs)
}

// write must be called with c.mu held.
func (c *BoltCollection) write(docs []domain.IndexedDocument) error {
	if err := c.validate(docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		col, err := c.bucket(tx)
		if err != nil {
			return err
		}
		docsB, vecB := col.Bucket(bucketDocs), col.Bucket(bucketVectors)
		for _, d := range docs {
			data, err := json.Marshal(storedDoc{Text: d.Text, Metadata: d.Metadata})
			if err != nil {
				return err
			}
			key := []byte(d.ID)
			if err := docsB.Put(key, data); err != nil {
				return err
			}
			if err := vecB.Put(key, encodeVector(d.Embedding)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, d := range docs {
		c.docs[d.ID] = roundTrip(d)
	}
	return nil
}

// roundTrip gives the cached copy the same value types a reload from disk
// would produce, so results do not depend on cache warmth.
func roundTrip(d domain.IndexedDocument) domain.IndexedDocument {
	out := domain.IndexedDocument{ID: d.ID, Text: d.Text, Embedding: append([]float32(nil), d.Embedding...)}
	if d.Metadata == nil {
		return out
	}
	data, err := json.Marshal(d.Metadata)
	if err != nil {
		return out
	}
	var m domain.Metadata
	if json.Unmarshal(data, &m) == nil {
		out.Metadata = m
	}
	return out
}

func (c *BoltCollection) Delete(ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		col, err := c.bucket(tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := col.Bucket(bucketDocs).Delete([]byte(id)); err != nil {
				return err
			}
			if err := col.Bucket(bucketVectors).Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(c.docs, id)
	}
	return nil
}

func (c *BoltCollection) Get(ids []string) ([]domain.IndexedDocument, error) {
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

func (c *BoltCollection) IDs() ([]string, error) {
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

func (c *BoltCollection) Search(query []float32, k int, where domain.Where, whereDoc domain.WhereDocument) ([]domain.Match, error) {
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

func (c *BoltCollection) Count() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return len(c.docs), nil
}
