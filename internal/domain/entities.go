package domain

import (
	"fmt"
	"strings"
)

// FullTextBudget is the number of characters of extracted full text kept in
// the searchable representation of an item.
const FullTextBudget = 5000

// TruncationMarker is appended to full text cut at FullTextBudget.
const TruncationMarker = "..."

// ItemRecord is one non-attachment bibliographic entry read from the
// reference database.
type ItemRecord struct {
	InternalID   int64
	Key          string // stable key, used as the index document ID
	TypeID       int
	Title        string
	Abstract     string
	Creators     string
	Extra        string
	Notes        string
	FullText     string // never populated by the local reader
	DateAdded    string
	DateModified string
}

// SearchableText combines the populated text fields into labelled sections
// in a fixed order. An item without text yields "".
func (r ItemRecord) SearchableText() string {
	sections := []struct {
		label string
		value string
	}{
		{"Title", r.Title},
		{"Authors", r.Creators},
		{"Abstract", r.Abstract},
		{"Extra", r.Extra},
		{"Notes", r.Notes},
		{"Content", truncateFullText(r.FullText)},
	}

	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if s.value == "" {
			continue
		}
		parts = append(parts, s.label+": "+s.value)
	}
	return strings.Join(parts, "\n\n")
}

// Metadata returns the flat scalar fields stored alongside the indexed
// document for post-hoc filtering.
func (r ItemRecord) Metadata() Metadata {
	return Metadata{
		"item_key":      r.Key,
		"item_type_id":  r.TypeID,
		"title":         r.Title,
		"creators":      r.Creators,
		"date_added":    r.DateAdded,
		"date_modified": r.DateModified,
		"has_notes":     r.Notes != "",
	}
}

func truncateFullText(text string) string {
	runes := []rune(text)
	if len(runes) <= FullTextBudget {
		return text
	}
	return string(runes[:FullTextBudget]) + TruncationMarker
}

// Metadata is a flat mapping of scalar values (string, number, bool).
type Metadata map[string]any

// Validate reports the first non-scalar value in m.
func (m Metadata) Validate() error {
	for k, v := range m {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64, uint, uint32, uint64:
		case nil:
			return fmt.Errorf("%w: metadata %q is nil", ErrInvalidArgument, k)
		default:
			return fmt.Errorf("%w: metadata %q has non-scalar type %T", ErrInvalidArgument, k, v)
		}
	}
	return nil
}

// IndexedDocument is the projection of an ItemRecord stored in a collection.
type IndexedDocument struct {
	ID        string
	Text      string
	Metadata  Metadata
	Embedding []float32
}

// Match is one ranked query result.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`    // cosine similarity, higher is better
	Distance float64  `json:"distance"` // 1 - Score
	Text     string   `json:"document"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Where is a metadata filter in the Chroma dialect, e.g.
// {"item_type_id": {"$ne": 2}} or {"$and": [...]}.
type Where map[string]any

// WhereDocument is a document-text filter, e.g. {"$contains": "bayes"}.
type WhereDocument map[string]any

// CollectionInfo describes a collection. A non-empty Error marks a degraded
// result produced when the backend could not be reached.
type CollectionInfo struct {
	Name         string       `json:"name"`
	Count        int          `json:"count"`
	ProviderKind ProviderKind `json:"embedding_model"`
	Model        string       `json:"model_name,omitempty"`
	Location     string       `json:"persist_directory"`
	Error        string       `json:"error,omitempty"`
}

// Degraded reports whether the info was produced despite a backend failure.
func (i CollectionInfo) Degraded() bool {
	return i.Error != ""
}
