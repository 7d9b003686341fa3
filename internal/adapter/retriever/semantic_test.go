package retriever

import (
	"errors"
	"math"
	"testing"

	"zotindex/internal/domain"
)

func TestRank_OrdersAndCaps(t *testing.T) {
	docs := []domain.IndexedDocument{
		{ID: "far", Embedding: []float32{0, 1}},
		{ID: "near", Embedding: []float32{1, 0.1}},
		{ID: "exact", Embedding: []float32{1, 0}},
		{ID: "tie", Embedding: []float32{2, 0}},
	}

	got, err := Rank([]float32{1, 0}, docs, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"exact", "tie", "near"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i].ID)
		}
	}
	if math.Abs(got[0].Score-1) > 1e-9 || math.Abs(got[0].Distance) > 1e-9 {
		t.Errorf("unexpected score/distance %+v", got[0])
	}
}

func TestRank_SoftCap(t *testing.T) {
	docs := []domain.IndexedDocument{{ID: "only", Embedding: []float32{1}}}
	got, err := Rank([]float32{1}, docs, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected all available results, got %d", len(got))
	}
}

func TestRank_InvalidK(t *testing.T) {
	if _, err := Rank([]float32{1}, nil, 0, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRank_AppliesFilter(t *testing.T) {
	docs := []domain.IndexedDocument{
		{ID: "a", Text: "keep", Embedding: []float32{1}},
		{ID: "b", Text: "drop", Embedding: []float32{1}},
	}
	f, err := Compile(nil, domain.WhereDocument{"$contains": "keep"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := Rank([]float32{1}, docs, 5, f)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected only a, got %+v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if s := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); s != 0 {
		t.Errorf("expected 0 for orthogonal, got %f", s)
	}
	if s := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); s != 0 {
		t.Errorf("expected 0 for zero vector, got %f", s)
	}
	if s := CosineSimilarity([]float32{1}, []float32{1, 2}); s != 0 {
		t.Errorf("expected 0 for length mismatch, got %f", s)
	}
}
