package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingEmbedder struct {
	calls [][]string
	fail  bool
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.fail {
		return nil, errors.New("backend down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (e *countingEmbedder) Dimension() int    { return 1 }
func (e *countingEmbedder) ModelName() string { return "counting" }

func TestVectorCache_LRUEviction(t *testing.T) {
	c := NewVectorCache(2, time.Minute)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Get("a")
	c.Put("c", []float32{3})

	if _, ok := c.Get("b"); ok {
		t.Error("expected least recently used entry to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected recently used entry to survive")
	}
	if c.Size() != 2 {
		t.Errorf("expected size 2, got %d", c.Size())
	}
}

func TestVectorCache_TTL(t *testing.T) {
	c := NewVectorCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Put("a", []float32{1})

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to miss")
	}
	if c.Size() != 0 {
		t.Errorf("expected expired entry removed, size %d", c.Size())
	}
}

func TestVectorCache_Invalidate(t *testing.T) {
	c := NewVectorCache(10, time.Minute)
	c.Put("a", []float32{1})
	c.Invalidate()
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestCachedEmbedder_EmbedsMissesOnce(t *testing.T) {
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, NewVectorCache(10, time.Minute))
	ctx := context.Background()

	if _, err := e.Embed(ctx, []string{"aa", "b"}); err != nil {
		t.Fatal(err)
	}
	vecs, err := e.Embed(ctx, []string{"b", "cccc", "aa"})
	if err != nil {
		t.Fatal(err)
	}

	want := []float32{1, 4, 2}
	for i, v := range vecs {
		if v[0] != want[i] {
			t.Errorf("position %d: expected %v, got %v", i, want[i], v[0])
		}
	}
	if len(inner.calls) != 2 {
		t.Fatalf("expected 2 backend calls, got %d", len(inner.calls))
	}
	if len(inner.calls[1]) != 1 || inner.calls[1][0] != "cccc" {
		t.Errorf("expected only the miss to be embedded, got %v", inner.calls[1])
	}

	if _, err := e.Embed(ctx, []string{"aa", "cccc"}); err != nil {
		t.Fatal(err)
	}
	if len(inner.calls) != 2 {
		t.Error("full hit should not call the backend")
	}
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	c := NewVectorCache(10, time.Minute)
	e := NewCachedEmbedder(inner, c)

	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
	if c.Size() != 0 {
		t.Error("failed embeddings must not be cached")
	}
	if e.ModelName() != "counting" || e.Dimension() != 1 {
		t.Error("identity should pass through")
	}
}
