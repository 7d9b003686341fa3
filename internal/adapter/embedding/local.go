package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"zotindex/internal/adapter/analyzer"
)

// Local embedder defaults.
const (
	LocalDimension = 384
	LocalModel     = "hash-384"
)

const (
	unigramWeight = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.25
)

// LocalEmbedder produces deterministic feature-hashed vectors without any
// network access. Texts sharing stemmed vocabulary land close together; it
// is not a semantic model.
type LocalEmbedder struct {
	tokenizer *analyzer.Tokenizer
	dimension int
}

// NewLocalEmbedder returns the credential-free default embedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{
		tokenizer: analyzer.NewTokenizer(true),
		dimension: LocalDimension,
	}
}

func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := e.tokenizer.Tokenize(text)

	for _, tok := range tokens {
		e.add(vec, "u:"+tok, unigramWeight)
	}
	for i := 0; i+1 < len(tokens); i++ {
		e.add(vec, "b:"+tokens[i]+" "+tokens[i+1], bigramWeight)
	}
	// Character trigrams over the padded stem help related word forms
	// ("network", "networked") that the stemmer keeps apart.
	for _, tok := range tokens {
		padded := []rune("^" + strings.ToLower(tok) + "$")
		for i := 0; i+3 <= len(padded); i++ {
			e.add(vec, "c:"+string(padded[i:i+3]), trigramWeight)
		}
	}

	normalize(vec)
	return vec
}

// add hashes feature into one dimension. A second hash bit picks the sign
// so collisions cancel instead of accumulating.
func (e *LocalEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := sum % uint64(e.dimension)
	if (sum>>63)&1 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func (e *LocalEmbedder) ModelName() string {
	return LocalModel
}
