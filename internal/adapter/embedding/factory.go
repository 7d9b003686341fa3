// Package embedding implements the closed set of embedding providers.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"zotindex/internal/domain"
	"zotindex/internal/observability"
	"zotindex/internal/port"
)

// Settings are the resolved per-provider credentials.
type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
	// HTTPClient overrides the default client; tests use it with httptest.
	HTTPClient *http.Client
}

// New constructs the embedder for kind. Remote providers fail here with
// domain.ErrConfiguration when credentials are missing, before any
// collection is touched.
func New(kind domain.ProviderKind, s Settings) (port.Embedder, error) {
	var (
		e   port.Embedder
		err error
	)
	switch kind {
	case domain.ProviderDefault, "":
		e = NewLocalEmbedder()
		kind = domain.ProviderDefault
	case domain.ProviderOpenAI:
		e, err = NewOpenAIEmbedder(s)
	case domain.ProviderGemini:
		e, err = NewGeminiEmbedder(s)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrConfiguration, kind)
	}
	if err != nil {
		return nil, err
	}
	return &instrumented{kind: kind, inner: e}, nil
}

// Binding describes e under kind for persistence with a collection.
func Binding(kind domain.ProviderKind, e port.Embedder) domain.ProviderBinding {
	if kind == "" {
		kind = domain.ProviderDefault
	}
	return domain.ProviderBinding{Kind: kind, Model: e.ModelName(), Dimension: e.Dimension()}
}

type instrumented struct {
	kind  domain.ProviderKind
	inner port.Embedder
}

func (i *instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.inner.Embed(ctx, texts)
	if err == nil && len(vecs) != len(texts) {
		err = fmt.Errorf("%s embedder returned %d vectors for %d texts", i.kind, len(vecs), len(texts))
		vecs = nil
	}
	observability.ObserveEmbed(string(i.kind), start, len(texts), err)
	return vecs, err
}

func (i *instrumented) Dimension() int    { return i.inner.Dimension() }
func (i *instrumented) ModelName() string { return i.inner.ModelName() }

func httpClient(s Settings, timeout time.Duration) *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}
