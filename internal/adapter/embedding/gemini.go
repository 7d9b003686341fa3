package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zotindex/internal/domain"
)

// Gemini defaults.
const (
	GeminiDefaultModel   = "models/text-embedding-004"
	GeminiDefaultBaseURL = "https://generativelanguage.googleapis.com"
	GeminiDimension      = 768 // text-embedding-004 and unknown models
	geminiTaskType       = "RETRIEVAL_DOCUMENT"
	geminiDocumentTitle  = "Zotero library document"
)

// geminiDimensions lists the default output size of known models.
var geminiDimensions = map[string]int{
	"text-embedding-004":         768,
	"embedding-001":              768,
	"gemini-embedding-001":       3072,
	"gemini-embedding-exp-03-07": 3072,
}

// GeminiEmbedder calls embedContent once per text.
type GeminiEmbedder struct {
	apiKey    string
	model     string
	baseURL   string
	dimension int
	client    *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType"`
	Title    string        `json:"title,omitempty"`
}

type geminiResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *apiError `json:"error,omitempty"`
}

func NewGeminiEmbedder(s Settings) (*GeminiEmbedder, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required (set GEMINI_API_KEY or GOOGLE_API_KEY)", domain.ErrConfiguration)
	}
	model := s.Model
	if model == "" {
		model = GeminiDefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = GeminiDefaultBaseURL
	}
	dimension, ok := geminiDimensions[strings.TrimPrefix(model, "models/")]
	if !ok {
		dimension = GeminiDimension
	}
	return &GeminiEmbedder{
		apiKey:    s.APIKey,
		model:     model,
		baseURL:   strings.TrimRight(baseURL, "/"),
		dimension: dimension,
		client:    httpClient(s, 60*time.Second),
	}, nil
}

// Embed issues one request per text in order. The first failure aborts the
// whole call.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("gemini embedding of input %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *GeminiEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(geminiRequest{
		Model:    e.model,
		Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
		TaskType: geminiTaskType,
		Title:    geminiDocumentTitle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/%s:embedContent", e.baseURL, e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, preview(body))
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("failed to parse response (body: %s): %w", preview(body), err)
	}
	if gr.Error != nil {
		return nil, fmt.Errorf("api error: %s", gr.Error.Message)
	}
	if len(gr.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding in response")
	}
	return gr.Embedding.Values, nil
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimension
}

func (e *GeminiEmbedder) ModelName() string {
	return e.model
}
