package config

import (
	"os"

	"zotindex/internal/domain"
)

// Environment variables read by ApplyEnv.
const (
	EnvEmbeddingModel = "ZOTERO_EMBEDDING_MODEL"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvOpenAIModel    = "OPENAI_EMBEDDING_MODEL"
	EnvOpenAIBaseURL  = "OPENAI_BASE_URL"
	EnvGeminiKey      = "GEMINI_API_KEY"
	EnvGoogleKey      = "GOOGLE_API_KEY"
	EnvGeminiModel    = "GEMINI_EMBEDDING_MODEL"
	EnvDBPath         = "ZOTERO_DB_PATH"
	EnvIndexDir       = "ZOTERO_INDEX_DIR"
	EnvBridgeToken    = "ZOTERO_BRIDGE_TOKEN"
	EnvBridgeEndpoint = "ZOTERO_BRIDGE_ENDPOINT"
	EnvLogLevel       = "ZOTERO_LOG_LEVEL"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Overrides are explicit values, typically command-line flags. Empty
// fields are ignored.
type Overrides struct {
	DBPath         string
	IndexDir       string
	Collection     string
	EmbeddingModel string
	LogLevel       string
}

func get(lookup LookupFunc, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := lookup(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// ApplyEnv overlays environment values. Provider credentials from the
// environment win over both the per-provider block and embedding_config.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if c.fileProvider == "" {
		c.fileProvider = c.embeddingConfigOwner()
	}
	if v, ok := get(lookup, EnvEmbeddingModel); ok {
		c.SemanticSearch.EmbeddingModel = v
	}

	var openai, gemini ProviderConfig
	if v, ok := get(lookup, EnvOpenAIKey); ok {
		openai.APIKey = v
	}
	if v, ok := get(lookup, EnvOpenAIModel); ok {
		openai.Model = v
	}
	if v, ok := get(lookup, EnvOpenAIBaseURL); ok {
		openai.BaseURL = v
	}
	if v, ok := get(lookup, EnvGeminiKey, EnvGoogleKey); ok {
		gemini.APIKey = v
	}
	if v, ok := get(lookup, EnvGeminiModel); ok {
		gemini.Model = v
	}
	c.setEnvProvider(domain.ProviderOpenAI, openai)
	c.setEnvProvider(domain.ProviderGemini, gemini)

	if v, ok := get(lookup, EnvDBPath); ok {
		c.Database.Path = v
	}
	if v, ok := get(lookup, EnvIndexDir); ok {
		c.SemanticSearch.PersistDirectory = v
	}
	if v, ok := get(lookup, EnvBridgeToken); ok {
		c.SemanticSearch.Write.Token = v
	}
	if v, ok := get(lookup, EnvBridgeEndpoint); ok {
		c.SemanticSearch.Write.Endpoint = v
	}
	if v, ok := get(lookup, EnvLogLevel); ok {
		c.Logging.Level = v
	}
}

func (c *Config) setEnvProvider(kind domain.ProviderKind, p ProviderConfig) {
	if p == (ProviderConfig{}) {
		return
	}
	if c.env == nil {
		c.env = make(map[domain.ProviderKind]ProviderConfig)
	}
	c.env[kind] = overlay(c.env[kind], p)
	switch kind {
	case domain.ProviderOpenAI:
		c.OpenAI = overlay(c.OpenAI, p)
	case domain.ProviderGemini:
		c.Gemini = overlay(c.Gemini, p)
	}
}

// ApplyOverrides overlays explicit values.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DBPath != "" {
		c.Database.Path = o.DBPath
	}
	if o.IndexDir != "" {
		c.SemanticSearch.PersistDirectory = o.IndexDir
	}
	if o.Collection != "" {
		c.SemanticSearch.CollectionName = o.Collection
	}
	if o.EmbeddingModel != "" {
		c.SemanticSearch.EmbeddingModel = o.EmbeddingModel
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}

// Resolve builds the effective configuration once: defaults, then the file
// at path, then the environment, then explicit overrides.
func Resolve(path string, lookup LookupFunc, o Overrides) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(lookup)
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
