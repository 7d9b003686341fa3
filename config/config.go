package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"zotindex/internal/domain"
)

// Config holds all configuration for zotindex. The semantic_search block
// keeps the layout of the zotero-mcp config.json file.
type Config struct {
	SemanticSearch SemanticSearchConfig `yaml:"semantic_search" json:"semantic_search"`
	OpenAI         ProviderConfig       `yaml:"openai,omitempty" json:"openai,omitempty"`
	Gemini         ProviderConfig       `yaml:"gemini,omitempty" json:"gemini,omitempty"`
	Database       DatabaseConfig       `yaml:"database,omitempty" json:"database,omitempty"`
	Logging        LoggingConfig        `yaml:"logging" json:"logging"`

	// fileProvider is the provider embedding_config belongs to: the one the
	// file selected, before the environment or flags changed it.
	fileProvider domain.ProviderKind
	// env holds provider credentials read from the environment.
	env map[domain.ProviderKind]ProviderConfig
}

// SemanticSearchConfig selects the collection and its embedding provider.
type SemanticSearchConfig struct {
	CollectionName   string          `yaml:"collection_name" json:"collection_name"`
	EmbeddingModel   string          `yaml:"embedding_model" json:"embedding_model"` // "default", "openai", "gemini"
	EmbeddingConfig  EmbeddingConfig `yaml:"embedding_config,omitempty" json:"embedding_config,omitempty"`
	PersistDirectory string          `yaml:"persist_directory,omitempty" json:"persist_directory,omitempty"`
	Write            WriteConfig     `yaml:"write,omitempty" json:"write,omitempty"`
}

// EmbeddingConfig applies to the provider named by embedding_model.
type EmbeddingConfig struct {
	APIKey    string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	ModelName string `yaml:"model_name,omitempty" json:"model_name,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// ProviderConfig holds per-provider credentials, usually from the environment.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model   string `yaml:"model,omitempty" json:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// WriteConfig configures the write-bridge plugin client.
type WriteConfig struct {
	Token    string `yaml:"token,omitempty" json:"token,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// DatabaseConfig locates the Zotero database. Path may be the sqlite file
// or a Zotero data directory; empty means auto-detect.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "zotero_library"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SemanticSearch: SemanticSearchConfig{
			CollectionName: DefaultCollection,
			EmbeddingModel: string(domain.ProviderDefault),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDir is the zotero-mcp configuration directory under home.
func DefaultDir(home string) string {
	return filepath.Join(home, ".config", "zotero-mcp")
}

// DefaultPersistDir is where the vector index lives unless configured.
func DefaultPersistDir(home string) string {
	return filepath.Join(DefaultDir(home), "vector_index")
}

// Load loads configuration from a YAML or JSON file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	// YAML is a superset of JSON, so one decoder covers both formats.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", domain.ErrConfiguration, path, err)
	}
	if kind, err := cfg.Provider(); err == nil {
		cfg.fileProvider = kind
	}
	return cfg, nil
}

// Discover returns the first of config.yaml, config.yml, config.json that
// exists in dir, or "" when there is none.
func Discover(dir string) string {
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Provider parses embedding_model.
func (c *Config) Provider() (domain.ProviderKind, error) {
	return domain.ParseProviderKind(c.SemanticSearch.EmbeddingModel)
}

// ProviderSettings returns the credentials for kind. The per-provider block
// comes first, then embedding_config when the file selected kind, then the
// environment.
func (c *Config) ProviderSettings(kind domain.ProviderKind) ProviderConfig {
	var p ProviderConfig
	switch kind {
	case domain.ProviderOpenAI:
		p = c.OpenAI
	case domain.ProviderGemini:
		p = c.Gemini
	}

	if c.embeddingConfigOwner() == kind {
		ec := c.SemanticSearch.EmbeddingConfig
		p = overlay(p, ProviderConfig{APIKey: ec.APIKey, Model: ec.ModelName, BaseURL: ec.BaseURL})
	}
	return overlay(p, c.env[kind])
}

func (c *Config) embeddingConfigOwner() domain.ProviderKind {
	if c.fileProvider != "" {
		return c.fileProvider
	}
	kind, err := c.Provider()
	if err != nil {
		return ""
	}
	return kind
}

func overlay(base, top ProviderConfig) ProviderConfig {
	if top.APIKey != "" {
		base.APIKey = top.APIKey
	}
	if top.Model != "" {
		base.Model = top.Model
	}
	if top.BaseURL != "" {
		base.BaseURL = top.BaseURL
	}
	return base
}

// IndexDir returns the persist directory with a leading "~" expanded.
func (c *Config) IndexDir(home string) string {
	dir := c.SemanticSearch.PersistDirectory
	if dir == "" {
		return DefaultPersistDir(home)
	}
	if dir == "~" {
		return home
	}
	if strings.HasPrefix(dir, "~/") {
		return filepath.Join(home, dir[2:])
	}
	return dir
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if _, err := c.Provider(); err != nil {
		return err
	}
	if strings.TrimSpace(c.SemanticSearch.CollectionName) == "" {
		return fmt.Errorf("%w: collection_name is empty", domain.ErrConfiguration)
	}
	return nil
}
