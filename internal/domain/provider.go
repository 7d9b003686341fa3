package domain

import "fmt"

// ProviderKind selects one of the closed set of embedding providers.
type ProviderKind string

const (
	ProviderDefault ProviderKind = "default"
	ProviderOpenAI  ProviderKind = "openai"
	ProviderGemini  ProviderKind = "gemini"
)

// ParseProviderKind maps a configuration value to a ProviderKind. The empty
// string selects the default provider.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(s) {
	case "", ProviderDefault:
		return ProviderDefault, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGemini:
		return ProviderGemini, nil
	default:
		return "", fmt.Errorf("%w: unknown embedding model %q (want default, openai or gemini)", ErrConfiguration, s)
	}
}

// ProviderBinding is the embedding provider identity bound to a collection
// when it is created. Every write and query against the collection uses it.
type ProviderBinding struct {
	Kind      ProviderKind `json:"kind"`
	Model     string       `json:"model"`
	Dimension int          `json:"dimension"`
}

func (b ProviderBinding) String() string {
	return fmt.Sprintf("%s/%s(%d)", b.Kind, b.Model, b.Dimension)
}

// Equal reports whether two bindings produce vectors in the same space.
func (b ProviderBinding) Equal(o ProviderBinding) bool {
	return b.Kind == o.Kind && b.Model == o.Model && b.Dimension == o.Dimension
}
