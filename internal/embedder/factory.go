package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name. EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if backend == "ollama" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// NewFromEnv constructs a knowledge.Embedder using cascading defaults that
// inherit from the chat provider configuration when embedding-specific
// overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER — if unset, inherits MODEL_PROVIDER (default: ollama)
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL — overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY — overrides the inherited API key
//  5. EMBEDDING_ENDPOINT — overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS — overrides the default dimensions (ollama: 768, openai/azure: 1536)
func NewFromEnv() (knowledge.Embedder, error) {
	backend := firstNonEmpty(os.Getenv("EMBEDDING_PROVIDER"), os.Getenv("MODEL_PROVIDER"), "ollama")

	switch backend {
	case "ollama":
		return newOllamaFromEnv(), nil
	case "openai", "gemini":
		// Gemini chat users embed through the OpenAI-compatible API, so
		// both backends resolve to the OpenAI embedder.
		return newOpenAIFromEnv(backend)
	case "azure":
		return newAzureFromEnv()
	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, azure, gemini", backend)
	}
}

func newOllamaFromEnv() *OllamaEmbedder {
	return NewOllamaEmbedder(&OllamaConfig{
		Host:  firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), os.Getenv("OLLAMA_HOST"), "http://localhost:11434"),
		Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
	})
}

func newOpenAIFromEnv(backend string) (knowledge.Embedder, error) {
	apiKey := firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("embedder: %s backend requires OPENAI_API_KEY or EMBEDDING_API_KEY", backend)
	}
	return NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), "https://api.openai.com/v1"),
		APIKey:     apiKey,
		Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
	}), nil
}

func newAzureFromEnv() (knowledge.Embedder, error) {
	apiKey := firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv("AZURE_OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
	}
	endpoint := firstNonEmpty(os.Getenv("EMBEDDING_ENDPOINT"), os.Getenv("AZURE_OPENAI_ENDPOINT"))
	if endpoint == "" {
		return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
	}
	return NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    endpoint + "/openai",
		APIKey:     apiKey,
		Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		Azure:      true,
		APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
	}), nil
}

// firstNonEmpty returns the first non-empty string from the given values.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
