// Package config provides YAML-based configuration for lightrag.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. LIGHTRAG_CONFIG environment variable
//  3. ~/.lightrag/config.yaml
//  4. ./lightrag.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Workspace configures the knowledge store and upload directories.
	Workspace WorkspaceConfig `yaml:"workspace"`

	// Chunking configures document chunking and retrieval.
	Chunking ChunkingConfig `yaml:"chunking"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures query history persistence.
	History HistoryConfig `yaml:"history"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// env contributes this section's settings to the env var layer.
func (m *ModelConfig) env(set setter) {
	set("MODEL_PROVIDER", m.Provider)
	set("MODEL_MAX_TOKENS", intStr(m.MaxTokens))
	set("MODEL_TEMPERATURE", float32Str(m.Temperature))
	set("OLLAMA_HOST", m.Ollama.Host)
	set("OLLAMA_MODEL", m.Ollama.Model)
	set("OPENAI_API_KEY", m.OpenAI.APIKey)
	set("OPENAI_MODEL", m.OpenAI.Model)
	set("AZURE_OPENAI_API_KEY", m.Azure.APIKey)
	set("AZURE_OPENAI_ENDPOINT", m.Azure.Endpoint)
	set("AZURE_OPENAI_DEPLOYMENT", m.Azure.Deployment)
	set("AZURE_OPENAI_API_VERSION", m.Azure.APIVersion)
	set("GOOGLE_API_KEY", m.Gemini.APIKey)
	set("GEMINI_MODEL", m.Gemini.Model)
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

func (e *EmbeddingConfig) env(set setter) {
	set("EMBEDDING_PROVIDER", e.Provider)
	set("EMBEDDING_MODEL", e.Model)
	set("EMBEDDING_DIMENSIONS", intStr(e.Dimensions))
	set("EMBEDDING_API_KEY", e.APIKey)
	set("EMBEDDING_ENDPOINT", e.Endpoint)
}

// WorkspaceConfig holds knowledge store directory settings.
type WorkspaceConfig struct {
	// Dir is the knowledge store directory holding the index artifacts.
	Dir string `yaml:"dir"`
	// ScratchDir is where uploaded documents are copied before conversion.
	ScratchDir string `yaml:"scratch_dir"`
}

func (w *WorkspaceConfig) env(set setter) {
	set("WORKSPACE_DIR", w.Dir)
	set("SCRATCH_DIR", w.ScratchDir)
}

// ChunkingConfig holds document chunking and retrieval settings.
type ChunkingConfig struct {
	// TokenSize is the target chunk size in tokens.
	TokenSize int `yaml:"token_size"`
	// OverlapTokens is the overlap between adjacent chunks in tokens.
	OverlapTokens int `yaml:"overlap_tokens"`
	// TopK is the number of retrieval hits per query.
	TopK int `yaml:"top_k"`
}

func (c *ChunkingConfig) env(set setter) {
	set("CHUNK_TOKEN_SIZE", intStr(c.TokenSize))
	set("CHUNK_OVERLAP_TOKENS", intStr(c.OverlapTokens))
	set("QUERY_TOP_K", intStr(c.TopK))
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var LIGHTRAG_API_KEY.
	APIKey string `yaml:"api_key"`
}

func (s *ServerConfig) env(set setter) {
	set("LIGHTRAG_API_KEY", s.APIKey)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

func (l *LoggingConfig) env(set setter) {
	set("LOG_LEVEL", l.Level)
	set("LOG_FORMAT", l.Format)
}

// HistoryConfig holds query history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

func (h *HistoryConfig) env(set setter) {
	set("LIGHTRAG_HISTORY_DB", h.DBPath)
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

func (t *TracingConfig) env(set setter) {
	set("LANGFUSE_PUBLIC_KEY", t.PublicKey)
	set("LANGFUSE_SECRET_KEY", t.SecretKey)
	set("LANGFUSE_HOST", t.Host)
}

// setter receives one env key and its YAML-derived value. Empty values are
// skipped, as are keys already present in the environment (env always wins).
type setter func(key, value string)

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	set := func(key, value string) {
		if value == "" || os.Getenv(key) != "" {
			return
		}
		os.Setenv(key, value)
		applied++
	}
	for _, section := range []interface{ env(setter) }{
		&cfg.Model, &cfg.Embedding, &cfg.Workspace, &cfg.Chunking,
		&cfg.Server, &cfg.Logging, &cfg.History, &cfg.Tracing,
	} {
		section.env(set)
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("LIGHTRAG_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".lightrag", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("lightrag.yaml"); err == nil {
		return "lightrag.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
