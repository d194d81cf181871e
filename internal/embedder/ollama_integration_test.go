//go:build integration

package embedder

import (
	"context"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds two document chunks against a real
// locally running Ollama instance and checks the vectors come back sane.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// In CI, set OLLAMA_HOST if Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
	model := getEnvOrDefault("EMBEDDING_MODEL", "nomic-embed-text")

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chunks := []string{
		"Section 3.1 describes the data retention policy for uploaded documents.",
		"Table 7 summarises quarterly revenue by region for fiscal year 2024.",
	}

	vecs, err := emb.Embed(ctx, chunks)
	if err != nil {
		t.Fatalf("Embed() failed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(vecs) != len(chunks) {
		t.Fatalf("expected %d embeddings, got %d", len(chunks), len(vecs))
	}

	dim := len(vecs[0])
	if dim == 0 {
		t.Fatal("embedding[0] is empty")
	}
	for i, vec := range vecs {
		if len(vec) != dim {
			t.Errorf("embedding[%d]: dim=%d, want %d (all vectors must share one dimension)", i, len(vec), dim)
		}
	}

	// Distinct inputs must not map to the identical vector.
	identical := true
	for j := range vecs[0] {
		if vecs[0][j] != vecs[1][j] {
			identical = false
			break
		}
	}
	if identical {
		t.Error("both chunks produced the identical vector — model may not be working correctly")
	}

	t.Logf("model=%s dim=%d", model, dim)
}
