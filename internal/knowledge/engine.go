// Package knowledge implements the file-backed knowledge store the
// application ingests documents into and answers queries from. A store is a
// working directory holding seven artifact files: a GraphML entity graph,
// three JSON key-value stores (document status, full documents, text
// chunks), and three JSON vector indexes (chunks, entities, relationships).
//
// The Engine is NOT safe for concurrent use. Its storage layers assume one
// operation at a time on one goroutine; callers serialize every operation —
// including construction and Init — through a bridge.Runner.
package knowledge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aTul-07kn/custom-lightRAG/internal/workspace"
)

// Embedder converts text into dense vector embeddings. The returned slice
// is parallel to the input slice.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces a completion for a system prompt plus user prompt.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// NoContextAnswer is returned by Query when retrieval produces no usable
// context for the requested mode.
const NoContextAnswer = "Sorry, I'm not able to provide an answer to that question."

// Config holds the settings for constructing an Engine.
type Config struct {
	// WorkingDir is the directory the seven artifact files live in.
	WorkingDir string
	// Embedder produces embeddings for chunks, entities, relationships,
	// and queries.
	Embedder Embedder
	// Completer is the LLM used for graph extraction and answer generation.
	Completer Completer
	// ChunkTokenSize is the target chunk length in estimated tokens.
	// Defaults to 200.
	ChunkTokenSize int
	// ChunkOverlapTokens is the overlap between consecutive chunks in
	// estimated tokens. Defaults to 40.
	ChunkOverlapTokens int
	// TopK is the number of vector search hits used per retrieval stage.
	// Defaults to 10.
	TopK int
	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// docStatus records the ingestion state of one document.
type docStatus struct {
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

// fullDoc is the stored normalized text of one document.
type fullDoc struct {
	Content string `json:"content"`
}

// textChunk is one stored chunk of document text.
type textChunk struct {
	Content string `json:"content"`
	DocID   string `json:"full_doc_id"`
	Index   int    `json:"chunk_order_index"`
	Tokens  int    `json:"tokens"`
}

// Stats summarizes the current store contents for status endpoints.
type Stats struct {
	Documents     int `json:"documents"`
	Chunks        int `json:"chunks"`
	Entities      int `json:"entities"`
	Relationships int `json:"relationships"`
}

// Engine is one open knowledge store.
type Engine struct {
	cfg *Config
	log *slog.Logger

	docStatus  *kvStore[docStatus]
	fullDocs   *kvStore[fullDoc]
	textChunks *kvStore[textChunk]

	chunkVDB    *vectorIndex
	entityVDB   *vectorIndex
	relationVDB *vectorIndex

	graph *graph

	initialized bool
}

// New validates cfg and constructs an Engine. Init must be called before
// Insert or Query.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("knowledge: config must not be nil")
	}
	if cfg.WorkingDir == "" {
		return nil, fmt.Errorf("knowledge: working dir must not be empty")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("knowledge: embedder must not be nil")
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("knowledge: completer must not be nil")
	}
	if cfg.ChunkTokenSize <= 0 {
		cfg.ChunkTokenSize = 200
	}
	if cfg.ChunkOverlapTokens < 0 || cfg.ChunkOverlapTokens >= cfg.ChunkTokenSize {
		cfg.ChunkOverlapTokens = 40
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, log: log}, nil
}

// Init creates the working directory if needed and opens all seven artifact
// stores, loading any that already exist on disk. Calling Init twice is an
// error.
func (e *Engine) Init(ctx context.Context) error {
	if e.initialized {
		return fmt.Errorf("knowledge: engine already initialized")
	}

	dir := e.cfg.WorkingDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("knowledge: create working dir %s: %w", dir, err)
	}
	var err error

	if e.docStatus, err = openKV[docStatus](filepath.Join(dir, workspace.DocStatusFile)); err != nil {
		return err
	}
	if e.fullDocs, err = openKV[fullDoc](filepath.Join(dir, workspace.FullDocsFile)); err != nil {
		return err
	}
	if e.textChunks, err = openKV[textChunk](filepath.Join(dir, workspace.TextChunksFile)); err != nil {
		return err
	}
	if e.chunkVDB, err = openVectorIndex(filepath.Join(dir, workspace.ChunksVDBFile)); err != nil {
		return err
	}
	if e.entityVDB, err = openVectorIndex(filepath.Join(dir, workspace.EntitiesVDBFile)); err != nil {
		return err
	}
	if e.relationVDB, err = openVectorIndex(filepath.Join(dir, workspace.RelationshipsVDBFile)); err != nil {
		return err
	}
	if e.graph, err = openGraph(filepath.Join(dir, workspace.GraphFile)); err != nil {
		return err
	}

	e.initialized = true
	e.log.Info("knowledge: store opened",
		slog.String("dir", dir),
		slog.Int("documents", e.docStatus.len()),
		slog.Int("chunks", e.chunkVDB.len()),
	)
	return nil
}

// Insert ingests one document's normalized text: chunk, embed, extract the
// entity/relationship graph, and flush every artifact to disk. Documents
// already marked done (by content hash) are skipped.
func (e *Engine) Insert(ctx context.Context, text string) error {
	if !e.initialized {
		return fmt.Errorf("knowledge: engine not initialized")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("knowledge: refusing to insert empty text")
	}

	docID := "doc-" + contentHash(text)
	if st, ok := e.docStatus.get(docID); ok && st.Status == "done" {
		e.log.Info("knowledge: document already ingested, skipping", slog.String("doc_id", docID))
		return nil
	}

	chunks := chunkText(text, e.cfg.ChunkTokenSize, e.cfg.ChunkOverlapTokens)
	if len(chunks) == 0 {
		return fmt.Errorf("knowledge: chunking produced no chunks")
	}

	embeddings, err := e.cfg.Embedder.Embed(ctx, chunks)
	if err != nil {
		return fmt.Errorf("knowledge: embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("knowledge: expected %d chunk embeddings, got %d", len(chunks), len(embeddings))
	}

	e.fullDocs.set(docID, fullDoc{Content: text})

	chunkIDs := make([]string, len(chunks))
	for i, content := range chunks {
		id := fmt.Sprintf("chunk-%s-%04d", strings.TrimPrefix(docID, "doc-"), i)
		chunkIDs[i] = id
		e.textChunks.set(id, textChunk{
			Content: content,
			DocID:   docID,
			Index:   i,
			Tokens:  estimateTokens(content),
		})
		e.chunkVDB.upsert(vectorEntry{
			ID:      id,
			Vector:  embeddings[i],
			Payload: map[string]string{"full_doc_id": docID},
		})
	}

	touchedNodes, touchedEdges, err := e.extractInto(ctx, chunks, chunkIDs)
	if err != nil {
		return err
	}
	if err := e.embedGraphUpdates(ctx, touchedNodes, touchedEdges); err != nil {
		return err
	}

	e.docStatus.set(docID, docStatus{
		Status:     "done",
		ChunkCount: len(chunks),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	})

	if err := e.flush(); err != nil {
		return err
	}

	e.log.Info("knowledge: document ingested",
		slog.String("doc_id", docID),
		slog.Int("chunks", len(chunks)),
		slog.Int("entities_touched", len(touchedNodes)),
		slog.Int("relationships_touched", len(touchedEdges)),
	)
	return nil
}

// extractInto runs graph extraction over each chunk and merges the results
// into the graph. Returns the names of nodes and the key pairs of edges that
// were touched, so only those get re-embedded.
func (e *Engine) extractInto(ctx context.Context, chunks, chunkIDs []string) (map[string]bool, map[string][2]string, error) {
	touchedNodes := make(map[string]bool)
	touchedEdges := make(map[string][2]string)

	for i, chunk := range chunks {
		entities, relations, err := extractGraph(ctx, e.cfg.Completer, chunk)
		if err != nil {
			return nil, nil, err
		}

		for _, ent := range entities {
			e.graph.mergeNode(graphNode{
				Name:        ent.name,
				Type:        ent.entityType,
				Description: ent.description,
				ChunkIDs:    []string{chunkIDs[i]},
			})
			touchedNodes[ent.name] = true
		}
		for _, rel := range relations {
			e.graph.mergeEdge(graphEdge{
				Source:      rel.source,
				Target:      rel.target,
				Description: rel.description,
				Keywords:    rel.keywords,
				Weight:      rel.weight,
				ChunkIDs:    []string{chunkIDs[i]},
			})
			touchedNodes[rel.source] = true
			touchedNodes[rel.target] = true
			touchedEdges[edgeKey(rel.source, rel.target)] = [2]string{rel.source, rel.target}
		}
	}
	return touchedNodes, touchedEdges, nil
}

// embedGraphUpdates re-embeds every touched node and edge using their merged
// descriptions and upserts them into the entity/relationship indexes.
func (e *Engine) embedGraphUpdates(ctx context.Context, nodes map[string]bool, edges map[string][2]string) error {
	if len(nodes) > 0 {
		names := make([]string, 0, len(nodes))
		texts := make([]string, 0, len(nodes))
		for name := range nodes {
			n := e.graph.node(name)
			if n == nil {
				continue
			}
			names = append(names, name)
			texts = append(texts, name+"\n"+flattenField(n.Description))
		}
		vecs, err := e.cfg.Embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("knowledge: embed entities: %w", err)
		}
		if len(vecs) != len(names) {
			return fmt.Errorf("knowledge: expected %d entity embeddings, got %d", len(names), len(vecs))
		}
		for i, name := range names {
			n := e.graph.node(name)
			e.entityVDB.upsert(vectorEntry{
				ID:     name,
				Vector: vecs[i],
				Payload: map[string]string{
					"entity_type": n.Type,
				},
			})
		}
	}

	if len(edges) > 0 {
		keys := make([]string, 0, len(edges))
		texts := make([]string, 0, len(edges))
		for key, pair := range edges {
			ed := e.graph.edge(pair[0], pair[1])
			if ed == nil {
				continue
			}
			keys = append(keys, key)
			texts = append(texts, ed.Source+" -> "+ed.Target+"\n"+flattenField(ed.Keywords)+"\n"+flattenField(ed.Description))
		}
		vecs, err := e.cfg.Embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("knowledge: embed relationships: %w", err)
		}
		if len(vecs) != len(keys) {
			return fmt.Errorf("knowledge: expected %d relationship embeddings, got %d", len(keys), len(vecs))
		}
		for i, key := range keys {
			pair := edges[key]
			e.relationVDB.upsert(vectorEntry{
				ID:     key,
				Vector: vecs[i],
				Payload: map[string]string{
					"source": pair[0],
					"target": pair[1],
				},
			})
		}
	}

	return nil
}

// Finalize flushes every artifact store to disk and closes the engine.
// A closed engine can be reopened with Init, which rereads the artifact
// files — this is how a workspace reset swaps the store out from under a
// running engine.
func (e *Engine) Finalize(ctx context.Context) error {
	if !e.initialized {
		return nil
	}
	if err := e.flush(); err != nil {
		return err
	}
	e.initialized = false
	return nil
}

// Stats returns the current store contents. Safe to call before Init, in
// which case everything is zero.
func (e *Engine) Stats() Stats {
	if !e.initialized {
		return Stats{}
	}
	return Stats{
		Documents:     e.docStatus.len(),
		Chunks:        e.chunkVDB.len(),
		Entities:      e.entityVDB.len(),
		Relationships: e.relationVDB.len(),
	}
}

// flush saves all seven artifacts.
func (e *Engine) flush() error {
	for _, save := range []func() error{
		e.docStatus.save,
		e.fullDocs.save,
		e.textChunks.save,
		e.chunkVDB.save,
		e.entityVDB.save,
		e.relationVDB.save,
		e.graph.save,
	} {
		if err := save(); err != nil {
			return err
		}
	}
	return nil
}

// contentHash returns a short stable hex hash of text, used as document and
// chunk ID material.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum[:8])
}

// flattenField renders an accumulated fieldSep-joined value as prose.
func flattenField(s string) string {
	return strings.ReplaceAll(s, fieldSep, " ")
}
