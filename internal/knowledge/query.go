package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/aTul-07kn/custom-lightRAG/internal/budget"
)

// answerSystemPrompt instructs the model to answer strictly from the
// retrieved context.
const answerSystemPrompt = `You are a helpful assistant answering questions about a document collection.
Answer using ONLY the provided context. If the context does not contain the
answer, say so plainly. Be concise and cite specific facts from the context.`

// maxContextChunks caps how many raw text chunks are pulled in through graph
// neighborhoods, independent of TopK, so local/hybrid context stays bounded.
const maxContextChunks = 12

// Query answers a free-text question using the requested retrieval mode.
// The context assembled depends on the mode:
//
//	naive  — chunk vector search only
//	local  — entity vector search plus each entity's graph neighborhood
//	global — relationship vector search
//	hybrid — local and global combined
//	mix    — hybrid plus chunk vector search
//
// When retrieval yields nothing usable the canned NoContextAnswer is
// returned without calling the model.
func (e *Engine) Query(ctx context.Context, query string, mode Mode) (string, error) {
	if !e.initialized {
		return "", fmt.Errorf("knowledge: engine not initialized")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("knowledge: empty query")
	}
	if _, err := ParseMode(string(mode)); err != nil {
		return "", err
	}

	vecs, err := e.cfg.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("knowledge: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return "", fmt.Errorf("knowledge: expected 1 query embedding, got %d", len(vecs))
	}
	qv := vecs[0]

	var sections []string
	switch mode {
	case ModeNaive:
		sections = e.chunkContext(qv)
	case ModeLocal:
		sections = e.localContext(qv)
	case ModeGlobal:
		sections = e.globalContext(qv)
	case ModeHybrid:
		sections = append(e.localContext(qv), e.globalContext(qv)...)
	case ModeMix:
		sections = append(e.localContext(qv), e.globalContext(qv)...)
		sections = append(sections, e.chunkContext(qv)...)
	}

	if len(sections) == 0 {
		return NoContextAnswer, nil
	}
	sections = budget.TrimSections(sections, budget.DefaultMaxContextTokens)

	prompt := fmt.Sprintf("Context:\n\n%s\n\nQuestion: %s", strings.Join(sections, "\n\n---\n\n"), query)
	answer, err := e.cfg.Completer.Complete(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("knowledge: answer generation failed: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// chunkContext renders the top chunk vector hits as context sections.
func (e *Engine) chunkContext(qv []float32) []string {
	var sections []string
	for _, hit := range e.chunkVDB.search(qv, e.cfg.TopK) {
		if tc, ok := e.textChunks.get(hit.ID); ok {
			sections = append(sections, "[Document excerpt]\n"+tc.Content)
		}
	}
	return sections
}

// localContext renders the top entity hits: each entity's accumulated
// description, its strongest relationships, and the chunks it was extracted
// from.
func (e *Engine) localContext(qv []float32) []string {
	var sections []string
	chunkBudget := maxContextChunks
	seenChunks := make(map[string]bool)

	for _, hit := range e.entityVDB.search(qv, e.cfg.TopK) {
		n := e.graph.node(hit.ID)
		if n == nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "[Entity] %s (%s)\n%s", n.Name, orUnknown(n.Type), flattenField(n.Description))
		for _, ed := range e.graph.neighbors(n.Name) {
			fmt.Fprintf(&b, "\n- related to %s: %s", otherEnd(ed, n.Name), flattenField(ed.Description))
		}
		sections = append(sections, b.String())

		for _, chunkID := range n.ChunkIDs {
			if chunkBudget == 0 {
				break
			}
			if seenChunks[chunkID] {
				continue
			}
			seenChunks[chunkID] = true
			if tc, ok := e.textChunks.get(chunkID); ok {
				sections = append(sections, "[Document excerpt]\n"+tc.Content)
				chunkBudget--
			}
		}
	}
	return sections
}

// globalContext renders the top relationship hits with their endpoint
// entities.
func (e *Engine) globalContext(qv []float32) []string {
	var sections []string
	for _, hit := range e.relationVDB.search(qv, e.cfg.TopK) {
		src, dst := hit.Payload["source"], hit.Payload["target"]
		ed := e.graph.edge(src, dst)
		if ed == nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "[Relationship] %s — %s\n%s", ed.Source, ed.Target, flattenField(ed.Description))
		if kw := flattenField(ed.Keywords); kw != "" {
			fmt.Fprintf(&b, "\nkeywords: %s", kw)
		}
		for _, name := range []string{ed.Source, ed.Target} {
			if n := e.graph.node(name); n != nil && n.Description != "" {
				fmt.Fprintf(&b, "\n%s: %s", name, flattenField(n.Description))
			}
		}
		sections = append(sections, b.String())
	}
	return sections
}

// otherEnd returns the endpoint of ed that is not name.
func otherEnd(ed *graphEdge, name string) string {
	if ed.Source == name {
		return ed.Target
	}
	return ed.Source
}

// orUnknown substitutes a placeholder for an empty entity type.
func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
