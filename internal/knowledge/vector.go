package knowledge

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// minScore is the cosine-similarity cutoff below which search hits are
// discarded. Keeps barely-related chunks out of the LLM context.
const minScore = 0.2

// vectorEntry is one embedded item in a vector index.
type vectorEntry struct {
	// ID uniquely identifies the item (chunk ID, entity name, edge key).
	ID string `json:"id"`
	// Vector is the embedding.
	Vector []float32 `json:"vector"`
	// Payload carries item metadata used to build query context.
	Payload map[string]string `json:"payload,omitempty"`
}

// scoredEntry is a search hit with its similarity score.
type scoredEntry struct {
	vectorEntry
	score float32
}

// vectorIndex is a JSON-file-backed brute-force cosine-similarity index,
// one per vdb_* artifact file. Like the KV stores it is held fully in
// memory and only ever touched from the bridge worker.
type vectorIndex struct {
	path    string
	entries []vectorEntry
	byID    map[string]int
}

// openVectorIndex loads the index at path, or starts empty if absent.
func openVectorIndex(path string) (*vectorIndex, error) {
	idx := &vectorIndex{path: path, byID: make(map[string]int)}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: read vector index %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &idx.entries); err != nil {
		return nil, fmt.Errorf("knowledge: parse vector index %s: %w", path, err)
	}
	for i, e := range idx.entries {
		idx.byID[e.ID] = i
	}
	return idx, nil
}

// upsert inserts or replaces the entry with the same ID.
func (idx *vectorIndex) upsert(e vectorEntry) {
	if i, ok := idx.byID[e.ID]; ok {
		idx.entries[i] = e
		return
	}
	idx.byID[e.ID] = len(idx.entries)
	idx.entries = append(idx.entries, e)
}

// len returns the number of indexed entries.
func (idx *vectorIndex) len() int {
	return len(idx.entries)
}

// search returns up to topK entries most similar to query, best first,
// filtered by the minimum score cutoff.
func (idx *vectorIndex) search(query []float32, topK int) []scoredEntry {
	if topK <= 0 || len(idx.entries) == 0 {
		return nil
	}

	hits := make([]scoredEntry, 0, len(idx.entries))
	for _, e := range idx.entries {
		s := cosine(query, e.Vector)
		if s >= minScore {
			hits = append(hits, scoredEntry{vectorEntry: e, score: s})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// save writes the index to disk atomically.
func (idx *vectorIndex) save() error {
	raw, err := json.Marshal(idx.entries)
	if err != nil {
		return fmt.Errorf("knowledge: marshal vector index %s: %w", idx.path, err)
	}
	return atomicWrite(idx.path, raw)
}

// cosine returns the cosine similarity of a and b, or 0 when either vector
// is empty, zero-length, or the dimensions disagree.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
