package knowledge

import (
	"path/filepath"
	"testing"
)

func TestVectorIndexUpsertReplaces(t *testing.T) {
	t.Parallel()

	idx, err := openVectorIndex(filepath.Join(t.TempDir(), "vdb.json"))
	if err != nil {
		t.Fatal(err)
	}
	idx.upsert(vectorEntry{ID: "a", Vector: []float32{1, 0}})
	idx.upsert(vectorEntry{ID: "a", Vector: []float32{0, 1}})

	if idx.len() != 1 {
		t.Fatalf("len() = %d after upserting same ID twice, want 1", idx.len())
	}
	hits := idx.search([]float32{0, 1}, 1)
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("search() = %v, want the replaced entry", hits)
	}
	if hits[0].score < 0.99 {
		t.Errorf("score = %v, want ~1.0 for the replacement vector", hits[0].score)
	}
}

func TestVectorIndexSearchRanksAndFilters(t *testing.T) {
	t.Parallel()

	idx, err := openVectorIndex(filepath.Join(t.TempDir(), "vdb.json"))
	if err != nil {
		t.Fatal(err)
	}
	idx.upsert(vectorEntry{ID: "close", Vector: []float32{1, 0.1}})
	idx.upsert(vectorEntry{ID: "closer", Vector: []float32{1, 0}})
	idx.upsert(vectorEntry{ID: "orthogonal", Vector: []float32{0, 1}})

	hits := idx.search([]float32{1, 0}, 10)
	if len(hits) != 2 {
		t.Fatalf("search() returned %d hits, want 2 (orthogonal filtered)", len(hits))
	}
	if hits[0].ID != "closer" || hits[1].ID != "close" {
		t.Errorf("search order = [%s %s], want [closer close]", hits[0].ID, hits[1].ID)
	}

	if got := idx.search([]float32{1, 0}, 1); len(got) != 1 {
		t.Errorf("search(topK=1) = %d hits, want 1", len(got))
	}
}

func TestVectorIndexPersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "vdb.json")
	idx, err := openVectorIndex(path)
	if err != nil {
		t.Fatal(err)
	}
	idx.upsert(vectorEntry{ID: "a", Vector: []float32{1, 2, 3}, Payload: map[string]string{"full_doc_id": "d"}})
	if err := idx.save(); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	reloaded, err := openVectorIndex(path)
	if err != nil {
		t.Fatalf("openVectorIndex() error = %v", err)
	}
	if reloaded.len() != 1 {
		t.Fatalf("reloaded len() = %d, want 1", reloaded.len())
	}
	hits := reloaded.search([]float32{1, 2, 3}, 1)
	if len(hits) != 1 || hits[0].Payload["full_doc_id"] != "d" {
		t.Errorf("reloaded entry = %+v, want payload preserved", hits)
	}
}

func TestCosineMismatchedDimensions(t *testing.T) {
	t.Parallel()

	if got := cosine([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("cosine(mismatched dims) = %v, want 0", got)
	}
	if got := cosine(nil, nil); got != 0 {
		t.Errorf("cosine(nil, nil) = %v, want 0", got)
	}
}
