package knowledge

import (
	"path/filepath"
	"testing"
)

func TestGraphMergeNodeAccumulates(t *testing.T) {
	t.Parallel()

	g := newGraph(filepath.Join(t.TempDir(), "g.graphml"))
	g.mergeNode(graphNode{Name: "ACME", Type: "organization", Description: "A company.", ChunkIDs: []string{"c1"}})
	g.mergeNode(graphNode{Name: "ACME", Description: "Maker of anvils.", ChunkIDs: []string{"c1", "c2"}})

	n := g.node("ACME")
	if n == nil {
		t.Fatal("node ACME missing after merge")
	}
	if n.Type != "organization" {
		t.Errorf("Type = %q, want first-sighting type kept", n.Type)
	}
	if n.Description != "A company."+fieldSep+"Maker of anvils." {
		t.Errorf("Description = %q, want accumulated", n.Description)
	}
	if len(n.ChunkIDs) != 2 {
		t.Errorf("ChunkIDs = %v, want deduplicated union of 2", n.ChunkIDs)
	}
}

func TestGraphMergeEdgeUndirected(t *testing.T) {
	t.Parallel()

	g := newGraph(filepath.Join(t.TempDir(), "g.graphml"))
	g.mergeEdge(graphEdge{Source: "B", Target: "A", Description: "first", Weight: 2})
	g.mergeEdge(graphEdge{Source: "A", Target: "B", Description: "second", Weight: 3})

	e := g.edge("A", "B")
	if e == nil {
		t.Fatal("edge A-B missing")
	}
	if e.Weight != 5 {
		t.Errorf("Weight = %v, want summed 5", e.Weight)
	}
	if e.Source != "A" || e.Target != "B" {
		t.Errorf("edge stored as %s->%s, want canonical A->B", e.Source, e.Target)
	}

	// Both endpoints must exist as nodes even if never merged explicitly.
	if g.node("A") == nil || g.node("B") == nil {
		t.Error("edge endpoints were not auto-created as nodes")
	}
}

func TestGraphSaveAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "g.graphml")
	g := newGraph(path)
	g.mergeNode(graphNode{Name: "ACME", Type: "organization", Description: "A company.", ChunkIDs: []string{"c1"}})
	g.mergeNode(graphNode{Name: "REVENUE", Type: "metric", Description: "Quarterly revenue."})
	g.mergeEdge(graphEdge{Source: "ACME", Target: "REVENUE", Description: "Reports it.", Keywords: "revenue", Weight: 4.5, ChunkIDs: []string{"c1"}})

	if err := g.save(); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	loaded, err := openGraph(path)
	if err != nil {
		t.Fatalf("openGraph() error = %v", err)
	}

	n := loaded.node("ACME")
	if n == nil || n.Type != "organization" || n.Description != "A company." {
		t.Errorf("reloaded node = %+v", n)
	}
	if got := loaded.node("ACME").ChunkIDs; len(got) != 1 || got[0] != "c1" {
		t.Errorf("reloaded ChunkIDs = %v, want [c1]", got)
	}

	e := loaded.edge("ACME", "REVENUE")
	if e == nil {
		t.Fatal("reloaded edge missing")
	}
	if e.Weight != 4.5 || e.Keywords != "revenue" {
		t.Errorf("reloaded edge = %+v", e)
	}
}

func TestGraphNeighborsSortedByWeight(t *testing.T) {
	t.Parallel()

	g := newGraph(filepath.Join(t.TempDir(), "g.graphml"))
	g.mergeEdge(graphEdge{Source: "X", Target: "A", Weight: 1})
	g.mergeEdge(graphEdge{Source: "X", Target: "B", Weight: 9})
	g.mergeEdge(graphEdge{Source: "A", Target: "B", Weight: 5})

	got := g.neighbors("X")
	if len(got) != 2 {
		t.Fatalf("neighbors(X) = %d edges, want 2", len(got))
	}
	if got[0].Weight < got[1].Weight {
		t.Error("neighbors not sorted strongest-first")
	}
}
