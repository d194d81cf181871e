package knowledge

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// fieldSep joins accumulated descriptions and chunk-ID lists inside a single
// graph attribute value.
const fieldSep = "<SEP>"

// graphNode is one entity in the knowledge graph.
type graphNode struct {
	// Name is the canonical (upper-cased) entity name and graph node ID.
	Name string
	// Type is the entity type label produced by extraction (e.g. "person").
	Type string
	// Description accumulates extracted descriptions, fieldSep-joined.
	Description string
	// ChunkIDs accumulates the IDs of chunks this entity was seen in.
	ChunkIDs []string
}

// graphEdge is one relationship between two entities.
type graphEdge struct {
	// Source and Target are node names; the edge is undirected and stored
	// with Source < Target so the pair has one canonical key.
	Source string
	Target string
	// Description accumulates extracted relationship descriptions.
	Description string
	// Keywords accumulates extracted relationship keywords.
	Keywords string
	// Weight sums the extraction strength over all sightings.
	Weight float64
	// ChunkIDs accumulates the IDs of chunks this edge was seen in.
	ChunkIDs []string
}

// edgeKey returns the canonical map key for an undirected node pair.
func edgeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// graph is the in-memory entity/relationship graph, persisted as GraphML.
type graph struct {
	path  string
	nodes map[string]*graphNode
	edges map[string]*graphEdge
}

// newGraph constructs an empty graph persisted at path.
func newGraph(path string) *graph {
	return &graph{
		path:  path,
		nodes: make(map[string]*graphNode),
		edges: make(map[string]*graphEdge),
	}
}

// mergeNode inserts the entity or merges it into an existing node with the
// same name: descriptions and chunk IDs accumulate, the type of the first
// sighting wins unless it was empty.
func (g *graph) mergeNode(n graphNode) {
	existing, ok := g.nodes[n.Name]
	if !ok {
		copied := n
		g.nodes[n.Name] = &copied
		return
	}
	if existing.Type == "" {
		existing.Type = n.Type
	}
	existing.Description = mergeField(existing.Description, n.Description)
	existing.ChunkIDs = mergeIDs(existing.ChunkIDs, n.ChunkIDs)
}

// mergeEdge inserts the relationship or merges it into the existing edge for
// the same node pair, summing weights and accumulating text fields. Both
// endpoints are guaranteed to exist as nodes afterwards.
func (g *graph) mergeEdge(e graphEdge) {
	for _, name := range []string{e.Source, e.Target} {
		if _, ok := g.nodes[name]; !ok {
			g.nodes[name] = &graphNode{Name: name}
		}
	}

	key := edgeKey(e.Source, e.Target)
	existing, ok := g.edges[key]
	if !ok {
		copied := e
		if copied.Target < copied.Source {
			copied.Source, copied.Target = copied.Target, copied.Source
		}
		g.edges[key] = &copied
		return
	}
	existing.Description = mergeField(existing.Description, e.Description)
	existing.Keywords = mergeField(existing.Keywords, e.Keywords)
	existing.Weight += e.Weight
	existing.ChunkIDs = mergeIDs(existing.ChunkIDs, e.ChunkIDs)
}

// node returns the named node, or nil.
func (g *graph) node(name string) *graphNode {
	return g.nodes[name]
}

// neighbors returns all edges touching the named node.
func (g *graph) neighbors(name string) []*graphEdge {
	var out []*graphEdge
	for _, e := range g.edges {
		if e.Source == name || e.Target == name {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// edge returns the edge between the two named nodes, or nil.
func (g *graph) edge(a, b string) *graphEdge {
	return g.edges[edgeKey(a, b)]
}

// mergeField appends b to a with the field separator, skipping empties and
// exact duplicates.
func mergeField(a, b string) string {
	if b == "" {
		return a
	}
	if a == "" {
		return b
	}
	for _, part := range strings.Split(a, fieldSep) {
		if part == b {
			return a
		}
	}
	return a + fieldSep + b
}

// mergeIDs unions two ID lists preserving first-seen order.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			a = append(a, id)
		}
	}
	return a
}

// GraphML serialization. The attribute key set matches what the engine
// writes and reads back; foreign GraphML files are not supported.

type graphmlDoc struct {
	XMLName xml.Name      `xml:"graphml"`
	Xmlns   string        `xml:"xmlns,attr"`
	Keys    []graphmlKey  `xml:"key"`
	Graph   graphmlGraph  `xml:"graph"`
}

type graphmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	EdgeDefault string         `xml:"edgedefault,attr"`
	Nodes       []graphmlNode  `xml:"node"`
	Edges       []graphmlEdge  `xml:"edge"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Attribute key IDs used in the GraphML output.
const (
	keyEntityType  = "d0"
	keyDescription = "d1"
	keySourceIDs   = "d2"
	keyEdgeDesc    = "d3"
	keyEdgeKeyword = "d4"
	keyEdgeWeight  = "d5"
	keyEdgeSource  = "d6"
)

// save writes the graph as GraphML, atomically.
func (g *graph) save() error {
	doc := graphmlDoc{
		Xmlns: "http://graphml.graphdrawing.org/xmlns",
		Keys: []graphmlKey{
			{ID: keyEntityType, For: "node", AttrName: "entity_type", AttrType: "string"},
			{ID: keyDescription, For: "node", AttrName: "description", AttrType: "string"},
			{ID: keySourceIDs, For: "node", AttrName: "source_id", AttrType: "string"},
			{ID: keyEdgeDesc, For: "edge", AttrName: "description", AttrType: "string"},
			{ID: keyEdgeKeyword, For: "edge", AttrName: "keywords", AttrType: "string"},
			{ID: keyEdgeWeight, For: "edge", AttrName: "weight", AttrType: "double"},
			{ID: keyEdgeSource, For: "edge", AttrName: "source_id", AttrType: "string"},
		},
		Graph: graphmlGraph{EdgeDefault: "undirected"},
	}

	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		n := g.nodes[name]
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphmlNode{
			ID: n.Name,
			Data: []graphmlData{
				{Key: keyEntityType, Value: n.Type},
				{Key: keyDescription, Value: n.Description},
				{Key: keySourceIDs, Value: strings.Join(n.ChunkIDs, fieldSep)},
			},
		})
	}

	keys := make([]string, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := g.edges[k]
		doc.Graph.Edges = append(doc.Graph.Edges, graphmlEdge{
			Source: e.Source,
			Target: e.Target,
			Data: []graphmlData{
				{Key: keyEdgeDesc, Value: e.Description},
				{Key: keyEdgeKeyword, Value: e.Keywords},
				{Key: keyEdgeWeight, Value: strconv.FormatFloat(e.Weight, 'f', -1, 64)},
				{Key: keyEdgeSource, Value: strings.Join(e.ChunkIDs, fieldSep)},
			},
		})
	}

	raw, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("knowledge: marshal graphml: %w", err)
	}
	return atomicWrite(g.path, append([]byte(xml.Header), raw...))
}

// openGraph loads the GraphML file at path, or starts empty if absent.
func openGraph(path string) (*graph, error) {
	g := newGraph(path)

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return g, nil
	}
	if err != nil {
		return nil, fmt.Errorf("knowledge: read graph %s: %w", path, err)
	}

	var doc graphmlDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("knowledge: parse graph %s: %w", path, err)
	}

	for _, xn := range doc.Graph.Nodes {
		n := &graphNode{Name: xn.ID}
		for _, d := range xn.Data {
			switch d.Key {
			case keyEntityType:
				n.Type = d.Value
			case keyDescription:
				n.Description = d.Value
			case keySourceIDs:
				n.ChunkIDs = splitIDs(d.Value)
			}
		}
		g.nodes[n.Name] = n
	}

	for _, xe := range doc.Graph.Edges {
		e := &graphEdge{Source: xe.Source, Target: xe.Target}
		for _, d := range xe.Data {
			switch d.Key {
			case keyEdgeDesc:
				e.Description = d.Value
			case keyEdgeKeyword:
				e.Keywords = d.Value
			case keyEdgeWeight:
				e.Weight, _ = strconv.ParseFloat(d.Value, 64)
			case keyEdgeSource:
				e.ChunkIDs = splitIDs(d.Value)
			}
		}
		g.edges[edgeKey(e.Source, e.Target)] = e
	}

	return g, nil
}

// splitIDs splits a fieldSep-joined ID list, dropping empties.
func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, fieldSep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
