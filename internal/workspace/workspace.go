// Package workspace manages the on-disk working directory holding the
// knowledge-store artifact files and the scratch directory holding uploaded
// PDFs and their extracted text. It owns the canonical list of artifact
// filenames — every other package must reference ArtifactFiles rather than
// restating the names.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// The fixed artifact filenames the knowledge engine writes into its working
// directory. These names are load-bearing: Exists and Clear match on them
// exactly, and the engine persists to them exactly.
const (
	// GraphFile holds the entity/relationship graph (GraphML).
	GraphFile = "graph_chunk_entity_relation.graphml"
	// DocStatusFile tracks per-document ingestion status.
	DocStatusFile = "kv_store_doc_status.json"
	// FullDocsFile holds the full normalized text of each document.
	FullDocsFile = "kv_store_full_docs.json"
	// TextChunksFile holds the chunked document text.
	TextChunksFile = "kv_store_text_chunks.json"
	// ChunksVDBFile is the chunk vector index.
	ChunksVDBFile = "vdb_chunks.json"
	// EntitiesVDBFile is the entity vector index.
	EntitiesVDBFile = "vdb_entities.json"
	// RelationshipsVDBFile is the relationship vector index.
	RelationshipsVDBFile = "vdb_relationships.json"
)

// ArtifactFiles is the complete artifact set: one graph file, three
// key-value stores, and three vector indexes. Presence of any one of them is
// treated as evidence that a knowledge store exists; their contents are
// never inspected here.
var ArtifactFiles = []string{
	GraphFile,
	DocStatusFile,
	FullDocsFile,
	TextChunksFile,
	ChunksVDBFile,
	EntitiesVDBFile,
	RelationshipsVDBFile,
}

// FileError records a single artifact that could not be removed during a
// best-effort Clear.
type FileError struct {
	// Name is the artifact filename (not the full path).
	Name string
	// Err is the removal failure.
	Err error
}

// Error implements the error interface.
func (fe FileError) Error() string {
	return fmt.Sprintf("workspace: remove %s: %v", fe.Name, fe.Err)
}

// Clear removes the known artifact files from dir, creating dir first if it
// does not exist. Missing artifacts are not errors. Removal failures are
// collected and returned rather than aborting the remaining files, so one
// locked file never blocks cleanup of the others. Non-artifact files in dir
// are left untouched.
func Clear(dir string) []FileError {
	_ = os.MkdirAll(dir, 0o755)

	var failed []FileError
	for _, name := range ArtifactFiles {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failed = append(failed, FileError{Name: name, Err: err})
		}
	}
	return failed
}

// Reset destructively removes the entire workspace tree and the entire
// scratch tree, then recreates both as empty directories. Removal of a
// missing tree is fine; failure to recreate either directory is fatal
// because a half-created workspace cannot safely be used.
func Reset(dir, scratch string) error {
	for _, d := range []string{dir, scratch} {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("workspace: remove tree %s: %w", d, err)
		}
	}
	for _, d := range []string{dir, scratch} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("workspace: recreate %s: %w", d, err)
		}
	}
	return nil
}

// Exists reports whether dir contains at least one known artifact file,
// i.e. whether a knowledge store can be lazily reopened rather than built
// from scratch. No validation of file contents is performed.
func Exists(dir string) bool {
	for _, name := range ArtifactFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
