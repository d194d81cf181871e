// Package ingest orchestrates the document intake pipeline: an uploaded file
// is copied into the scratch directory, converted to plain text, normalized,
// and handed to the knowledge engine through the bridge runner so index
// updates stay serialized.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aTul-07kn/custom-lightRAG/internal/bridge"
	"github.com/aTul-07kn/custom-lightRAG/internal/convert"
)

// defaultTimeout bounds a single indexing run. Conversion and extraction of a
// large document can take minutes when the model is slow.
const defaultTimeout = 10 * time.Minute

// Inserter is the slice of the knowledge engine the ingestor needs.
type Inserter interface {
	Insert(ctx context.Context, text string) error
}

// Result describes a completed ingestion.
type Result struct {
	// FileName is the sanitized name the upload was stored under.
	FileName string
	// StoredPath is the scratch copy of the original document.
	StoredPath string
	// TextPath is the extracted plain-text file written beside the copy.
	TextPath string
	// TextBytes is the length of the normalized text that was indexed.
	TextBytes int
	// Elapsed is how long the full pipeline took.
	Elapsed time.Duration
}

// Config holds the ingestor's collaborators.
type Config struct {
	// ScratchDir is where uploads and their extracted text are written.
	ScratchDir string
	// Converter extracts plain text from a stored document.
	Converter convert.Converter
	// Runner serializes engine access.
	Runner *bridge.Runner
	// Engine receives the normalized text.
	Engine Inserter
	// Timeout bounds a single run (default: 10m).
	Timeout time.Duration
	// Logger receives progress events. Defaults to slog.Default.
	Logger *slog.Logger
}

// Ingestor runs the intake pipeline and remembers which files were processed
// in this session. It is safe for concurrent use; actual index updates are
// serialized by the bridge runner.
type Ingestor struct {
	scratchDir string
	converter  convert.Converter
	runner     *bridge.Runner
	engine     Inserter
	timeout    time.Duration
	log        *slog.Logger

	mu        sync.Mutex
	processed []string
}

// New validates cfg and constructs an Ingestor.
func New(cfg *Config) (*Ingestor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ingest: nil config")
	}
	if cfg.ScratchDir == "" {
		return nil, fmt.Errorf("ingest: scratch dir is required")
	}
	if cfg.Converter == nil {
		return nil, fmt.Errorf("ingest: converter is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("ingest: bridge runner is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("ingest: engine is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{
		scratchDir: cfg.ScratchDir,
		converter:  cfg.Converter,
		runner:     cfg.Runner,
		engine:     cfg.Engine,
		timeout:    timeout,
		log:        log,
	}, nil
}

// Ingest stores the uploaded payload, extracts and normalizes its text, and
// inserts it into the knowledge store. The returned Result describes where
// the artifacts were written.
func (ing *Ingestor) Ingest(ctx context.Context, fileName string, payload []byte) (*Result, error) {
	start := time.Now()
	if len(payload) == 0 {
		return nil, fmt.Errorf("ingest: %s: empty upload", fileName)
	}

	if err := os.MkdirAll(ing.scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: create scratch dir: %w", err)
	}

	name := sanitizeFileName(fileName)
	storedPath := filepath.Join(ing.scratchDir, name)
	if err := os.WriteFile(storedPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("ingest: store upload: %w", err)
	}

	ing.log.Info("ingest: stored upload",
		slog.String("file", name),
		slog.Int("bytes", len(payload)),
	)

	raw, err := ing.converter.Convert(ctx, storedPath)
	if err != nil {
		return nil, fmt.Errorf("ingest: convert %s: %w", name, err)
	}
	text := convert.Normalize(raw)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ingest: %s: no text extracted", name)
	}

	textPath := textPathFor(storedPath)
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("ingest: write extracted text: %w", err)
	}

	_, err = ing.runner.SubmitAndWait(ctx, func(taskCtx context.Context) (any, error) {
		return nil, ing.engine.Insert(taskCtx, text)
	}, ing.timeout)
	if err != nil {
		return nil, fmt.Errorf("ingest: index %s: %w", name, err)
	}

	ing.mu.Lock()
	ing.processed = append(ing.processed, name)
	ing.mu.Unlock()

	res := &Result{
		FileName:   name,
		StoredPath: storedPath,
		TextPath:   textPath,
		TextBytes:  len(text),
		Elapsed:    time.Since(start),
	}
	ing.log.Info("ingest: indexed document",
		slog.String("file", name),
		slog.Int("text_bytes", res.TextBytes),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Processed returns the names of files ingested in this session, in order.
func (ing *Ingestor) Processed() []string {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	out := make([]string, len(ing.processed))
	copy(out, ing.processed)
	return out
}

// sanitizeFileName strips any path components from the client-supplied name.
// If nothing safe remains, a random name is generated, preserving the
// original extension.
func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == ".." || strings.HasPrefix(base, ".") {
		ext := filepath.Ext(base)
		if ext == "" || ext == base {
			ext = ".bin"
		}
		return uuid.NewString() + ext
	}
	return base
}

// textPathFor returns the extracted-text path for a stored document, replacing
// its extension with .txt.
func textPathFor(storedPath string) string {
	ext := filepath.Ext(storedPath)
	return strings.TrimSuffix(storedPath, ext) + ".txt"
}
