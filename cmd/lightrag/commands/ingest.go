package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aTul-07kn/custom-lightRAG/internal/ingest"
	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
)

// documentIngestor is the slice of the ingest service the command needs.
// *ingest.Ingestor satisfies it.
type documentIngestor interface {
	Ingest(ctx context.Context, fileName string, payload []byte) (*ingest.Result, error)
}

// NewIngestCmd constructs the `lightrag ingest` command, which indexes local
// PDF files into the knowledge store without starting the server.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file.pdf ...]",
		Short: "Ingest local PDF files into the knowledge store",
		Long: `Convert the given PDF files to plain text and index them into the
knowledge store.

Each file is copied into the scratch directory, converted, normalized,
chunked, embedded, and mined for entities and relationships. Files whose
text is already indexed (matched by content hash) are skipped. A file
that fails is reported and does not stop the files after it.

Environment variables:
  WORKSPACE_DIR        Knowledge store directory (default: TEMP)
  SCRATCH_DIR          Upload scratch directory (default: .tmp_docling)
  MODEL_PROVIDER       Chat backend: ollama, openai, azure, gemini (default: ollama)
  EMBEDDING_*          Embedding overrides (see README)

Examples:
  lightrag ingest report.pdf
  lightrag ingest q1.pdf q2.pdf q3.pdf
  MODEL_PROVIDER=openai lightrag ingest annual-report.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			st, cleanup, err := buildStack(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer cleanup()

			return ingestPaths(ctx, log, st.Ingestor, args)
		},
	}

	return cmd
}

// ingestPaths runs each file through the ingestor. A failing file is logged
// and skipped; the remaining files still run. When any file failed, the
// returned error summarises the batch so the command exits non-zero.
func ingestPaths(ctx context.Context, log *slog.Logger, ing documentIngestor, paths []string) error {
	failed := 0
	for _, path := range paths {
		res, err := ingestPath(ctx, ing, path)
		if err != nil {
			failed++
			log.Error("ingest failed",
				slog.String("file", path),
				slog.Any("error", err),
			)
			fmt.Printf("failed %s: %v\n", path, err)
			continue
		}

		log.Info("document indexed",
			slog.String("file", res.FileName),
			slog.Int("text_bytes", res.TextBytes),
			slog.Duration("elapsed", res.Elapsed),
		)
		fmt.Printf("indexed %s (%d bytes of text, %s)\n", res.FileName, res.TextBytes, res.Elapsed.Round(timePrecision))
	}

	if failed > 0 {
		return fmt.Errorf("ingest: %d of %d files failed", failed, len(paths))
	}
	return nil
}

// ingestPath reads one local file and feeds it to the ingestor.
func ingestPath(ctx context.Context, ing documentIngestor, path string) (*ingest.Result, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ing.Ingest(ctx, filepath.Base(path), payload)
}
