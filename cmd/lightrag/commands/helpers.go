package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aTul-07kn/custom-lightRAG/internal/bridge"
	"github.com/aTul-07kn/custom-lightRAG/internal/convert"
	"github.com/aTul-07kn/custom-lightRAG/internal/embedder"
	"github.com/aTul-07kn/custom-lightRAG/internal/ingest"
	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
	"github.com/aTul-07kn/custom-lightRAG/internal/provider"
	"github.com/aTul-07kn/custom-lightRAG/internal/query"
	"github.com/aTul-07kn/custom-lightRAG/internal/server"
	"github.com/aTul-07kn/custom-lightRAG/internal/store"
)

// openTimeout bounds store open/close tasks submitted to the bridge runner.
const openTimeout = time.Minute

// timePrecision is the rounding applied to durations printed to the terminal.
const timePrecision = 10 * time.Millisecond

// stack bundles the wired application collaborators shared by the
// subcommands: the bridge runner, the knowledge engine opened through it,
// and the ingestion and query orchestrators on top.
type stack struct {
	Runner   *bridge.Runner
	Engine   *knowledge.Engine
	Ingestor *ingest.Ingestor
	Query    *query.Service

	WorkspaceDir string
	ScratchDir   string
}

// buildStack wires the embedder, chat model, knowledge engine, bridge runner,
// ingestor, and query service from environment configuration. The returned
// cleanup function flushes the engine, stops the runner, and closes the
// history store; callers must invoke it before exiting.
func buildStack(ctx context.Context, log *slog.Logger, history store.HistoryStore) (*stack, func(), error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("initialise embedder: %w", err)
	}

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise model provider: %w", err)
	}
	log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

	workspaceDir := workspaceDirFromEnv()
	scratchDir := scratchDirFromEnv()

	eng, err := knowledge.New(&knowledge.Config{
		WorkingDir:         workspaceDir,
		Embedder:           emb,
		Completer:          provider.NewCompleter(chatModel),
		ChunkTokenSize:     getEnvInt("CHUNK_TOKEN_SIZE", 200),
		ChunkOverlapTokens: getEnvInt("CHUNK_OVERLAP_TOKENS", 40),
		TopK:               getEnvInt("QUERY_TOP_K", 10),
		Logger:             log,
	})
	if err != nil {
		return nil, nil, err
	}

	// The engine is single-goroutine only; every operation on it, including
	// opening and closing the store, goes through the runner.
	runner := bridge.NewRunner()
	if _, err := runner.SubmitAndWait(ctx, func(taskCtx context.Context) (any, error) {
		return nil, eng.Init(taskCtx)
	}, openTimeout); err != nil {
		runner.Stop()
		return nil, nil, fmt.Errorf("open knowledge store: %w", err)
	}
	log.Info("knowledge store opened", slog.String("dir", workspaceDir))

	ing, err := ingest.New(&ingest.Config{
		ScratchDir: scratchDir,
		Converter:  convert.NewPDFConverter(),
		Runner:     runner,
		Engine:     eng,
		Logger:     log,
	})
	if err != nil {
		runner.Stop()
		return nil, nil, err
	}

	qs, err := query.New(&query.Config{
		Runner:  runner,
		Engine:  eng,
		History: history,
		Logger:  log,
	})
	if err != nil {
		runner.Stop()
		return nil, nil, err
	}

	cleanup := func() {
		if _, err := runner.SubmitAndWait(context.Background(), func(taskCtx context.Context) (any, error) {
			return nil, eng.Finalize(taskCtx)
		}, openTimeout); err != nil {
			log.Warn("knowledge store close failed", slog.Any("error", err))
		}
		runner.Stop()
	}

	return &stack{
		Runner:       runner,
		Engine:       eng,
		Ingestor:     ing,
		Query:        qs,
		WorkspaceDir: workspaceDir,
		ScratchDir:   scratchDir,
	}, cleanup, nil
}

// openHistory opens the query history store. LIGHTRAG_HISTORY_DB overrides
// the default path (~/.lightrag/history.db); set to "disabled" to skip.
// A missing or unopenable store degrades to no history rather than failing.
func openHistory(log *slog.Logger) store.HistoryStore {
	dbPath := os.Getenv("LIGHTRAG_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via LIGHTRAG_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs
}

// buildPingers constructs the readiness probes for the serve command: the
// workspace directory is always probed, and Ollama is probed when either the
// chat or the embedding backend uses it.
func buildPingers(workspaceDir string) []server.Pinger {
	pingers := []server.Pinger{server.NewWorkspacePinger(workspaceDir)}

	modelBackend := getEnvOrDefault("MODEL_PROVIDER", "ollama")
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", modelBackend)
	if modelBackend == "ollama" || embBackend == "ollama" {
		pingers = append(pingers, server.NewHTTPPinger("ollama", getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")))
	}

	return pingers
}

// workspaceDirFromEnv resolves the knowledge store directory. The default
// mirrors the original application's TEMP workdir.
func workspaceDirFromEnv() string {
	return getEnvOrDefault("WORKSPACE_DIR", "TEMP")
}

// scratchDirFromEnv resolves the upload scratch directory.
func scratchDirFromEnv() string {
	return getEnvOrDefault("SCRATCH_DIR", ".tmp_docling")
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
