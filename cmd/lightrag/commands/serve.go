package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
	"github.com/aTul-07kn/custom-lightRAG/internal/server"
	"github.com/aTul-07kn/custom-lightRAG/internal/tracing"
)

// NewServeCmd constructs the `lightrag serve` command, which starts the HTTP
// server and serves the web UI for interactive use.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the lightrag HTTP server and web UI",
		Long: `Start the lightrag HTTP server on localhost.

The server exposes a REST API for uploading PDF documents, querying the
knowledge store in any retrieval mode, inspecting the workspace, and
resetting it, and serves the web UI for interactive use.

Examples:
  lightrag serve
  lightrag serve --port 9090
  MODEL_PROVIDER=azure lightrag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			history := openHistory(log)
			if history != nil {
				defer func() { _ = history.Close() }()
			}

			st, cleanup, err := buildStack(ctx, log, history)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			srv, err := server.New(server.Deps{
				Runner:   st.Runner,
				Engine:   st.Engine,
				Ingestor: st.Ingestor,
				Query:    st.Query,
			}, &server.Config{
				Host:         host,
				Port:         port,
				Logger:       log,
				Pingers:      buildPingers(st.WorkspaceDir),
				APIKey:       os.Getenv("LIGHTRAG_API_KEY"),
				WorkspaceDir: st.WorkspaceDir,
				ScratchDir:   st.ScratchDir,
				StaticDir:    staticDir,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVar(&staticDir, "static", "ui/static", "Directory holding the web UI files")

	return cmd
}
