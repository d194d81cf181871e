// Package commands defines all Cobra CLI commands for the lightrag binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/aTul-07kn/custom-lightRAG/internal/audit"
	"github.com/aTul-07kn/custom-lightRAG/internal/config"
	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lightrag",
		Short: "lightrag — a local-first PDF question-answering assistant",
		Long: `lightrag ingests PDF documents into a file-backed knowledge store and
answers free-text questions about them.

Uploaded PDFs are converted to plain text, chunked, embedded, and mined
for an entity/relationship graph. Questions can then be answered in five
retrieval modes (naive, local, global, hybrid, mix), each trading off
chunk-level and graph-level context differently.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.lightrag/config.yaml).
See 'lightrag --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.lightrag/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewQueryCmd(),
		NewResetCmd(),
		NewVersionCmd(),
	)

	return root
}
