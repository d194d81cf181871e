package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
	"github.com/aTul-07kn/custom-lightRAG/internal/workspace"
)

// NewResetCmd constructs the `lightrag reset` command, which destroys the
// knowledge store and scratch directories and recreates them empty.
func NewResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the knowledge store and start fresh",
		Long: `Remove the knowledge store directory and the upload scratch directory,
then recreate both empty.

This deletes every indexed document, chunk, entity, and relationship.
Query history (the SQLite store) is not touched.

Examples:
  lightrag reset
  WORKSPACE_DIR=/var/lib/lightrag/store lightrag reset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			dir := workspaceDirFromEnv()
			scratch := scratchDirFromEnv()

			if err := workspace.Reset(dir, scratch); err != nil {
				return fmt.Errorf("reset: %w", err)
			}

			log.Info("workspace reset",
				slog.String("dir", dir),
				slog.String("scratch", scratch),
			)
			fmt.Printf("reset %s and %s\n", dir, scratch)
			return nil
		},
	}

	return cmd
}
