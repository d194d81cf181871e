package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aTul-07kn/custom-lightRAG/internal/knowledge"
	"github.com/aTul-07kn/custom-lightRAG/internal/logging"
	"github.com/aTul-07kn/custom-lightRAG/internal/query"
)

// NewQueryCmd constructs the `lightrag query` command, which answers a single
// question from the knowledge store and prints the answer to stdout.
func NewQueryCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against the ingested documents",
		Long: `Answer a natural language question from the knowledge store.

The retrieval mode controls how context is gathered:
  naive    chunk vector search only
  local    entity search plus graph neighborhood
  global   relationship search
  hybrid   local and global combined (default)
  mix      hybrid plus chunk search
  all      run every mode and print each answer

Examples:
  lightrag query "What grew 10% in Q1?"
  lightrag query --mode naive "Who is the reporting company?"
  lightrag query --mode all "Summarise the outlook section"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			history := openHistory(log)
			if history != nil {
				defer func() { _ = history.Close() }()
			}

			st, cleanup, err := buildStack(ctx, log, history)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer cleanup()

			question := strings.Join(args, " ")

			if mode == "all" {
				answers, err := st.Query.RunAll(ctx, question)
				if err != nil {
					return fmt.Errorf("query: %w", err)
				}
				for _, ans := range answers {
					printAnswer(ans)
				}
				return nil
			}

			m, err := knowledge.ParseMode(mode)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			ans, err := st.Query.Run(ctx, question, m)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			printAnswer(*ans)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(knowledge.ModeHybrid), "Retrieval mode (naive, local, global, hybrid, mix, all)")

	return cmd
}

// printAnswer writes one mode's answer to stdout.
func printAnswer(ans query.Answer) {
	fmt.Printf("[%s] (%s)\n", ans.Mode, ans.Elapsed.Round(timePrecision))
	if ans.Err != "" {
		fmt.Printf("error: %s\n\n", ans.Err)
		return
	}
	fmt.Printf("%s\n\n", ans.Text)
}
