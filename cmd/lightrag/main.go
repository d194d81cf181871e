// Command lightrag is the entry point for the PDF question-answering
// application. It provides a CLI interface (via Cobra) and an optional HTTP
// server with a web UI for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/aTul-07kn/custom-lightRAG/cmd/lightrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
