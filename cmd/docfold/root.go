package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docfold/docfold/observability"
)

var cfgFile string

func newRootCommand(log observability.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "docfold",
		Short: "docfold splits rich documents into fixed-size pages",
		Long: `docfold is a document pagination engine: it takes a markdown, HTML,
docx, or JSON document tree plus a physical page geometry and produces a
deterministic page sequence with margin collapsing, manual page breaks,
and paragraph splitting across page boundaries.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: docfold.yaml in . or $HOME)")

	root.AddCommand(newPaginateCommand(log))
	root.AddCommand(newServeCommand(log))
	root.AddCommand(newVersionCommand())
	return root
}
