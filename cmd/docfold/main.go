package main

import (
	"fmt"
	"os"

	"github.com/docfold/docfold/observability"
)

// Version information, set at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	log, err := observability.NewZapLogger(os.Getenv("DOCFOLD_DEBUG") != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "docfold: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := newRootCommand(log).Execute(); err != nil {
		log.Error("command failed", observability.Error("error", err))
		os.Exit(1)
	}
}
