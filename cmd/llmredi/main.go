// Command llmredi is the command-line client for the LLM readiness audit service.
package main

import (
	"os"

	"github.com/runnerr0/llmredi/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// The parser has already printed the error.
	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}
