package main

import (
	"os"

	"github.com/instantcocoa/verdict/cli/cmd"
)

func main() {
	// Cobra prints the error itself; main only sets the exit code.
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
