package main

import (
	"os"

	"golang.org/x/term"
)

// isInteractiveEnvironment reports whether a human is likely watching the
// output, in which case logs are rendered for the console.
func isInteractiveEnvironment() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
