// Package main provides the entry point for the repoindex CLI.
package main

import (
	"os"

	"repoindex/cmd/repoindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
