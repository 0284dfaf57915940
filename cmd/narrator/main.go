// Package main is the entry point for the narrator CLI.
//
// Usage:
//
//	narrator [flags] <command> [args]
//
// Commands:
//
//	run      - Watch a terminal session and narrate important events
//	history  - Show recent narration decisions
//	version  - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/lkovac/narrator/cmd/narrator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
